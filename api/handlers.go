package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/core"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/lifecycle"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/models"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/storage"
)

// RegisterRoutes 掛載全部的HTTP路由。
func (impl *ServerImpl) RegisterRoutes(router *gin.Engine) {
	router.GET("/auction/items/:auctionID", impl.GetAuction)
	router.GET("/auction/items/:auctionID/events", impl.GetAuctionEvents)

	authed := router.Group("", impl.RequireAuth())
	{
		authed.POST("/auction/items", impl.SubmitAuction)
		authed.POST("/auction/items/:auctionID/resubmit", impl.ResubmitAuction)
		authed.DELETE("/auction/items/:auctionID", impl.WithdrawAuction)
		authed.POST("/auction/items/:auctionID/bids", impl.PlaceBid)

		authed.POST("/deposit", impl.CreateDepositOrder)
		authed.POST("/deposit/capture", impl.CaptureDeposit)
		authed.POST("/deposit/refund", impl.RequestRefund)

		authed.POST("/admin/auction/items", impl.AdminCreateAuction)
		authed.POST("/admin/auction/items/:auctionID/approve", impl.ApproveAuction)
		authed.POST("/admin/auction/items/:auctionID/reject", impl.RejectAuction)
		authed.POST("/admin/auction/items/:auctionID/start", impl.StartAuction)
		authed.POST("/admin/auction/items/:auctionID/pause", impl.PauseAuction)
		authed.POST("/admin/deposits/:depositID/refund", impl.ProcessRefund)
		authed.GET("/admin/deposits/:depositID/transactions", impl.ListDepositTransactions)
	}
}

// writeError 把引擎的型別化錯誤映射成HTTP回應。
// 未知錯誤一律記錄並回500，不把內部細節洩漏給呼叫端。
func writeError(c *gin.Context, err error) {
	var (
		validationErr  *core.ValidationError
		authzErr       *core.AuthorizationError
		stateErr       *core.InvalidStateError
		notBiddableErr *core.AuctionNotBiddableError
		depositReqErr  *core.DepositRequiredError
		bidTooLowErr   *core.BidTooLowError
		rateLimitErr   *core.RateLimitError
		bidConflictErr *core.ConcurrentBidConflictError
		dupDepositErr  *core.DepositAlreadyExistsError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"message": validationErr.Error()})
	case errors.As(err, &authzErr):
		c.JSON(http.StatusForbidden, gin.H{"message": authzErr.Error()})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{"message": stateErr.Error()})
	case errors.As(err, &notBiddableErr):
		c.JSON(http.StatusConflict, gin.H{"message": notBiddableErr.Error()})
	case errors.As(err, &depositReqErr):
		c.JSON(http.StatusPaymentRequired, gin.H{"message": depositReqErr.Error()})
	case errors.As(err, &bidTooLowErr):
		c.JSON(http.StatusConflict, gin.H{
			"message": bidTooLowErr.Error(),
			"minimum": bidTooLowErr.Minimum,
		})
	case errors.As(err, &rateLimitErr):
		c.Header("Retry-After", strconv.Itoa(int(rateLimitErr.RetryAfter.Round(time.Second).Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{"message": rateLimitErr.Error()})
	case errors.As(err, &bidConflictErr):
		c.JSON(http.StatusConflict, gin.H{
			"message":    bidConflictErr.Error(),
			"currentBid": bidConflictErr.CurrentBid,
		})
	case errors.As(err, &dupDepositErr):
		c.JSON(http.StatusConflict, gin.H{"message": dupDepositErr.Error()})
	case errors.Is(err, storage.ErrNotFound):
		c.Status(http.StatusNotFound)
	default:
		slog.Error("Unhandled error", slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
	}
}

func parseAuctionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("auctionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid auction id"})
		return uuid.Nil, false
	}
	return id, true
}

type auctionDraftRequest struct {
	Title            string    `json:"title" binding:"required"`
	Description      string    `json:"description"`
	Images           []string  `json:"images"`
	StartingPrice    int64     `json:"startingPrice"`
	MinimumIncrement int64     `json:"minimumIncrement"`
	Currency         string    `json:"currency"`
	StartTime        time.Time `json:"startTime" binding:"required"`
	EndTime          time.Time `json:"endTime" binding:"required"`
	CustomerID       *string   `json:"customerId"`
	CustomerPhone    *string   `json:"customerPhone"`
}

// toDraft 轉換請求並過濾描述中的HTML。
func (impl *ServerImpl) toDraft(req auctionDraftRequest) lifecycle.Draft {
	return lifecycle.Draft{
		Title:            req.Title,
		Description:      impl.htmlChecker.Sanitize(req.Description),
		Images:           req.Images,
		StartingPrice:    req.StartingPrice,
		MinimumIncrement: req.MinimumIncrement,
		Currency:         req.Currency,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		CustomerID:       req.CustomerID,
		CustomerPhone:    req.CustomerPhone,
	}
}

type auctionResponse struct {
	ID               uuid.UUID `json:"id"`
	SellerID         uuid.UUID `json:"sellerId"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Images           []string  `json:"images"`
	StartingPrice    int64     `json:"startingPrice"`
	CurrentBid       int64     `json:"currentBid"`
	MinimumIncrement int64     `json:"minimumIncrement"`
	MinimumNextBid   int64     `json:"minimumNextBid"`
	Currency         string    `json:"currency"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	ApprovalStatus   string    `json:"approvalStatus"`
	Status           string    `json:"status"`
	RejectionReason  *string   `json:"rejectionReason,omitempty"`
}

func toAuctionResponse(auction *models.Auction) auctionResponse {
	return auctionResponse{
		ID:               auction.ID,
		SellerID:         auction.SellerID,
		Title:            auction.Title,
		Description:      auction.Description,
		Images:           auction.Images,
		StartingPrice:    auction.StartingPrice,
		CurrentBid:       auction.CurrentBid,
		MinimumIncrement: auction.MinimumIncrement,
		MinimumNextBid:   auction.MinimumNextBid(),
		Currency:         auction.Currency,
		StartTime:        auction.StartTime,
		EndTime:          auction.EndTime,
		ApprovalStatus:   string(auction.ApprovalStatus),
		Status:           string(auction.Status),
		RejectionReason:  auction.RejectionReason,
	}
}

// Submit a new auction for review
// (POST /auction/items)
func (impl *ServerImpl) SubmitAuction(c *gin.Context) {
	principal, err := mustPrincipal(c)
	if err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	var req auctionDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	auction, err := impl.controller.Submit(c.Request.Context(), principal, impl.toDraft(req))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Location", auction.ID.String())
	c.JSON(http.StatusCreated, toAuctionResponse(auction))
}

// Create a pre-approved auction
// (POST /admin/auction/items)
func (impl *ServerImpl) AdminCreateAuction(c *gin.Context) {
	principal, err := mustPrincipal(c)
	if err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	var req auctionDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	auction, err := impl.controller.AdminCreate(c.Request.Context(), principal, impl.toDraft(req))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Location", auction.ID.String())
	c.JSON(http.StatusCreated, toAuctionResponse(auction))
}

// Get auction details with bid history
// (GET /auction/items/{auctionID})
func (impl *ServerImpl) GetAuction(c *gin.Context) {
	const op = "GetAuction"
	auctionID, ok := parseAuctionID(c)
	if !ok {
		return
	}
	auction, err := impl.store.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		writeError(c, err)
		return
	}
	bids, err := impl.store.ListBids(c.Request.Context(), auctionID)
	if err != nil {
		writeError(c, fmt.Errorf("[%s] Fail to list bids, err=%w", op, err))
		return
	}
	type bidRecord struct {
		Amount  int64     `json:"amount"`
		BidTime time.Time `json:"bidTime"`
	}
	response := struct {
		auctionResponse
		Bids []bidRecord `json:"bids"`
	}{
		auctionResponse: toAuctionResponse(auction),
		Bids: lo.Map(bids, func(bid models.Bid, _ int) bidRecord {
			return bidRecord{Amount: bid.Amount, BidTime: bid.BidTime}
		}),
	}
	c.JSON(http.StatusOK, response)
}

// Resubmit a rejected auction
// (POST /auction/items/{auctionID}/resubmit)
func (impl *ServerImpl) ResubmitAuction(c *gin.Context) {
	principal, err := mustPrincipal(c)
	if err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	auctionID, ok := parseAuctionID(c)
	if !ok {
		return
	}
	var req auctionDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	auction, err := impl.controller.Resubmit(c.Request.Context(), principal, auctionID, impl.toDraft(req))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Location", auction.ID.String())
	c.JSON(http.StatusCreated, toAuctionResponse(auction))
}

// Withdraw a pending submission
// (DELETE /auction/items/{auctionID})
func (impl *ServerImpl) WithdrawAuction(c *gin.Context) {
	principal, err := mustPrincipal(c)
	if err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	auctionID, ok := parseAuctionID(c)
	if !ok {
		return
	}
	if err := impl.controller.Withdraw(c.Request.Context(), principal, auctionID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Approve a pending submission
// (POST /admin/auction/items/{auctionID}/approve)
func (impl *ServerImpl) ApproveAuction(c *gin.Context) {
	principal, err := mustPrincipal(c)
	if err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	auctionID, ok := parseAuctionID(c)
	if !ok {
		return
	}
	var req struct {
		ShippingLabelURL string  `json:"shippingLabelUrl"`
		Comments         *string `json:"comments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	auction, err := impl.controller.Approve(c.Request.Context(), principal, auctionID, req.ShippingLabelURL, req.Comments)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuctionResponse(auction))
}

// Reject a pending submission
// (POST /admin/auction/items/{auctionID}/reject)
func (impl *ServerImpl) RejectAuction(c *gin.Context) {
	principal, err := mustPrincipal(c)
	if err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	auctionID, ok := parseAuctionID(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	auction, err := impl.controller.Reject(c.Request.Context(), principal, auctionID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuctionResponse(auction))
}

// Resume a paused auction
// (POST /admin/auction/items/{auctionID}/start)
func (impl *ServerImpl) StartAuction(c *gin.Context) {
	impl.toggleAuction(c, impl.controller.Start)
}

// Pause a running auction
// (POST /admin/auction/items/{auctionID}/pause)
func (impl *ServerImpl) PauseAuction(c *gin.Context) {
	impl.toggleAuction(c, impl.controller.Pause)
}

func (impl *ServerImpl) toggleAuction(c *gin.Context, toggle func(ctx context.Context, principal core.Principal, auctionID uuid.UUID) (*models.Auction, error)) {
	principal, err := mustPrincipal(c)
	if err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	auctionID, ok := parseAuctionID(c)
	if !ok {
		return
	}
	auction, err := toggle(c.Request.Context(), principal, auctionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuctionResponse(auction))
}

// Place a bid
// (POST /auction/items/{auctionID}/bids)
func (impl *ServerImpl) PlaceBid(c *gin.Context) {
	principal, err := mustPrincipal(c)
	if err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	auctionID, ok := parseAuctionID(c)
	if !ok {
		return
	}
	var req struct {
		Amount int64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	bid, err := impl.engine.PlaceBid(c.Request.Context(), principal, auctionID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":      bid.ID,
		"amount":  bid.Amount,
		"bidTime": bid.BidTime,
	})
}

// Track auction events over SSE
// (GET /auction/items/{auctionID}/events)
func (impl *ServerImpl) GetAuctionEvents(c *gin.Context) {
	const op = "GetAuctionEvents"
	auctionID, ok := parseAuctionID(c)
	if !ok {
		return
	}
	// 只有存在的拍賣才開放串流
	if _, err := impl.store.GetAuction(c.Request.Context(), auctionID); err != nil {
		writeError(c, err)
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Transfer-Encoding", "chunked")
	ch, err := impl.sseManager.Subscribe(auctionID.String())
	if err != nil {
		writeError(c, fmt.Errorf("[%s] Fail to subscribe to auction events, err=%w", op, err))
		return
	}
	for {
		select {
		case <-w.CloseNotify():
			impl.sseManager.Unsubscribe(auctionID.String(), ch)
			return
		case event, ok := <-ch:
			// 管理器關閉（服務下線）時訂閱通道會被 close，直接結束串流
			if !ok {
				return
			}
			c.SSEvent(string(event.Kind), event)
			w.Flush()
		// 30秒沒有事件就發送一個空行，確保瀏覽器和Cloudflare不會斷開連線
		case <-time.After(30 * time.Second):
			w.WriteString("\n\n")
			w.Flush()
		}
	}
}

// Create a deposit payment order
// (POST /deposit)
func (impl *ServerImpl) CreateDepositOrder(c *gin.Context) {
	principal, err := mustPrincipal(c)
	if err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	dep, approveURL, err := impl.ledger.CreateDepositOrder(c.Request.Context(), principal)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"depositId":  dep.ID,
		"orderId":    dep.PayPalOrderID,
		"approveUrl": approveURL,
		"amount":     dep.Amount,
		"currency":   dep.Currency,
	})
}

// Capture an approved deposit order
// (POST /deposit/capture)
func (impl *ServerImpl) CaptureDeposit(c *gin.Context) {
	principal, err := mustPrincipal(c)
	if err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	var req struct {
		OrderID string `json:"orderId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	dep, err := impl.ledger.CaptureDeposit(c.Request.Context(), principal, req.OrderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"depositId": dep.ID,
		"status":    dep.Status,
	})
}

// Request a deposit refund
// (POST /deposit/refund)
func (impl *ServerImpl) RequestRefund(c *gin.Context) {
	principal, err := mustPrincipal(c)
	if err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	dep, err := impl.ledger.RequestRefund(c.Request.Context(), principal, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"depositId": dep.ID,
		"status":    dep.Status,
	})
}

// Decide a refund request
// (POST /admin/deposits/{depositID}/refund)
func (impl *ServerImpl) ProcessRefund(c *gin.Context) {
	principal, err := mustPrincipal(c)
	if err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	depositID, err := uuid.Parse(c.Param("depositID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid deposit id"})
		return
	}
	var req struct {
		Approve bool   `json:"approve"`
		Detail  string `json:"detail"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	dep, err := impl.ledger.ProcessRefund(c.Request.Context(), principal, depositID, req.Approve, req.Detail)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"depositId": dep.ID,
		"status":    dep.Status,
	})
}

// List the audit ledger of a deposit
// (GET /admin/deposits/{depositID}/transactions)
func (impl *ServerImpl) ListDepositTransactions(c *gin.Context) {
	principal, err := mustPrincipal(c)
	if err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	// 帳本只開放給管理員
	user, err := impl.store.GetUser(c.Request.Context(), principal.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if user.Role != models.RoleAdmin {
		c.Status(http.StatusForbidden)
		return
	}
	depositID, err := uuid.Parse(c.Param("depositID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid deposit id"})
		return
	}
	txns, err := impl.ledger.Transactions(c.Request.Context(), depositID)
	if err != nil {
		writeError(c, err)
		return
	}
	type txnRecord struct {
		Type        string    `json:"type"`
		Amount      int64     `json:"amount"`
		Currency    string    `json:"currency"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"createdAt"`
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": lo.Map(txns, func(txn models.DepositTransaction, _ int) txnRecord {
			return txnRecord{
				Type:        string(txn.Type),
				Amount:      txn.Amount,
				Currency:    txn.Currency,
				Description: txn.Description,
				CreatedAt:   txn.CreatedAt,
			}
		}),
	})
}
