// Package lifecycle 擁有拍賣的兩個正交狀態機：
// 管理員的一次性核准決定（approval state）與拍賣的執行狀態（run state）。
// 所有轉換都先明確檢查目前狀態，重複的管理操作會浮出 InvalidStateError
// 而不是被默默忽略。
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/core"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/events"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/models"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/storage"
)

// Draft 是送審或建立拍賣時的輸入。
type Draft struct {
	Title            string
	Description      string
	Images           []string
	StartingPrice    int64
	MinimumIncrement int64
	Currency         string
	StartTime        time.Time
	EndTime          time.Time
	CustomerID       *string
	CustomerPhone    *string
}

// Controller 負責拍賣生命週期的全部合法轉換。
type Controller struct {
	store     storage.Store
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

type ControllerOption func(*Controller)

// WithControllerLogger 設置日誌記錄器
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithControllerClock 設置時間來源（測試用）
func WithControllerClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController 建立生命週期控制器。
func NewController(store storage.Store, publisher events.Publisher, opts ...ControllerOption) *Controller {
	controller := &Controller{
		store:     store,
		publisher: publisher,
		logger:    slog.Default().With(slog.String("caller", "LifecycleController")),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(controller)
	}
	return controller
}

// validateDraft 檢查送審輸入的形狀與範圍。
func validateDraft(draft Draft) error {
	if draft.StartingPrice <= 0 {
		return &core.ValidationError{Field: "starting_price", Reason: "must be positive"}
	}
	if draft.MinimumIncrement <= 0 {
		return &core.ValidationError{Field: "minimum_increment", Reason: "must be positive"}
	}
	if !draft.EndTime.After(draft.StartTime) {
		return &core.ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	if len(draft.Images) == 0 {
		return &core.ValidationError{Field: "images", Reason: "at least one image is required"}
	}
	return nil
}

// requireAdmin 重新向資料庫查證主體的角色，特權操作每次呼叫都要過這關。
func (c *Controller) requireAdmin(ctx context.Context, userID uuid.UUID) error {
	user, err := c.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &core.AuthorizationError{Reason: "unknown user"}
		}
		return err
	}
	if user.Role != models.RoleAdmin {
		return &core.AuthorizationError{Reason: "admin role required"}
	}
	return nil
}

func (c *Controller) newAuction(seller uuid.UUID, draft Draft) *models.Auction {
	currency := draft.Currency
	if currency == "" {
		currency = "USD"
	}
	return &models.Auction{
		ID:               uuid.New(),
		SellerID:         seller,
		Title:            draft.Title,
		Description:      draft.Description,
		Images:           draft.Images,
		StartingPrice:    draft.StartingPrice,
		CurrentBid:       draft.StartingPrice,
		MinimumIncrement: draft.MinimumIncrement,
		Currency:         currency,
		StartTime:        draft.StartTime,
		EndTime:          draft.EndTime,
		CustomerID:       draft.CustomerID,
		CustomerPhone:    draft.CustomerPhone,
	}
}

// Submit 建立一筆待審核的送審，current_bid 以起標價起算。
func (c *Controller) Submit(ctx context.Context, principal core.Principal, draft Draft) (*models.Auction, error) {
	const op = "Submit"
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	auction := c.newAuction(principal.UserID, draft)
	auction.ApprovalStatus = models.ApprovalPending
	auction.Status = models.StatusPending
	if err := c.store.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("[%s] Fail to create auction, err=%w", op, err)
	}
	c.logger.Info("Auction submitted",
		slog.String("auctionID", auction.ID.String()),
		slog.String("sellerID", principal.UserID.String()))
	return auction, nil
}

// AdminCreate 讓管理員直接建立已核准的拍賣，
// run state 依 start_time 與現在時間決定。
func (c *Controller) AdminCreate(ctx context.Context, principal core.Principal, draft Draft) (*models.Auction, error) {
	const op = "AdminCreate"
	if err := c.requireAdmin(ctx, principal.UserID); err != nil {
		return nil, err
	}
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	auction := c.newAuction(principal.UserID, draft)
	auction.ApprovalStatus = models.ApprovalApproved
	auction.Status = models.StatusPending
	if !auction.StartTime.After(c.now()) {
		auction.Status = models.StatusActive
	}
	if err := c.store.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("[%s] Fail to create auction, err=%w", op, err)
	}
	return auction, nil
}

// Approve 核准一筆待審核的送審並附上出貨標籤。
// 重複核准會失敗並回報 InvalidStateError，拍賣狀態不受失敗的呼叫影響。
func (c *Controller) Approve(ctx context.Context, principal core.Principal, auctionID uuid.UUID, shippingLabelURL string, comments *string) (*models.Auction, error) {
	const op = "Approve"
	if err := c.requireAdmin(ctx, principal.UserID); err != nil {
		return nil, err
	}
	if shippingLabelURL == "" {
		return nil, &core.ValidationError{Field: "shipping_label_url", Reason: "must not be empty"}
	}

	auction, err := c.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load auction, err=%w", op, err)
	}
	if auction.ApprovalStatus != models.ApprovalPending {
		return nil, &core.InvalidStateError{Op: "approve", Current: string(auction.ApprovalStatus)}
	}

	auction.ApprovalStatus = models.ApprovalApproved
	auction.Status = models.StatusPending
	if !auction.StartTime.After(c.now()) {
		auction.Status = models.StatusActive
	}
	auction.ShippingLabelURL = lo.ToPtr(shippingLabelURL)
	auction.AdminComparisonComments = comments

	entry := c.activityEntry(auctionID, principal.UserID, "approve", "shipping label attached")
	if err := c.store.UpdateApproval(ctx, auction, models.ApprovalPending, entry); err != nil {
		if errors.Is(err, storage.ErrStaleState) || errors.Is(err, storage.ErrIllegalState) {
			return nil, &core.InvalidStateError{Op: "approve", Current: "already decided"}
		}
		return nil, fmt.Errorf("[%s] Fail to update approval, err=%w", op, err)
	}

	c.logger.Info("Auction approved",
		slog.String("auctionID", auctionID.String()),
		slog.String("adminID", principal.UserID.String()),
		slog.String("status", string(auction.Status)))
	c.publishStatus(auction)
	return auction, nil
}

// Reject 拒絕一筆待審核的送審。rejected 是終止狀態，之後不允許任何轉換。
func (c *Controller) Reject(ctx context.Context, principal core.Principal, auctionID uuid.UUID, reason string) (*models.Auction, error) {
	const op = "Reject"
	if err := c.requireAdmin(ctx, principal.UserID); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, &core.ValidationError{Field: "reason", Reason: "must not be empty"}
	}

	auction, err := c.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load auction, err=%w", op, err)
	}
	if auction.ApprovalStatus != models.ApprovalPending {
		return nil, &core.InvalidStateError{Op: "reject", Current: string(auction.ApprovalStatus)}
	}

	auction.ApprovalStatus = models.ApprovalRejected
	auction.Status = models.StatusRejected
	auction.RejectionReason = lo.ToPtr(reason)

	entry := c.activityEntry(auctionID, principal.UserID, "reject", reason)
	if err := c.store.UpdateApproval(ctx, auction, models.ApprovalPending, entry); err != nil {
		if errors.Is(err, storage.ErrStaleState) || errors.Is(err, storage.ErrIllegalState) {
			return nil, &core.InvalidStateError{Op: "reject", Current: "already decided"}
		}
		return nil, fmt.Errorf("[%s] Fail to update approval, err=%w", op, err)
	}

	c.logger.Info("Auction rejected",
		slog.String("auctionID", auctionID.String()),
		slog.String("adminID", principal.UserID.String()))
	c.publishStatus(auction)
	return auction, nil
}

// Resubmit 以新的草稿重新送審一筆被拒絕的拍賣。
// 原始送審維持原樣，讓管理員可以並排比較兩個版本。
func (c *Controller) Resubmit(ctx context.Context, principal core.Principal, originalID uuid.UUID, draft Draft) (*models.Auction, error) {
	const op = "Resubmit"
	original, err := c.store.GetAuction(ctx, originalID)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load original submission, err=%w", op, err)
	}
	if original.SellerID != principal.UserID {
		return nil, &core.AuthorizationError{Reason: "only the original seller may resubmit"}
	}
	if original.ApprovalStatus != models.ApprovalRejected {
		return nil, &core.InvalidStateError{Op: "resubmit", Current: string(original.ApprovalStatus)}
	}
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	auction := c.newAuction(principal.UserID, draft)
	auction.ApprovalStatus = models.ApprovalPending
	auction.Status = models.StatusPending
	auction.OriginalSubmissionID = lo.ToPtr(originalID)
	if err := c.store.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("[%s] Fail to create resubmission, err=%w", op, err)
	}
	return auction, nil
}

// Start 將已核准且暫停中的拍賣恢復為 active。
// 已經是 active 時回報 InvalidStateError，讓重複點擊浮出錯誤。
func (c *Controller) Start(ctx context.Context, principal core.Principal, auctionID uuid.UUID) (*models.Auction, error) {
	return c.toggleRunStatus(ctx, principal, auctionID, "start", models.StatusPaused, models.StatusActive)
}

// Pause 暫停進行中的拍賣，暫停期間所有出價都會被拒絕。
func (c *Controller) Pause(ctx context.Context, principal core.Principal, auctionID uuid.UUID) (*models.Auction, error) {
	return c.toggleRunStatus(ctx, principal, auctionID, "pause", models.StatusActive, models.StatusPaused)
}

func (c *Controller) toggleRunStatus(ctx context.Context, principal core.Principal, auctionID uuid.UUID, action string, from, to models.RunStatus) (*models.Auction, error) {
	const op = "toggleRunStatus"
	if err := c.requireAdmin(ctx, principal.UserID); err != nil {
		return nil, err
	}

	auction, err := c.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load auction, err=%w", op, err)
	}
	// 先過核准這道閘門，再檢查 run state
	if auction.ApprovalStatus != models.ApprovalApproved {
		return nil, &core.InvalidStateError{Op: action, Current: string(auction.ApprovalStatus)}
	}
	if auction.Status != from {
		return nil, &core.InvalidStateError{Op: action, Current: string(auction.Status)}
	}

	entry := c.activityEntry(auctionID, principal.UserID, action, "")
	if err := c.store.SetRunStatus(ctx, auctionID, from, to, entry); err != nil {
		if errors.Is(err, storage.ErrStaleState) || errors.Is(err, storage.ErrIllegalState) {
			return nil, &core.InvalidStateError{Op: action, Current: string(auction.Status)}
		}
		return nil, fmt.Errorf("[%s] Fail to set run status, err=%w", op, err)
	}

	auction.Status = to
	c.logger.Info("Auction run status changed",
		slog.String("auctionID", auctionID.String()),
		slog.String("action", action),
		slog.String("adminID", principal.UserID.String()))
	c.publishStatus(auction)
	return auction, nil
}

// Withdraw 讓賣家撤回尚未核准且沒有任何出價的送審，並刪除其儲存內容。
func (c *Controller) Withdraw(ctx context.Context, principal core.Principal, auctionID uuid.UUID) error {
	const op = "Withdraw"
	auction, err := c.store.GetAuction(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("[%s] Fail to load auction, err=%w", op, err)
	}
	if auction.SellerID != principal.UserID {
		return &core.AuthorizationError{Reason: "only the seller may withdraw a submission"}
	}
	if auction.ApprovalStatus != models.ApprovalPending {
		return &core.InvalidStateError{Op: "withdraw", Current: string(auction.ApprovalStatus)}
	}
	count, err := c.store.CountBids(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("[%s] Fail to count bids, err=%w", op, err)
	}
	if count > 0 {
		return &core.InvalidStateError{Op: "withdraw", Current: "auction has bids"}
	}
	if err := c.store.DeleteAuction(ctx, auctionID); err != nil {
		return fmt.Errorf("[%s] Fail to delete auction, err=%w", op, err)
	}
	c.logger.Info("Submission withdrawn", slog.String("auctionID", auctionID.String()))
	return nil
}

// AdvanceSchedule 是週期性的排程掃描：把到點的已核准拍賣推上 active，
// 把過期的 active 拍賣收斂為 completed。只往前推進，重複或併發執行是安全的。
func (c *Controller) AdvanceSchedule(ctx context.Context, now time.Time) ([]models.Auction, error) {
	const op = "AdvanceSchedule"
	promoted, err := c.store.PromoteDueAuctions(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to promote due auctions, err=%w", op, err)
	}
	completed, err := c.store.CompleteExpiredAuctions(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to complete expired auctions, err=%w", op, err)
	}

	moved := append(promoted, completed...)
	for i := range moved {
		c.publishStatus(&moved[i])
	}
	if len(moved) > 0 {
		c.logger.Info("Schedule advanced",
			slog.Int("promoted", len(promoted)),
			slog.Int("completed", len(completed)))
	}
	return moved, nil
}

func (c *Controller) activityEntry(auctionID, adminID uuid.UUID, action, detail string) *models.ActivityLog {
	return &models.ActivityLog{
		ID:        uuid.New(),
		AuctionID: auctionID,
		AdminID:   adminID,
		Action:    action,
		Detail:    detail,
	}
}

// publishStatus 在轉換落地後發布狀態事件；發布失敗只記錄。
func (c *Controller) publishStatus(auction *models.Auction) {
	if c.publisher == nil {
		return
	}
	err := c.publisher.Publish(events.AuctionEvent{
		Kind:           events.KindStatusChanged,
		AuctionID:      auction.ID,
		ApprovalStatus: auction.ApprovalStatus,
		Status:         auction.Status,
		OccurredAt:     c.now(),
	})
	if err != nil {
		c.logger.Error("Fail to publish status event",
			slog.String("auctionID", auction.ID.String()),
			slog.Any("error", err))
	}
}
