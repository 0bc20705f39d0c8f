// Package bidding 實作出價准入控制：驗證、限流、以及對單一拍賣的
// 原子出價提交。這是整個系統的正確性熱路徑，兩個競爭的出價必須
// 確定性地分出勝負，輸家永遠拿到明確的錯誤而不是默默失敗。
package bidding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/core"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/events"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/models"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/storage"
)

// Engine 對單一拍賣驗證並提交單一出價。
type Engine struct {
	store     storage.Store
	limiter   RateLimiter
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

type EngineOption func(*Engine)

// WithEngineLogger 設置日誌記錄器
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithEngineClock 設置時間來源（測試用）
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine 建立出價引擎。
func NewEngine(store storage.Store, limiter RateLimiter, publisher events.Publisher, opts ...EngineOption) *Engine {
	engine := &Engine{
		store:     store,
		limiter:   limiter,
		publisher: publisher,
		logger:    slog.Default().With(slog.String("caller", "BidEngine")),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// PlaceBid 依序檢查出價資格後原子地提交出價。
// 前置檢查依序失敗得快：身分與角色 → 保證金 → 拍賣狀態 → 限流 → 底價。
// 提交採 compare-and-swap：current_bid 自讀取後被其他出價更新時，
// 會對最新狀態自動重試一次，再失敗才回報 ConcurrentBidConflictError。
func (e *Engine) PlaceBid(ctx context.Context, principal core.Principal, auctionID uuid.UUID, amount int64) (*models.Bid, error) {
	const op = "PlaceBid"

	// 出價者必須存在且不是管理員
	user, err := e.store.GetUser(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &core.AuthorizationError{Reason: "unknown bidder"}
		}
		return nil, fmt.Errorf("[%s] Fail to load bidder, err=%w", op, err)
	}
	if user.Role == models.RoleAdmin {
		return nil, &core.AuthorizationError{Reason: "administrators may not bid"}
	}

	// 必須持有已完成的保證金
	deposit, err := e.store.GetDepositByUser(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &core.DepositRequiredError{}
		}
		return nil, fmt.Errorf("[%s] Fail to load deposit, err=%w", op, err)
	}
	if deposit.Status != models.DepositCompleted {
		return nil, &core.DepositRequiredError{}
	}

	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load auction, err=%w", op, err)
	}
	if !auction.Biddable() {
		return nil, &core.AuctionNotBiddableError{
			ApprovalStatus: string(auction.ApprovalStatus),
			Status:         string(auction.Status),
		}
	}

	// 限流的計數是原子的：同一使用者的併發請求不會同時通過
	allowed, retryAfter, err := e.limiter.Allow(ctx, auctionID.String(), principal.UserID.String())
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to check rate limit, err=%w", op, err)
	}
	if !allowed {
		return nil, &core.RateLimitError{RetryAfter: retryAfter}
	}

	if amount < auction.MinimumNextBid() {
		return nil, &core.BidTooLowError{Minimum: auction.MinimumNextBid()}
	}

	bid := &models.Bid{
		ID:        uuid.New(),
		AuctionID: auctionID,
		BidderID:  principal.UserID,
		Amount:    amount,
		BidTime:   e.now(),
	}
	if err := e.store.CommitBid(ctx, bid, auction.CurrentBid); err != nil {
		if !errors.Is(err, storage.ErrBidConflict) {
			return nil, fmt.Errorf("[%s] Fail to commit bid, err=%w", op, err)
		}
		// 有人比我們先提交：對最新狀態重試一次，絕不接受低於新底價的出價
		bid, err = e.retryCommit(ctx, bid)
		if err != nil {
			return nil, err
		}
	}

	e.logger.Info("Bid accepted",
		slog.String("auctionID", auctionID.String()),
		slog.String("bidderID", principal.UserID.String()),
		slog.Int64("amount", amount))
	e.publish(events.AuctionEvent{
		Kind:       events.KindBidPlaced,
		AuctionID:  auctionID,
		Amount:     amount,
		BidderID:   principal.UserID,
		Bidder:     user.Username,
		OccurredAt: bid.BidTime,
	})
	return bid, nil
}

// retryCommit 在提交衝突後以最新狀態重新驗證並再提交一次。
func (e *Engine) retryCommit(ctx context.Context, bid *models.Bid) (*models.Bid, error) {
	const op = "retryCommit"

	auction, err := e.store.GetAuction(ctx, bid.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to reload auction, err=%w", op, err)
	}
	if !auction.Biddable() {
		return nil, &core.AuctionNotBiddableError{
			ApprovalStatus: string(auction.ApprovalStatus),
			Status:         string(auction.Status),
		}
	}
	if bid.Amount < auction.MinimumNextBid() {
		return nil, &core.BidTooLowError{Minimum: auction.MinimumNextBid()}
	}

	retry := &models.Bid{
		ID:        uuid.New(),
		AuctionID: bid.AuctionID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount,
		BidTime:   e.now(),
	}
	if err := e.store.CommitBid(ctx, retry, auction.CurrentBid); err != nil {
		if errors.Is(err, storage.ErrBidConflict) {
			return nil, &core.ConcurrentBidConflictError{CurrentBid: auction.CurrentBid}
		}
		return nil, fmt.Errorf("[%s] Fail to commit bid, err=%w", op, err)
	}
	return retry, nil
}

// publish 在提交落地後發布事件；發布失敗只記錄，不影響已提交的出價。
func (e *Engine) publish(event events.AuctionEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(event); err != nil {
		e.logger.Error("Fail to publish bid event",
			slog.String("auctionID", event.AuctionID.String()),
			slog.Any("error", err))
	}
}
