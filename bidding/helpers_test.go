package bidding

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/events"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/models"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/storage/memory"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// seedBidder 建立一位具備已完成保證金的出價者。
func seedBidder(store *memory.Store, username string) uuid.UUID {
	userID := uuid.New()
	_ = store.CreateUser(context.Background(), &models.User{
		ID:       userID,
		Username: username,
		Role:     models.RoleUser,
	})
	seedDeposit(store, userID, models.DepositCompleted)
	return userID
}

func seedDeposit(store *memory.Store, userID uuid.UUID, status models.DepositStatus) {
	dep := &models.Deposit{
		ID:            uuid.New(),
		UserID:        userID,
		Amount:        10000,
		Currency:      "USD",
		Status:        models.DepositPending,
		PayPalOrderID: "ORDER-" + userID.String(),
	}
	_ = store.CreatePendingDeposit(context.Background(), dep, nil)
	switch status {
	case models.DepositCompleted:
		_ = store.MarkDepositCompleted(context.Background(), userID, "CAPTURE-"+userID.String(), nil)
	case models.DepositRefundRequested:
		_ = store.MarkDepositCompleted(context.Background(), userID, "CAPTURE-"+userID.String(), nil)
		_ = store.MarkRefundRequested(context.Background(), userID, nil)
	}
}

// seedAuction 建立一筆可出價的拍賣，起標價8500、最低加價200。
func seedAuction(store *memory.Store, approval models.ApprovalStatus, status models.RunStatus) uuid.UUID {
	auction := &models.Auction{
		ID:               uuid.New(),
		SellerID:         uuid.New(),
		Title:            "vintage chronograph",
		Images:           []string{"https://img.example.com/a.jpg"},
		StartingPrice:    8500,
		CurrentBid:       8500,
		MinimumIncrement: 200,
		Currency:         "USD",
		StartTime:        time.Now().Add(-time.Hour),
		EndTime:          time.Now().Add(time.Hour),
		ApprovalStatus:   approval,
		Status:           status,
	}
	_ = store.CreateAuction(context.Background(), auction)
	return auction.ID
}

// eventRecorder 收集引擎發布的事件，供測試檢查。
type eventRecorder struct {
	mu     sync.Mutex
	events []events.AuctionEvent
}

func (r *eventRecorder) Publish(event events.AuctionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) Events() []events.AuctionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.AuctionEvent, len(r.events))
	copy(out, r.events)
	return out
}
