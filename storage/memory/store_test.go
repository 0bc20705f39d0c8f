package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/models"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/storage"
)

func seedActiveAuction(t *testing.T, store *Store) *models.Auction {
	t.Helper()
	auction := &models.Auction{
		ID:               uuid.New(),
		SellerID:         uuid.New(),
		Title:            "test lot",
		StartingPrice:    8500,
		CurrentBid:       8500,
		MinimumIncrement: 200,
		StartTime:        time.Now().Add(-time.Hour),
		EndTime:          time.Now().Add(time.Hour),
		ApprovalStatus:   models.ApprovalApproved,
		Status:           models.StatusActive,
	}
	require.NoError(t, store.CreateAuction(context.Background(), auction))
	return auction
}

func TestCommitBid(t *testing.T) {
	t.Run("stale expected value conflicts", func(t *testing.T) {
		store := New()
		auction := seedActiveAuction(t, store)

		first := &models.Bid{ID: uuid.New(), AuctionID: auction.ID, BidderID: uuid.New(), Amount: 8700, BidTime: time.Now()}
		require.NoError(t, store.CommitBid(context.Background(), first, 8500))

		// 第二筆還拿著舊的 current_bid
		second := &models.Bid{ID: uuid.New(), AuctionID: auction.ID, BidderID: uuid.New(), Amount: 8700, BidTime: time.Now()}
		err := store.CommitBid(context.Background(), second, 8500)
		assert.ErrorIs(t, err, storage.ErrBidConflict)

		bids, err := store.ListBids(context.Background(), auction.ID)
		require.NoError(t, err)
		assert.Len(t, bids, 1)
	})

	t.Run("non-biddable auction conflicts", func(t *testing.T) {
		store := New()
		auction := seedActiveAuction(t, store)
		require.NoError(t, store.SetRunStatus(context.Background(), auction.ID, models.StatusActive, models.StatusPaused, nil))

		bid := &models.Bid{ID: uuid.New(), AuctionID: auction.ID, BidderID: uuid.New(), Amount: 8700, BidTime: time.Now()}
		err := store.CommitBid(context.Background(), bid, 8500)
		assert.ErrorIs(t, err, storage.ErrBidConflict)
	})
}

func TestSetRunStatus_StaleState(t *testing.T) {
	store := New()
	auction := seedActiveAuction(t, store)

	err := store.SetRunStatus(context.Background(), auction.ID, models.StatusPaused, models.StatusActive, nil)
	assert.ErrorIs(t, err, storage.ErrStaleState)
}

func TestUpdateApproval_StaleState(t *testing.T) {
	store := New()
	auction := seedActiveAuction(t, store)

	// 已經 approved，再以 pending 為前提更新會失敗
	auction.ApprovalStatus = models.ApprovalApproved
	err := store.UpdateApproval(context.Background(), auction, models.ApprovalPending, nil)
	assert.ErrorIs(t, err, storage.ErrStaleState)
}

func TestIllegalStateCombination(t *testing.T) {
	t.Run("UpdateApproval rejects rejected-but-active", func(t *testing.T) {
		store := New()
		auction := seedActiveAuction(t, store)

		// rejected 的拍賣不可能同時 active
		auction.ApprovalStatus = models.ApprovalRejected
		auction.Status = models.StatusActive
		err := store.UpdateApproval(context.Background(), auction, models.ApprovalApproved, nil)
		assert.ErrorIs(t, err, storage.ErrIllegalState)

		got, gerr := store.GetAuction(context.Background(), auction.ID)
		require.NoError(t, gerr)
		assert.Equal(t, models.ApprovalApproved, got.ApprovalStatus)
	})

	t.Run("SetRunStatus rejects activation before approval", func(t *testing.T) {
		store := New()
		auction := &models.Auction{
			ID:             uuid.New(),
			SellerID:       uuid.New(),
			Title:          "unreviewed lot",
			ApprovalStatus: models.ApprovalPending,
			Status:         models.StatusPending,
		}
		require.NoError(t, store.CreateAuction(context.Background(), auction))

		err := store.SetRunStatus(context.Background(), auction.ID, models.StatusPending, models.StatusActive, nil)
		assert.ErrorIs(t, err, storage.ErrIllegalState)
	})
}

func TestCreatePendingDeposit(t *testing.T) {
	store := New()
	userID := uuid.New()
	ctx := context.Background()

	dep := &models.Deposit{ID: uuid.New(), UserID: userID, Amount: 10000, Currency: "USD", PayPalOrderID: "ORDER-1"}
	require.NoError(t, store.CreatePendingDeposit(ctx, dep, nil))

	// pending 可被覆蓋，completed 之後就不行
	again := &models.Deposit{ID: uuid.New(), UserID: userID, Amount: 10000, Currency: "USD", PayPalOrderID: "ORDER-2"}
	require.NoError(t, store.CreatePendingDeposit(ctx, again, nil))

	require.NoError(t, store.MarkDepositCompleted(ctx, userID, "CAPTURE-1", nil))
	blocked := &models.Deposit{ID: uuid.New(), UserID: userID, Amount: 10000, Currency: "USD", PayPalOrderID: "ORDER-3"}
	err := store.CreatePendingDeposit(ctx, blocked, nil)
	assert.ErrorIs(t, err, storage.ErrDuplicateDeposit)
}

func TestDepositTransitions(t *testing.T) {
	store := New()
	userID := uuid.New()
	ctx := context.Background()

	dep := &models.Deposit{ID: uuid.New(), UserID: userID, Amount: 10000, Currency: "USD", PayPalOrderID: "ORDER-1"}
	require.NoError(t, store.CreatePendingDeposit(ctx, dep, nil))

	// pending 不能直接退款
	err := store.MarkRefundRequested(ctx, userID, nil)
	assert.ErrorIs(t, err, storage.ErrStaleState)

	require.NoError(t, store.MarkDepositCompleted(ctx, userID, "CAPTURE-1", nil))
	require.NoError(t, store.MarkRefundRequested(ctx, userID, nil))

	// 裁決只作用一次
	require.NoError(t, store.MarkDepositRefunded(ctx, dep.ID, time.Now(), nil))
	err = store.RestoreDepositCompleted(ctx, dep.ID, nil)
	assert.ErrorIs(t, err, storage.ErrStaleState)
}
