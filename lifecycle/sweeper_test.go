package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/core"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/models"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/storage/memory"
)

type fakeLocker struct {
	deny bool
}

func (l *fakeLocker) Lock(ctx context.Context) (context.Context, error) {
	if l.deny {
		return nil, errors.New("lock held elsewhere")
	}
	return ctx, nil
}

func (l *fakeLocker) Unlock() (bool, error) {
	return true, nil
}

func TestSweeper(t *testing.T) {
	t.Run("promotes due auctions in the background", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		store := memory.New()
		controller := newTestController(store, &eventRecorder{})
		adminID := seedUser(store, models.RoleAdmin)
		draft := validDraft()
		draft.StartTime = time.Now().Add(-time.Minute)
		draft.EndTime = time.Now().Add(time.Hour)
		auction, err := controller.AdminCreate(context.Background(), core.Principal{UserID: adminID}, draft)
		require.NoError(t, err)

		// 先退回 pending，讓掃描把它推上 active
		require.NoError(t, store.SetRunStatus(context.Background(), auction.ID, models.StatusActive, models.StatusPending, nil))

		sweeper := NewSweeper(controller, 10*time.Millisecond,
			WithSweeperLocker(&fakeLocker{}),
			WithSweeperLogger(discardLogger),
		)
		sweeper.Start()
		defer sweeper.Close()

		assert.Eventually(t, func() bool {
			current, err := store.GetAuction(context.Background(), auction.ID)
			return err == nil && current.Status == models.StatusActive
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("skips the round when the lock is held elsewhere", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		store := memory.New()
		controller := newTestController(store, &eventRecorder{})
		adminID := seedUser(store, models.RoleAdmin)
		draft := validDraft()
		draft.StartTime = time.Now().Add(-time.Minute)
		draft.EndTime = time.Now().Add(time.Hour)
		auction, err := controller.AdminCreate(context.Background(), core.Principal{UserID: adminID}, draft)
		require.NoError(t, err)
		require.NoError(t, store.SetRunStatus(context.Background(), auction.ID, models.StatusActive, models.StatusPending, nil))

		sweeper := NewSweeper(controller, 10*time.Millisecond,
			WithSweeperLocker(&fakeLocker{deny: true}),
			WithSweeperLogger(discardLogger),
		)
		sweeper.Start()
		time.Sleep(100 * time.Millisecond)
		sweeper.Close()

		current, err := store.GetAuction(context.Background(), auction.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, current.Status)
	})
}
