package lifecycle

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

func seedUser(store *memory.Store, role models.Role) uuid.UUID {
	id := uuid.New()
	_ = store.CreateUser(context.Background(), &models.User{
		ID:       id,
		Username: "user-" + id.String()[:8],
		Role:     role,
	})
	return id
}

func validDraft() Draft {
	return Draft{
		Title:            "vintage chronograph",
		Description:      "numbered dial, original box",
		Images:           []string{"https://img.example.com/a.jpg"},
		StartingPrice:    8500,
		MinimumIncrement: 200,
		Currency:         "USD",
		StartTime:        time.Now().Add(-time.Hour),
		EndTime:          time.Now().Add(time.Hour),
	}
}

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
