package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/adapters/sse"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/events"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/models"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/storage/memory"
)

// fakeEventSource 以固定的channel模擬跨節點的事件來源。
type fakeEventSource struct {
	upstream chan sse.PublishRequest[events.AuctionEvent]
}

func (f *fakeEventSource) Subscribe() <-chan sse.PublishRequest[events.AuctionEvent] {
	return f.upstream
}

func TestGetAuctionEvents_StreamEndsWhenManagerShutsDown(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := memory.New()
	auction := &models.Auction{
		ID:             uuid.New(),
		SellerID:       uuid.New(),
		Title:          "test lot",
		StartingPrice:  8500,
		CurrentBid:     8500,
		ApprovalStatus: models.ApprovalApproved,
		Status:         models.StatusActive,
	}
	require.NoError(t, store.CreateAuction(context.Background(), auction))

	source := &fakeEventSource{upstream: make(chan sse.PublishRequest[events.AuctionEvent], 16)}
	manager, err := sse.NewConnectionManager[events.AuctionEvent](sse.WithSubscriber(source))
	require.NoError(t, err)
	manager.Start()

	impl := &ServerImpl{store: store, sseManager: manager}
	router := gin.New()
	router.GET("/auction/items/:auctionID/events", impl.GetAuctionEvents)
	srv := httptest.NewServer(router)
	defer srv.Close()

	// 處理器要先訂閱才收得到廣播，持續重送直到串流端收到第一筆
	pusherDone := make(chan struct{})
	pusherStop := make(chan struct{})
	go func() {
		defer close(pusherDone)
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-pusherStop:
				return
			case <-ticker.C:
				select {
				case source.upstream <- sse.PublishRequest[events.AuctionEvent]{
					Channel: auction.ID.String(),
					Message: events.AuctionEvent{
						Kind:       events.KindBidPlaced,
						AuctionID:  auction.ID,
						Amount:     8700,
						OccurredAt: time.Now(),
					},
				}:
				default:
				}
			}
		}
	}()
	defer func() {
		close(pusherStop)
		<-pusherDone
	}()

	resp, err := http.Get(srv.URL + "/auction/items/" + auction.ID.String() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	sawEvent := false
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), string(events.KindBidPlaced)) {
			sawEvent = true
			break
		}
	}
	require.True(t, sawEvent, "expected at least one bid event on the stream")

	// 關閉管理器會 close 訂閱通道，處理器必須結束回應而不是
	// 繼續送出空白事件
	manager.Done()

	ended := make(chan struct{})
	go func() {
		defer close(ended)
		for scanner.Scan() {
			// 排掉關閉前殘留在緩衝裡的事件
		}
	}()
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after the manager shut down")
	}
}
