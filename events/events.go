// Package events 定義已提交變更的事件型別與發布端介面。
// 事件只在底層交易落地之後發布，傳遞保證是 at-least-once、
// 單一拍賣內依提交順序；訂閱端必須冪等地收斂（例如取看過的最大出價）。
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/models"
)

// Kind 標記事件的種類。
type Kind string

const (
	KindBidPlaced      Kind = "bid_placed"
	KindStatusChanged  Kind = "status_changed"
	KindDepositDecided Kind = "deposit_decided"
)

// AuctionEvent 是單一拍賣的一次已提交變更快照。
// 訂閱端應把每個快照視為權威值；重複收到同一筆是可能的。
type AuctionEvent struct {
	Kind      Kind
	AuctionID uuid.UUID

	// KindBidPlaced 時有值
	Amount   int64
	BidderID uuid.UUID
	Bidder   string

	// KindStatusChanged 時有值
	ApprovalStatus models.ApprovalStatus
	Status         models.RunStatus

	// KindDepositDecided 時有值
	UserID   uuid.UUID
	Approved bool
	Detail   string

	OccurredAt time.Time
}

// Publisher 是引擎對扇出層的出口。實作不得阻塞提交路徑太久，
// 發布失敗由呼叫端記錄，不回滾已提交的交易。
type Publisher interface {
	Publish(event AuctionEvent) error
}

// PublisherFunc 讓函式直接作為 Publisher 使用，測試時攔截事件很方便。
type PublisherFunc func(event AuctionEvent) error

func (f PublisherFunc) Publish(event AuctionEvent) error {
	return f(event)
}
