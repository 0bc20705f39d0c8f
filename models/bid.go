package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bid 代表一位出價者在某個時間點對單一拍賣的出價紀錄。
// 出價一旦寫入就不會被修改或刪除；每個拍賣中金額最高的紀錄
// 即為該拍賣的 current_bid。
type Bid struct {
	gorm.Model

	ID        uuid.UUID `gorm:"type:uuid;primaryKey;<-:create"`
	AuctionID uuid.UUID `gorm:"type:uuid;not null;index;<-:create"`
	BidderID  uuid.UUID `gorm:"type:uuid;not null;<-:create"`
	Amount    int64     `gorm:"type:bigint;not null;<-:create"`
	BidTime   time.Time `gorm:"type:timestamp with time zone;not null;<-:create"`

	Bidder  *User    `gorm:"foreignKey:BidderID"`
	Auction *Auction `gorm:"foreignKey:AuctionID"`
}
