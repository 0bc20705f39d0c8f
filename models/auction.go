package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Auction 代表拍賣系統中的一件商品。
// 金額欄位一律以分（cent）為單位的整數儲存。
// CurrentBid 是 bids 表中最高已提交出價的反正規化快取，
// 只能在寫入對應 Bid 的同一個交易內更新，且只會增加。
type Auction struct {
	gorm.Model

	ID               uuid.UUID `gorm:"type:uuid;primaryKey;<-:create"`
	SellerID         uuid.UUID `gorm:"type:uuid;not null;<-:create"`
	Title            string    `gorm:"type:varchar(255);not null"`
	Description      string    `gorm:"type:text;not null"`
	Images           []string  `gorm:"type:text[];default:'{}';serializer:json"`
	StartingPrice    int64     `gorm:"type:bigint;not null;<-:create"`
	CurrentBid       int64     `gorm:"type:bigint;not null"`
	MinimumIncrement int64     `gorm:"type:bigint;not null;<-:create"`
	Currency         string    `gorm:"type:varchar(3);not null;default:'USD'"`
	StartTime        time.Time `gorm:"type:timestamp with time zone;not null"`
	EndTime          time.Time `gorm:"type:timestamp with time zone;not null"`

	ApprovalStatus ApprovalStatus `gorm:"type:varchar(16);not null;index"`
	Status         RunStatus      `gorm:"type:varchar(16);not null;index"`

	// 內部客戶追蹤欄位
	CustomerID    *string `gorm:"type:varchar(64)"`
	CustomerPhone *string `gorm:"type:varchar(32)"`

	// 重新送審時指向先前被拒絕的送審，形成淺層、無環的鏈，供管理員並排比較。
	OriginalSubmissionID *uuid.UUID `gorm:"type:uuid"`

	RejectionReason         *string `gorm:"type:text"`
	ShippingLabelURL        *string `gorm:"type:text"`
	AdminComparisonComments *string `gorm:"type:text"`

	Seller             *User    `gorm:"foreignKey:SellerID"`
	OriginalSubmission *Auction `gorm:"foreignKey:OriginalSubmissionID"`
	BidRecords         []Bid    `gorm:"foreignKey:AuctionID"`
}

// Biddable 回報拍賣目前是否接受出價。
func (a *Auction) Biddable() bool {
	return a.ApprovalStatus == ApprovalApproved && a.Status == StatusActive
}

// MinimumNextBid 回傳下一個可被接受的最低出價。
func (a *Auction) MinimumNextBid() int64 {
	return a.CurrentBid + a.MinimumIncrement
}
