package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DepositStatus 代表保證金的目前狀態。
// completed 是唯一允許出價的狀態；refunded 只能在外部退款成功後寫入。
type DepositStatus string

const (
	DepositPending         DepositStatus = "pending"
	DepositCompleted       DepositStatus = "completed"
	DepositRefundRequested DepositStatus = "refund_requested"
	DepositRefunded        DepositStatus = "refunded"
)

// Deposit 代表一位出價者的可退還保證金，每位使用者至多一筆有效紀錄。
type Deposit struct {
	gorm.Model

	ID       uuid.UUID     `gorm:"type:uuid;primaryKey;<-:create"`
	UserID   uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_deposits_user_id,where:deleted_at IS NULL"`
	Amount   int64         `gorm:"type:bigint;not null"`
	Currency string        `gorm:"type:varchar(3);not null"`
	Status   DepositStatus `gorm:"type:varchar(32);not null;index"`

	PayPalOrderID   string     `gorm:"type:varchar(64);not null"`
	PayPalCaptureID *string    `gorm:"type:varchar(64)"`
	RefundedAt      *time.Time `gorm:"type:timestamp with time zone"`

	User *User `gorm:"foreignKey:UserID"`
}

// TransactionType 標記保證金帳本中每筆異動的種類。
type TransactionType string

const (
	TxnDepositCreated   TransactionType = "deposit_created"
	TxnDepositCompleted TransactionType = "deposit_completed"
	TxnRefundRequested  TransactionType = "refund_requested"
	TxnRefundApproved   TransactionType = "refund_approved"
	TxnRefundRejected   TransactionType = "refund_rejected"
)

// DepositTransaction 是保證金的稽核帳本，每次狀態轉換寫入一筆，
// 只新增、永不修改，供對帳與稽核使用。
type DepositTransaction struct {
	gorm.Model

	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;<-:create"`
	DepositID   uuid.UUID       `gorm:"type:uuid;not null;index;<-:create"`
	Type        TransactionType `gorm:"type:varchar(32);not null;<-:create"`
	Amount      int64           `gorm:"type:bigint;not null;<-:create"`
	Currency    string          `gorm:"type:varchar(3);not null;<-:create"`
	Description string          `gorm:"type:text;<-:create"`

	Deposit *Deposit `gorm:"foreignKey:DepositID"`
}
