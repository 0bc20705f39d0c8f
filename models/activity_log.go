package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLog 記錄管理員對拍賣做出的每一個決定，只新增、永不修改。
type ActivityLog struct {
	gorm.Model

	ID        uuid.UUID `gorm:"type:uuid;primaryKey;<-:create"`
	AuctionID uuid.UUID `gorm:"type:uuid;not null;index;<-:create"`
	AdminID   uuid.UUID `gorm:"type:uuid;not null;<-:create"`
	Action    string    `gorm:"type:varchar(32);not null;<-:create"`
	Detail    string    `gorm:"type:text;<-:create"`
}
