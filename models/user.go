package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role 代表使用者在平台上的角色。
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User 代表拍賣系統中的使用者。
// 角色在每次特權操作時重新查詢，不依賴請求夾帶的旗標。
type User struct {
	gorm.Model

	ID       uuid.UUID `gorm:"type:uuid;primaryKey;<-:create"`
	Username string    `gorm:"type:varchar(255);not null"`
	Role     Role      `gorm:"type:varchar(16);not null;default:'user'"`
}
