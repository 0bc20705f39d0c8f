// Package postgres 以 gorm + PostgreSQL 實作 storage.Store。
// 所有條件式更新都以單一 SQL 敘述或單一交易完成，
// 讓多個服務實例併發寫入時仍由資料庫的隔離性保證正確。
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/models"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/storage"
)

// Store 是 storage.Store 的 PostgreSQL 實作。
type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

// Open 建立資料庫連線並執行 schema migration。
func Open(dsn, tableSchema string) (*gorm.DB, error) {
	const op = "postgres.Open"
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: tableSchema + ".",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to connect to database, err=%w", op, err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Auction{},
		&models.Bid{},
		&models.Deposit{},
		&models.DepositTransaction{},
		&models.ActivityLog{},
	); err != nil {
		return nil, fmt.Errorf("[%s] Fail to migrate schema, err=%w", op, err)
	}
	return db, nil
}

// New 以既有的 gorm 連線建立 Store。
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// translate 將 gorm 的錯誤轉成 storage 層的 sentinel。
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

// translateDuplicate 將唯一索引衝突轉成 ErrDuplicateDeposit。
// 需要 gorm.Config 開啟 TranslateError 才會拿到 ErrDuplicatedKey。
func translateDuplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrDuplicateDeposit
	}
	return err
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "postgres.GetUser"
	var user models.User
	if result := s.db.WithContext(ctx).First(&user, "id = ?", id); result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to find user, err=%w", op, translate(result.Error))
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	const op = "postgres.CreateUser"
	if result := s.db.WithContext(ctx).Create(user); result.Error != nil {
		return fmt.Errorf("[%s] Fail to create user, err=%w", op, result.Error)
	}
	return nil
}
