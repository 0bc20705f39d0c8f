package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/models"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/storage"
)

func (s *Store) GetDeposit(ctx context.Context, id uuid.UUID) (*models.Deposit, error) {
	const op = "postgres.GetDeposit"
	var deposit models.Deposit
	if result := s.db.WithContext(ctx).First(&deposit, "id = ?", id); result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to find deposit, err=%w", op, translate(result.Error))
	}
	return &deposit, nil
}

func (s *Store) GetDepositByUser(ctx context.Context, userID uuid.UUID) (*models.Deposit, error) {
	const op = "postgres.GetDepositByUser"
	var deposit models.Deposit
	if result := s.db.WithContext(ctx).First(&deposit, "user_id = ?", userID); result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to find deposit, err=%w", op, translate(result.Error))
	}
	return &deposit, nil
}

// CreatePendingDeposit 以使用者為鍵 upsert 一筆 pending 保證金。
// 每位使用者只有一個保證金欄位：pending 或 refunded 的舊紀錄會被新的結帳
// 覆寫（重新出發），completed 與 refund_requested 則受保護。
func (s *Store) CreatePendingDeposit(ctx context.Context, deposit *models.Deposit, txn *models.DepositTransaction) error {
	const op = "postgres.CreatePendingDeposit"
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Deposit
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&existing, "user_id = ?", deposit.UserID)
		switch {
		case errors.Is(result.Error, gorm.ErrRecordNotFound):
			// 兩個首次結帳可能同時走進這裡：先鎖的那筆還不存在，輸家
			// 會撞上 user_id 的唯一索引，視同重複而非內部錯誤。
			if result := tx.Create(deposit); result.Error != nil {
				return translateDuplicate(result.Error)
			}
		case result.Error != nil:
			return result.Error
		case existing.Status == models.DepositCompleted || existing.Status == models.DepositRefundRequested:
			return storage.ErrDuplicateDeposit
		default:
			// 重用既有欄位：保留 ID，重設內容為新的 pending 結帳
			deposit.ID = existing.ID
			if result := tx.Model(&models.Deposit{}).
				Where("id = ?", existing.ID).
				Updates(map[string]any{
					"status":             models.DepositPending,
					"amount":             deposit.Amount,
					"currency":           deposit.Currency,
					"pay_pal_order_id":   deposit.PayPalOrderID,
					"pay_pal_capture_id": nil,
					"refunded_at":        nil,
				}); result.Error != nil {
				return result.Error
			}
		}
		txn.DepositID = deposit.ID
		return tx.Create(txn).Error
	})
	if err != nil {
		return fmt.Errorf("[%s] Fail to create pending deposit, err=%w", op, err)
	}
	return nil
}

// transitionDeposit 在單一交易內完成狀態 CAS、欄位更新與帳本寫入。
func (s *Store) transitionDeposit(ctx context.Context, cond map[string]any, from models.DepositStatus, updates map[string]any, txn *models.DepositTransaction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var deposit models.Deposit
		query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("status = ?", from)
		for field, value := range cond {
			query = query.Where(field+" = ?", value)
		}
		if result := query.First(&deposit); result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return storage.ErrStaleState
			}
			return result.Error
		}
		if result := tx.Model(&models.Deposit{}).Where("id = ?", deposit.ID).Updates(updates); result.Error != nil {
			return result.Error
		}
		txn.DepositID = deposit.ID
		return tx.Create(txn).Error
	})
}

func (s *Store) MarkDepositCompleted(ctx context.Context, userID uuid.UUID, captureID string, txn *models.DepositTransaction) error {
	const op = "postgres.MarkDepositCompleted"
	err := s.transitionDeposit(ctx,
		map[string]any{"user_id": userID},
		models.DepositPending,
		map[string]any{"status": models.DepositCompleted, "pay_pal_capture_id": captureID},
		txn,
	)
	if err != nil {
		return fmt.Errorf("[%s] Fail to mark deposit completed, err=%w", op, err)
	}
	return nil
}

func (s *Store) MarkRefundRequested(ctx context.Context, userID uuid.UUID, txn *models.DepositTransaction) error {
	const op = "postgres.MarkRefundRequested"
	err := s.transitionDeposit(ctx,
		map[string]any{"user_id": userID},
		models.DepositCompleted,
		map[string]any{"status": models.DepositRefundRequested},
		txn,
	)
	if err != nil {
		return fmt.Errorf("[%s] Fail to mark refund requested, err=%w", op, err)
	}
	return nil
}

func (s *Store) MarkDepositRefunded(ctx context.Context, depositID uuid.UUID, refundedAt time.Time, txn *models.DepositTransaction) error {
	const op = "postgres.MarkDepositRefunded"
	err := s.transitionDeposit(ctx,
		map[string]any{"id": depositID},
		models.DepositRefundRequested,
		map[string]any{"status": models.DepositRefunded, "refunded_at": refundedAt},
		txn,
	)
	if err != nil {
		return fmt.Errorf("[%s] Fail to mark deposit refunded, err=%w", op, err)
	}
	return nil
}

func (s *Store) RestoreDepositCompleted(ctx context.Context, depositID uuid.UUID, txn *models.DepositTransaction) error {
	const op = "postgres.RestoreDepositCompleted"
	err := s.transitionDeposit(ctx,
		map[string]any{"id": depositID},
		models.DepositRefundRequested,
		map[string]any{"status": models.DepositCompleted},
		txn,
	)
	if err != nil {
		return fmt.Errorf("[%s] Fail to restore deposit, err=%w", op, err)
	}
	return nil
}

func (s *Store) ListDepositTransactions(ctx context.Context, depositID uuid.UUID) ([]models.DepositTransaction, error) {
	const op = "postgres.ListDepositTransactions"
	var txns []models.DepositTransaction
	result := s.db.WithContext(ctx).
		Where("deposit_id = ?", depositID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}}).
		Find(&txns)
	if result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to list deposit transactions, err=%w", op, result.Error)
	}
	return txns, nil
}
