package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/models"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/storage"
)

func (s *Store) CreateAuction(ctx context.Context, auction *models.Auction) error {
	const op = "postgres.CreateAuction"
	if result := s.db.WithContext(ctx).Create(auction); result.Error != nil {
		return fmt.Errorf("[%s] Fail to create auction, err=%w", op, result.Error)
	}
	return nil
}

func (s *Store) GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	const op = "postgres.GetAuction"
	var auction models.Auction
	if result := s.db.WithContext(ctx).First(&auction, "id = ?", id); result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to find auction, err=%w", op, translate(result.Error))
	}
	return &auction, nil
}

// UpdateApproval 以 approval_status=from 為條件寫入核准決定與活動紀錄。
// 條件不符（已被其他管理員處理過）時回傳 ErrStaleState，不會覆寫先前的決定。
func (s *Store) UpdateApproval(ctx context.Context, auction *models.Auction, from models.ApprovalStatus, entry *models.ActivityLog) error {
	const op = "postgres.UpdateApproval"
	if !models.LegalState(auction.ApprovalStatus, auction.Status) {
		return fmt.Errorf("[%s] Fail to update approval, err=%w", op, storage.ErrIllegalState)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Auction{}).
			Where("id = ? AND approval_status = ?", auction.ID, from).
			Updates(map[string]any{
				"approval_status":           auction.ApprovalStatus,
				"status":                    auction.Status,
				"rejection_reason":          auction.RejectionReason,
				"shipping_label_url":        auction.ShippingLabelURL,
				"admin_comparison_comments": auction.AdminComparisonComments,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrStaleState
		}
		if entry != nil {
			if result := tx.Create(entry); result.Error != nil {
				return result.Error
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("[%s] Fail to update approval, err=%w", op, err)
	}
	return nil
}

// SetRunStatus 以 status=from 為條件轉換 run state。
func (s *Store) SetRunStatus(ctx context.Context, id uuid.UUID, from, to models.RunStatus, entry *models.ActivityLog) error {
	const op = "postgres.SetRunStatus"
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Auction
		if result := tx.Select("approval_status").First(&current, "id = ?", id); result.Error != nil {
			return translate(result.Error)
		}
		if !models.LegalState(current.ApprovalStatus, to) {
			return storage.ErrIllegalState
		}
		result := tx.Model(&models.Auction{}).
			Where("id = ? AND status = ?", id, from).
			Update("status", to)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrStaleState
		}
		if entry != nil {
			if result := tx.Create(entry); result.Error != nil {
				return result.Error
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("[%s] Fail to set run status, err=%w", op, err)
	}
	return nil
}

func (s *Store) DeleteAuction(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.DeleteAuction"
	result := s.db.WithContext(ctx).Unscoped().Delete(&models.Auction{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("[%s] Fail to delete auction, err=%w", op, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("[%s] Fail to delete auction, err=%w", op, storage.ErrNotFound)
	}
	return nil
}

// sweepStatus 在單一交易內把符合條件的拍賣從 from 推進到 to，並回傳被推進的列。
// 條件式 UPDATE 讓多個實例同時掃描時每一列只會被推進一次。
func (s *Store) sweepStatus(ctx context.Context, cond string, now time.Time, from, to models.RunStatus) ([]models.Auction, error) {
	var moved []models.Auction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uuid.UUID
		if result := tx.Model(&models.Auction{}).
			Where("approval_status = ? AND status = ? AND "+cond, models.ApprovalApproved, from, now).
			Pluck("id", &ids); result.Error != nil {
			return result.Error
		}
		if len(ids) == 0 {
			return nil
		}
		if result := tx.Model(&models.Auction{}).
			Where("id IN ? AND status = ?", ids, from).
			Update("status", to); result.Error != nil {
			return result.Error
		}
		return tx.Where("id IN ? AND status = ?", ids, to).Find(&moved).Error
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func (s *Store) PromoteDueAuctions(ctx context.Context, now time.Time) ([]models.Auction, error) {
	const op = "postgres.PromoteDueAuctions"
	moved, err := s.sweepStatus(ctx, "start_time <= ?", now, models.StatusPending, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to promote due auctions, err=%w", op, err)
	}
	return moved, nil
}

func (s *Store) CompleteExpiredAuctions(ctx context.Context, now time.Time) ([]models.Auction, error) {
	const op = "postgres.CompleteExpiredAuctions"
	moved, err := s.sweepStatus(ctx, "end_time <= ?", now, models.StatusActive, models.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to complete expired auctions, err=%w", op, err)
	}
	return moved, nil
}
