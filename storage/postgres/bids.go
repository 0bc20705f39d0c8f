package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/models"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/storage"
)

// CommitBid 是出價熱路徑的提交點：在單一交易內寫入 Bid 並把
// current_bid 從 expectedCurrentBid 更新為出價金額。
// UPDATE 的 WHERE 同時鎖定價格與可出價狀態，兩個同額出價競爭時
// 只有一個 UPDATE 會命中，輸家拿到 ErrBidConflict。
func (s *Store) CommitBid(ctx context.Context, bid *models.Bid, expectedCurrentBid int64) error {
	const op = "postgres.CommitBid"
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Auction{}).
			Where("id = ? AND approval_status = ? AND status = ? AND current_bid = ?",
				bid.AuctionID, models.ApprovalApproved, models.StatusActive, expectedCurrentBid).
			Update("current_bid", bid.Amount)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrBidConflict
		}
		return tx.Create(bid).Error
	})
	if err != nil {
		return fmt.Errorf("[%s] Fail to commit bid, err=%w", op, err)
	}
	return nil
}

func (s *Store) ListBids(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error) {
	const op = "postgres.ListBids"
	var bids []models.Bid
	result := s.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "bid_time"}}).
		Find(&bids)
	if result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to list bids, err=%w", op, result.Error)
	}
	return bids, nil
}

func (s *Store) CountBids(ctx context.Context, auctionID uuid.UUID) (int64, error) {
	const op = "postgres.CountBids"
	var count int64
	result := s.db.WithContext(ctx).Model(&models.Bid{}).
		Where("auction_id = ?", auctionID).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("[%s] Fail to count bids, err=%w", op, result.Error)
	}
	return count, nil
}
