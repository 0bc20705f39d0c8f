package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/models"
)

// Store 組合資料層的全部操作。引擎元件應依賴較細的介面
// （AuctionStore、BidStore 等），而不是直接依賴這個根介面。
//
// 所有跨請求的不變量（價格單調、每人一筆保證金、先核准才能開賣）
// 都由這裡的交易邊界保證，應用層不持有任何跨實例的鎖。
type Store interface {
	AuctionStore
	BidStore
	DepositStore
	UserStore
}

// AuctionStore 定義拍賣生命週期所需的儲存操作。
// 狀態轉換一律是條件式更新：from 狀態不符時回傳 ErrStaleState，
// 讓重複的管理操作浮出錯誤而不是默默重寫。
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction *models.Auction) error
	GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error)

	// UpdateApproval 以 approval_status=from 為條件寫入一次核准決定，
	// 並在同一交易內寫入對應的活動紀錄。
	UpdateApproval(ctx context.Context, auction *models.Auction, from models.ApprovalStatus, entry *models.ActivityLog) error

	// SetRunStatus 以 status=from 為條件轉換 run state。
	SetRunStatus(ctx context.Context, id uuid.UUID, from, to models.RunStatus, entry *models.ActivityLog) error

	// DeleteAuction 刪除拍賣（僅限撤回尚未核准且沒有出價的送審）。
	DeleteAuction(ctx context.Context, id uuid.UUID) error

	// PromoteDueAuctions 將已核准、已排程且 start_time <= now 的拍賣轉為 active。
	// 只往前推進，重複執行是冪等的；回傳這次被推進的拍賣。
	PromoteDueAuctions(ctx context.Context, now time.Time) ([]models.Auction, error)

	// CompleteExpiredAuctions 將 active 且 end_time <= now 的拍賣轉為 completed。
	CompleteExpiredAuctions(ctx context.Context, now time.Time) ([]models.Auction, error)
}

// BidStore 定義出價提交與查詢。
type BidStore interface {
	// CommitBid 在單一交易內寫入 Bid 並把拍賣的 current_bid 更新為出價金額，
	// 條件是 current_bid 仍等於 expectedCurrentBid 且拍賣仍處於可出價狀態。
	// 條件不成立時回傳 ErrBidConflict，呼叫端需重新讀取狀態後決定是否重試。
	CommitBid(ctx context.Context, bid *models.Bid, expectedCurrentBid int64) error

	// ListBids 依提交順序（舊到新）回傳拍賣的全部出價。
	ListBids(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error)

	CountBids(ctx context.Context, auctionID uuid.UUID) (int64, error)
}

// DepositStore 定義保證金與其稽核帳本的儲存操作。
// 每個狀態轉換方法都在單一交易內完成 CAS 與帳本寫入。
type DepositStore interface {
	GetDeposit(ctx context.Context, id uuid.UUID) (*models.Deposit, error)
	GetDepositByUser(ctx context.Context, userID uuid.UUID) (*models.Deposit, error)

	// CreatePendingDeposit 以使用者為鍵 upsert 一筆 pending 保證金。
	// 既有紀錄為 completed 或 refund_requested 時回傳 ErrDuplicateDeposit。
	CreatePendingDeposit(ctx context.Context, deposit *models.Deposit, txn *models.DepositTransaction) error

	// MarkDepositCompleted 將 pending 轉為 completed 並記錄外部 capture id。
	MarkDepositCompleted(ctx context.Context, userID uuid.UUID, captureID string, txn *models.DepositTransaction) error

	// MarkRefundRequested 將 completed 轉為 refund_requested。
	MarkRefundRequested(ctx context.Context, userID uuid.UUID, txn *models.DepositTransaction) error

	// MarkDepositRefunded 在外部退款成功後將 refund_requested 轉為 refunded。
	MarkDepositRefunded(ctx context.Context, depositID uuid.UUID, refundedAt time.Time, txn *models.DepositTransaction) error

	// RestoreDepositCompleted 在管理員拒絕退款後將 refund_requested 還原為 completed。
	RestoreDepositCompleted(ctx context.Context, depositID uuid.UUID, txn *models.DepositTransaction) error

	ListDepositTransactions(ctx context.Context, depositID uuid.UUID) ([]models.DepositTransaction, error)
}

// UserStore 提供角色查詢，供每次特權操作重新驗證權限。
type UserStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}
