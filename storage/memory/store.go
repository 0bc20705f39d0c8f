// Package memory 以行程內的資料結構實作 storage.Store。
// 與 postgres 實作共用同一組 CAS 語意，所有條件檢查與寫入都在
// 同一把鎖內完成，因此可以直接用在引擎的併發測試與單機執行。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/models"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/storage"
)

// Store 是 storage.Store 的行程內實作。
type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]models.User
	auctions map[uuid.UUID]models.Auction
	bids     map[uuid.UUID][]models.Bid                 // auction id -> 依提交順序
	deposits map[uuid.UUID]models.Deposit               // deposit id -> row
	userSlot map[uuid.UUID]uuid.UUID                    // user id -> deposit id
	txns     map[uuid.UUID][]models.DepositTransaction // deposit id -> 依寫入順序
	activity []models.ActivityLog
}

var _ storage.Store = (*Store)(nil)

// New 建立空的行程內 Store。
func New() *Store {
	return &Store{
		users:    make(map[uuid.UUID]models.User),
		auctions: make(map[uuid.UUID]models.Auction),
		bids:     make(map[uuid.UUID][]models.Bid),
		deposits: make(map[uuid.UUID]models.Deposit),
		userSlot: make(map[uuid.UUID]uuid.UUID),
		txns:     make(map[uuid.UUID][]models.DepositTransaction),
	}
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &user, nil
}

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
	return nil
}

func (s *Store) CreateAuction(_ context.Context, auction *models.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	auction.CreatedAt = time.Now()
	s.auctions[auction.ID] = *auction
	return nil
}

func (s *Store) GetAuction(_ context.Context, id uuid.UUID) (*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	auction, ok := s.auctions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &auction, nil
}

func (s *Store) UpdateApproval(_ context.Context, auction *models.Auction, from models.ApprovalStatus, entry *models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.auctions[auction.ID]
	if !ok || current.ApprovalStatus != from {
		return storage.ErrStaleState
	}
	if !models.LegalState(auction.ApprovalStatus, auction.Status) {
		return storage.ErrIllegalState
	}
	current.ApprovalStatus = auction.ApprovalStatus
	current.Status = auction.Status
	current.RejectionReason = auction.RejectionReason
	current.ShippingLabelURL = auction.ShippingLabelURL
	current.AdminComparisonComments = auction.AdminComparisonComments
	s.auctions[auction.ID] = current
	if entry != nil {
		s.activity = append(s.activity, *entry)
	}
	return nil
}

func (s *Store) SetRunStatus(_ context.Context, id uuid.UUID, from, to models.RunStatus, entry *models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.auctions[id]
	if !ok || current.Status != from {
		return storage.ErrStaleState
	}
	if !models.LegalState(current.ApprovalStatus, to) {
		return storage.ErrIllegalState
	}
	current.Status = to
	s.auctions[id] = current
	if entry != nil {
		s.activity = append(s.activity, *entry)
	}
	return nil
}

func (s *Store) DeleteAuction(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.auctions[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.auctions, id)
	delete(s.bids, id)
	return nil
}

func (s *Store) PromoteDueAuctions(_ context.Context, now time.Time) ([]models.Auction, error) {
	return s.sweep(now, models.StatusPending, models.StatusActive, func(a models.Auction) bool {
		return !a.StartTime.After(now)
	}), nil
}

func (s *Store) CompleteExpiredAuctions(_ context.Context, now time.Time) ([]models.Auction, error) {
	return s.sweep(now, models.StatusActive, models.StatusCompleted, func(a models.Auction) bool {
		return !a.EndTime.After(now)
	}), nil
}

func (s *Store) sweep(_ time.Time, from, to models.RunStatus, due func(models.Auction) bool) []models.Auction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var moved []models.Auction
	for id, auction := range s.auctions {
		if auction.ApprovalStatus != models.ApprovalApproved || auction.Status != from || !due(auction) {
			continue
		}
		auction.Status = to
		s.auctions[id] = auction
		moved = append(moved, auction)
	}
	sort.Slice(moved, func(i, j int) bool { return moved[i].ID.String() < moved[j].ID.String() })
	return moved
}

func (s *Store) CommitBid(_ context.Context, bid *models.Bid, expectedCurrentBid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	auction, ok := s.auctions[bid.AuctionID]
	if !ok || !auction.Biddable() || auction.CurrentBid != expectedCurrentBid {
		return storage.ErrBidConflict
	}
	auction.CurrentBid = bid.Amount
	s.auctions[bid.AuctionID] = auction
	bid.CreatedAt = time.Now()
	s.bids[bid.AuctionID] = append(s.bids[bid.AuctionID], *bid)
	return nil
}

func (s *Store) ListBids(_ context.Context, auctionID uuid.UUID) ([]models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bids := make([]models.Bid, len(s.bids[auctionID]))
	copy(bids, s.bids[auctionID])
	return bids, nil
}

func (s *Store) CountBids(_ context.Context, auctionID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.bids[auctionID])), nil
}

func (s *Store) GetDeposit(_ context.Context, id uuid.UUID) (*models.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	deposit, ok := s.deposits[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &deposit, nil
}

func (s *Store) GetDepositByUser(_ context.Context, userID uuid.UUID) (*models.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userSlot[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	deposit := s.deposits[id]
	return &deposit, nil
}

func (s *Store) CreatePendingDeposit(_ context.Context, deposit *models.Deposit, txn *models.DepositTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existingID, ok := s.userSlot[deposit.UserID]; ok {
		existing := s.deposits[existingID]
		if existing.Status == models.DepositCompleted || existing.Status == models.DepositRefundRequested {
			return storage.ErrDuplicateDeposit
		}
		deposit.ID = existingID
	}
	deposit.Status = models.DepositPending
	deposit.PayPalCaptureID = nil
	deposit.RefundedAt = nil
	s.deposits[deposit.ID] = *deposit
	s.userSlot[deposit.UserID] = deposit.ID
	s.appendTxn(deposit.ID, txn)
	return nil
}

func (s *Store) MarkDepositCompleted(_ context.Context, userID uuid.UUID, captureID string, txn *models.DepositTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.userSlot[userID]
	if !ok {
		return storage.ErrStaleState
	}
	deposit := s.deposits[id]
	if deposit.Status != models.DepositPending {
		return storage.ErrStaleState
	}
	deposit.Status = models.DepositCompleted
	deposit.PayPalCaptureID = &captureID
	s.deposits[id] = deposit
	s.appendTxn(id, txn)
	return nil
}

func (s *Store) MarkRefundRequested(_ context.Context, userID uuid.UUID, txn *models.DepositTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.userSlot[userID]
	if !ok {
		return storage.ErrStaleState
	}
	deposit := s.deposits[id]
	if deposit.Status != models.DepositCompleted {
		return storage.ErrStaleState
	}
	deposit.Status = models.DepositRefundRequested
	s.deposits[id] = deposit
	s.appendTxn(id, txn)
	return nil
}

func (s *Store) MarkDepositRefunded(_ context.Context, depositID uuid.UUID, refundedAt time.Time, txn *models.DepositTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deposit, ok := s.deposits[depositID]
	if !ok || deposit.Status != models.DepositRefundRequested {
		return storage.ErrStaleState
	}
	deposit.Status = models.DepositRefunded
	deposit.RefundedAt = &refundedAt
	s.deposits[depositID] = deposit
	s.appendTxn(depositID, txn)
	return nil
}

func (s *Store) RestoreDepositCompleted(_ context.Context, depositID uuid.UUID, txn *models.DepositTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deposit, ok := s.deposits[depositID]
	if !ok || deposit.Status != models.DepositRefundRequested {
		return storage.ErrStaleState
	}
	deposit.Status = models.DepositCompleted
	s.deposits[depositID] = deposit
	s.appendTxn(depositID, txn)
	return nil
}

func (s *Store) ListDepositTransactions(_ context.Context, depositID uuid.UUID) ([]models.DepositTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txns := make([]models.DepositTransaction, len(s.txns[depositID]))
	copy(txns, s.txns[depositID])
	return txns, nil
}

// ActivityEntries 回傳至今寫入的活動紀錄，測試用。
func (s *Store) ActivityEntries() []models.ActivityLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]models.ActivityLog, len(s.activity))
	copy(entries, s.activity)
	return entries
}

func (s *Store) appendTxn(depositID uuid.UUID, txn *models.DepositTransaction) {
	if txn == nil {
		return
	}
	txn.DepositID = depositID
	txn.CreatedAt = time.Now()
	s.txns[depositID] = append(s.txns[depositID], *txn)
}
