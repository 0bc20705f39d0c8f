// Package deposit 管理出價保證金：透過外部金流建立與請款、
// 處理退款申請，並在每次狀態轉換時寫入只增不改的稽核帳本。
package deposit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/core"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/models"
	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/storage"
)

// PaymentClient 是外部金流的抽象，實作見 adapters/paypal。
type PaymentClient interface {
	CreateOrder(ctx context.Context, amount int64, currency string) (orderID, approveURL string, err error)
	CaptureOrder(ctx context.Context, orderID string) (captureID string, err error)
	RefundCapture(ctx context.Context, captureID string, amount int64, currency string) (refundID string, err error)
}

// Notifier 在退款決定落地後通知使用者。
// 通知失敗只記錄，不影響已提交的狀態轉換。
type Notifier interface {
	NotifyRefundDecision(ctx context.Context, userID uuid.UUID, approved bool, detail string) error
}

// Ledger 是保證金引擎，金額與幣別為全站固定設定。
type Ledger struct {
	store    storage.Store
	payments PaymentClient
	notifier Notifier
	amount   int64
	currency string
	logger   *slog.Logger
	now      func() time.Time
}

type LedgerOption func(*Ledger)

// WithLedgerLogger 設置日誌記錄器
func WithLedgerLogger(logger *slog.Logger) LedgerOption {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithLedgerNotifier 設置退款決定的通知器
func WithLedgerNotifier(notifier Notifier) LedgerOption {
	return func(l *Ledger) {
		l.notifier = notifier
	}
}

// WithLedgerClock 設置時間來源（測試用）
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger 建立保證金引擎，amount 以分為單位。
func NewLedger(store storage.Store, payments PaymentClient, amount int64, currency string, opts ...LedgerOption) *Ledger {
	ledger := &Ledger{
		store:    store,
		payments: payments,
		amount:   amount,
		currency: currency,
		logger:   slog.Default().With(slog.String("caller", "DepositLedger")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(ledger)
	}
	return ledger
}

// CreateDepositOrder 在外部金流建立訂單並登記一筆 pending 保證金。
// 使用者已有 completed 或 refund_requested 的保證金時回報 DepositAlreadyExistsError；
// pending 或 refunded 的舊紀錄會被新的訂單覆蓋。
func (l *Ledger) CreateDepositOrder(ctx context.Context, principal core.Principal) (*models.Deposit, string, error) {
	const op = "CreateDepositOrder"

	existing, err := l.store.GetDepositByUser(ctx, principal.UserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, "", fmt.Errorf("[%s] Fail to load deposit, err=%w", op, err)
	}
	if existing != nil && (existing.Status == models.DepositCompleted || existing.Status == models.DepositRefundRequested) {
		return nil, "", &core.DepositAlreadyExistsError{}
	}

	orderID, approveURL, err := l.payments.CreateOrder(ctx, l.amount, l.currency)
	if err != nil {
		return nil, "", fmt.Errorf("[%s] Fail to create payment order, err=%w", op, err)
	}

	dep := &models.Deposit{
		ID:            uuid.New(),
		UserID:        principal.UserID,
		Amount:        l.amount,
		Currency:      l.currency,
		Status:        models.DepositPending,
		PayPalOrderID: orderID,
	}
	txn := l.entry(dep, models.TxnDepositCreated, "payment order created")
	if err := l.store.CreatePendingDeposit(ctx, dep, txn); err != nil {
		if errors.Is(err, storage.ErrDuplicateDeposit) {
			return nil, "", &core.DepositAlreadyExistsError{}
		}
		return nil, "", fmt.Errorf("[%s] Fail to record pending deposit, err=%w", op, err)
	}

	l.logger.Info("Deposit order created",
		slog.String("userID", principal.UserID.String()),
		slog.String("orderID", orderID))
	return dep, approveURL, nil
}

// CaptureDeposit 在買家於外部完成付款後請款並將保證金轉為 completed。
// 外部請款失敗時保證金停在 pending，重新呼叫即可重試。
func (l *Ledger) CaptureDeposit(ctx context.Context, principal core.Principal, orderID string) (*models.Deposit, error) {
	const op = "CaptureDeposit"

	dep, err := l.store.GetDepositByUser(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &core.InvalidStateError{Op: "capture", Current: "no deposit"}
		}
		return nil, fmt.Errorf("[%s] Fail to load deposit, err=%w", op, err)
	}
	if dep.Status != models.DepositPending {
		return nil, &core.InvalidStateError{Op: "capture", Current: string(dep.Status)}
	}
	if dep.PayPalOrderID != orderID {
		return nil, &core.ValidationError{Field: "order_id", Reason: "does not match the pending deposit"}
	}

	captureID, err := l.payments.CaptureOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to capture payment order, err=%w", op, err)
	}

	txn := l.entry(dep, models.TxnDepositCompleted, "payment captured")
	if err := l.store.MarkDepositCompleted(ctx, principal.UserID, captureID, txn); err != nil {
		if errors.Is(err, storage.ErrStaleState) {
			return nil, &core.InvalidStateError{Op: "capture", Current: "already captured"}
		}
		return nil, fmt.Errorf("[%s] Fail to mark deposit completed, err=%w", op, err)
	}

	dep.Status = models.DepositCompleted
	dep.PayPalCaptureID = &captureID
	l.logger.Info("Deposit captured",
		slog.String("userID", principal.UserID.String()),
		slog.String("captureID", captureID))
	return dep, nil
}

// RequestRefund 讓使用者申請退還保證金，只有 completed 的保證金可申請。
// 申請後保證金進入 refund_requested，期間不得出價，等待管理員裁決。
func (l *Ledger) RequestRefund(ctx context.Context, principal core.Principal, reason string) (*models.Deposit, error) {
	const op = "RequestRefund"

	dep, err := l.store.GetDepositByUser(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &core.InvalidStateError{Op: "refund_request", Current: "no deposit"}
		}
		return nil, fmt.Errorf("[%s] Fail to load deposit, err=%w", op, err)
	}
	if dep.Status != models.DepositCompleted {
		return nil, &core.InvalidStateError{Op: "refund_request", Current: string(dep.Status)}
	}

	txn := l.entry(dep, models.TxnRefundRequested, reason)
	if err := l.store.MarkRefundRequested(ctx, principal.UserID, txn); err != nil {
		if errors.Is(err, storage.ErrStaleState) {
			return nil, &core.InvalidStateError{Op: "refund_request", Current: string(dep.Status)}
		}
		return nil, fmt.Errorf("[%s] Fail to mark refund requested, err=%w", op, err)
	}

	dep.Status = models.DepositRefundRequested
	l.logger.Info("Refund requested", slog.String("userID", principal.UserID.String()))
	return dep, nil
}

// ProcessRefund 是管理員對退款申請的裁決。
// 核准時必須先在外部金流退款成功，保證金才會轉為 refunded；
// 外部退款失敗時保證金停在 refund_requested，之後可以重試。
// 拒絕時保證金還原為 completed，使用者恢復出價資格。
func (l *Ledger) ProcessRefund(ctx context.Context, principal core.Principal, depositID uuid.UUID, approve bool, detail string) (*models.Deposit, error) {
	const op = "ProcessRefund"

	admin, err := l.store.GetUser(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &core.AuthorizationError{Reason: "unknown user"}
		}
		return nil, fmt.Errorf("[%s] Fail to load admin, err=%w", op, err)
	}
	if admin.Role != models.RoleAdmin {
		return nil, &core.AuthorizationError{Reason: "admin role required"}
	}

	dep, err := l.store.GetDeposit(ctx, depositID)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load deposit, err=%w", op, err)
	}
	if dep.Status != models.DepositRefundRequested {
		return nil, &core.InvalidStateError{Op: "refund_process", Current: string(dep.Status)}
	}

	if approve {
		if dep.PayPalCaptureID == nil {
			return nil, &core.InvalidStateError{Op: "refund_process", Current: "deposit was never captured"}
		}
		refundID, err := l.payments.RefundCapture(ctx, *dep.PayPalCaptureID, dep.Amount, dep.Currency)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to refund capture, err=%w", op, err)
		}
		refundedAt := l.now()
		txn := l.entry(dep, models.TxnRefundApproved, fmt.Sprintf("refund %s: %s", refundID, detail))
		if err := l.store.MarkDepositRefunded(ctx, depositID, refundedAt, txn); err != nil {
			if errors.Is(err, storage.ErrStaleState) {
				return nil, &core.InvalidStateError{Op: "refund_process", Current: "already decided"}
			}
			return nil, fmt.Errorf("[%s] Fail to mark deposit refunded, err=%w", op, err)
		}
		dep.Status = models.DepositRefunded
		dep.RefundedAt = &refundedAt
	} else {
		txn := l.entry(dep, models.TxnRefundRejected, detail)
		if err := l.store.RestoreDepositCompleted(ctx, depositID, txn); err != nil {
			if errors.Is(err, storage.ErrStaleState) {
				return nil, &core.InvalidStateError{Op: "refund_process", Current: "already decided"}
			}
			return nil, fmt.Errorf("[%s] Fail to restore deposit, err=%w", op, err)
		}
		dep.Status = models.DepositCompleted
	}

	l.logger.Info("Refund processed",
		slog.String("depositID", depositID.String()),
		slog.Bool("approved", approve),
		slog.String("adminID", principal.UserID.String()))
	l.notify(ctx, dep.UserID, approve, detail)
	return dep, nil
}

// Transactions 回傳一筆保證金的完整稽核帳本，依寫入順序排列。
func (l *Ledger) Transactions(ctx context.Context, depositID uuid.UUID) ([]models.DepositTransaction, error) {
	const op = "Transactions"
	txns, err := l.store.ListDepositTransactions(ctx, depositID)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to list deposit transactions, err=%w", op, err)
	}
	return txns, nil
}

func (l *Ledger) entry(dep *models.Deposit, kind models.TransactionType, description string) *models.DepositTransaction {
	return &models.DepositTransaction{
		ID:          uuid.New(),
		DepositID:   dep.ID,
		Type:        kind,
		Amount:      dep.Amount,
		Currency:    dep.Currency,
		Description: description,
	}
}

func (l *Ledger) notify(ctx context.Context, userID uuid.UUID, approved bool, detail string) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.NotifyRefundDecision(ctx, userID, approved, detail); err != nil {
		l.logger.Error("Fail to notify refund decision",
			slog.String("userID", userID.String()),
			slog.Any("error", err))
	}
}
