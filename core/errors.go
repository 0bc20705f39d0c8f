package core

import (
	"fmt"
	"time"
)

// 本套件定義整個競標引擎對外的錯誤分類。
// 每個操作都必須回傳其中一種分類（或包裝後的底層錯誤），
// 呼叫端透過 errors.As 判斷錯誤種類並決定如何反應。

// ValidationError 表示輸入的格式或範圍不合法，呼叫端修正輸入後可重試。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// InvalidStateError 表示操作在目前的生命週期狀態下不合法，
// 例如對已核准的拍賣再次執行核准。
type InvalidStateError struct {
	Op      string
	Current string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s is not allowed in state %q", e.Op, e.Current)
}

// AuctionNotBiddableError 表示拍賣目前不接受出價，
// 涵蓋尚未開始、暫停、已結束、已拒絕等所有非 active 狀態。
type AuctionNotBiddableError struct {
	ApprovalStatus string
	Status         string
}

func (e *AuctionNotBiddableError) Error() string {
	return fmt.Sprintf("auction is not biddable (approval=%s, status=%s)", e.ApprovalStatus, e.Status)
}

// DepositRequiredError 表示使用者沒有已完成的保證金，不具出價資格。
type DepositRequiredError struct{}

func (e *DepositRequiredError) Error() string {
	return "a completed deposit is required before bidding"
}

// BidTooLowError 表示出價低於目前底價加上最低加價幅度。
// Minimum 是目前可被接受的最低出價，讓呼叫端可以直接重試。
type BidTooLowError struct {
	Minimum int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid is below the required minimum of %d", e.Minimum)
}

// RateLimitError 表示使用者在時間窗口內的出價次數已達上限。
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("bid rate limit exceeded, retry after %s", e.RetryAfter)
}

// ConcurrentBidConflictError 表示出價提交時底價已被其他出價更新，
// 且自動重試一次後仍然失敗。屬於暫時性錯誤，呼叫端應重新讀取狀態後重試。
type ConcurrentBidConflictError struct {
	CurrentBid int64
}

func (e *ConcurrentBidConflictError) Error() string {
	return fmt.Sprintf("bid lost the commit race, current bid is now %d", e.CurrentBid)
}

// DepositAlreadyExistsError 表示使用者已持有有效的保證金。
type DepositAlreadyExistsError struct{}

func (e *DepositAlreadyExistsError) Error() string {
	return "an active deposit already exists for this user"
}

// AuthorizationError 表示主體沒有執行該操作的權限，
// 例如非管理員執行管理操作，或操作他人的資源。
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized: %s", e.Reason)
}
