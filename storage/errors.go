package storage

import "errors"

var (
	// ErrNotFound 表示查詢的紀錄不存在。
	ErrNotFound = errors.New("storage: record not found")

	// ErrStaleState 表示條件式更新時狀態已與讀取當下不同，CAS 失敗。
	ErrStaleState = errors.New("storage: state changed since read")

	// ErrBidConflict 表示提交出價時 current_bid 已被其他出價更新。
	ErrBidConflict = errors.New("storage: current bid changed since read")

	// ErrDuplicateDeposit 表示該使用者已持有不可被覆蓋的保證金紀錄。
	ErrDuplicateDeposit = errors.New("storage: deposit slot is occupied")

	// ErrIllegalState 表示寫入會產生不合法的 (approval_status, status) 組合，
	// 例如「rejected 卻 active」。合法組合見 models.LegalState。
	ErrIllegalState = errors.New("storage: illegal state combination")
)
