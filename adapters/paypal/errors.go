package paypal

import (
	"errors"
	"fmt"
)

// Error 包裝外部金流端的失敗，區分可重試（網路錯誤、逾時、5xx、429）
// 與終止性失敗（拒絕、無效請求等 4xx）。本地帳本絕不因外部失敗而前進。
type Error struct {
	Op         string
	StatusCode int
	Retryable  bool
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("paypal %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("paypal %s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable 回報錯誤是否值得以相同參數重試。
func IsRetryable(err error) bool {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Retryable
	}
	return false
}
