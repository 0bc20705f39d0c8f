package core

import "github.com/google/uuid"

// Principal 代表一次請求中已通過身分驗證的主體。
// 身分提供者只負責證明「這個人是誰」，角色權限一律在各操作內
// 重新向資料庫查證，不信任快取的旗標。
type Principal struct {
	UserID   uuid.UUID
	Username string
}
