package models

// ApprovalStatus 代表管理員對送審商品的一次性決定。
// rejected 是終止狀態，approved 之後才允許 run state 的任何轉換。
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// RunStatus 代表拍賣目前是否接受出價。
type RunStatus string

const (
	StatusPending   RunStatus = "pending" // 已排程但尚未開始
	StatusActive    RunStatus = "active"
	StatusPaused    RunStatus = "paused"
	StatusCompleted RunStatus = "completed"
	StatusRejected  RunStatus = "rejected"
)

// legalStates 列舉 (approval_status, status) 的合法組合。
// 兩個狀態欄位是正交的，用明確的表避免出現「rejected 卻 active」這種非法狀態。
var legalStates = map[ApprovalStatus]map[RunStatus]struct{}{
	ApprovalPending: {
		StatusPending: {},
	},
	ApprovalApproved: {
		StatusPending:   {},
		StatusActive:    {},
		StatusPaused:    {},
		StatusCompleted: {},
	},
	ApprovalRejected: {
		StatusRejected: {},
	},
}

// LegalState 回報該組合是否合法。所有會寫入這兩個欄位的路徑都應先經過此檢查。
func LegalState(approval ApprovalStatus, status RunStatus) bool {
	allowed, ok := legalStates[approval]
	if !ok {
		return false
	}
	_, ok = allowed[status]
	return ok
}
