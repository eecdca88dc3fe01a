package errors

import "errors"

// ── 存储层原子操作结果 ──
// 由 Repository 返回，Service 层负责翻译为业务错误，调用方不会直接看到

var (
	// ErrInvitationInactive 邀请已被撤销（is_active = false）
	ErrInvitationInactive = errors.New("邀请已撤销")
	// ErrInvitationExpired 邀请已过期（expires_at 早于当前时间）
	ErrInvitationExpired = errors.New("邀请已过期")
	// ErrUsageLimitReached 邀请使用次数已达上限
	ErrUsageLimitReached = errors.New("邀请使用次数已达上限")
	// ErrAlreadyConsumed 同一主体已使用过该邀请
	ErrAlreadyConsumed = errors.New("该邀请已被此用户使用")
)
