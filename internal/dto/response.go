package dto

import "time"

// TimeLayout 响应中时间字段统一格式
const TimeLayout = time.RFC3339

// FormatTime 统一转 UTC 后格式化
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ── 认证模块响应 ──

// TokenResponse 登录 / 注册成功后返回的访问凭证
type TokenResponse struct {
	AccessToken string          `json:"accessToken"`
	TokenType   string          `json:"tokenType"`
	ExpiresIn   int             `json:"expiresIn"` // 有效期（秒）
	ExpiresAt   string          `json:"expiresAt"`
	Subject     SubjectResponse `json:"subject"`
}

// SubjectResponse 当前主体简要信息
type SubjectResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"` // instructor | student
}

// LogoutResponse 登出结果
type LogoutResponse struct {
	LoggedOut bool `json:"loggedOut"`
}

// DeleteAccountResponse 注销账号结果
type DeleteAccountResponse struct {
	Deleted bool `json:"deleted"`
}
