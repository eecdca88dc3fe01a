package dto

// ── 认证模块 DTO ──

// RegisterRequest 讲师 / 学员注册请求
type RegisterRequest struct {
	Name            string `json:"name"             binding:"required,min=2,max=100"`
	Email           string `json:"email"            binding:"required,email,max=255"`
	Password        string `json:"password"         binding:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirmPassword"  binding:"required,eqfield=Password"`
	Bio             string `json:"bio"              binding:"max=2000"` // 仅讲师使用
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
