package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"conduzauto/backend/internal/dto"
	"conduzauto/backend/internal/service"
	"conduzauto/backend/pkg/response"
)

// InvitationHandler 邀请模块 HTTP 处理器
type InvitationHandler struct {
	issuer service.CodeIssuer
	links  service.LinkManager
}

// NewInvitationHandler 创建 InvitationHandler
func NewInvitationHandler(issuer service.CodeIssuer, links service.LinkManager) *InvitationHandler {
	return &InvitationHandler{issuer: issuer, links: links}
}

// Issue 生成邀请（请求体可省略）
// POST /api/v1/invitations
func (h *InvitationHandler) Issue(c *gin.Context) {
	issuerID, ok := MustGetSubjectID(c)
	if !ok {
		return
	}

	var req dto.IssueInvitationRequest
	if !bindJSON(c, &req, true) {
		return
	}

	result, err := h.issuer.Issue(c.Request.Context(), issuerID, &req)
	if err != nil {
		h.handleInvitationError(c, err, false)
		return
	}
	response.Created(c, result)
}

// Validate 公开校验邀请
// GET /api/v1/invitations/:slug/:code
func (h *InvitationHandler) Validate(c *gin.Context) {
	result, err := h.links.Inspect(c.Request.Context(), c.Param("slug"), c.Param("code"))
	if err != nil {
		h.handleInvitationError(c, err, false)
		return
	}
	response.OK(c, result)
}

// Redeem 学员兑换邀请
// POST /api/v1/invitations/:slug/:code/redeem
func (h *InvitationHandler) Redeem(c *gin.Context) {
	subjectID, ok := MustGetSubjectID(c)
	if !ok {
		return
	}

	result, err := h.links.Redeem(c.Request.Context(), subjectID, c.Param("slug"), c.Param("code"))
	if err != nil {
		h.handleInvitationError(c, err, true)
		return
	}
	response.OK(c, result)
}

// ListMine 当前讲师的全部邀请
// GET /api/v1/invitations/mine
func (h *InvitationHandler) ListMine(c *gin.Context) {
	issuerID, ok := MustGetSubjectID(c)
	if !ok {
		return
	}

	result, err := h.links.ListInvitations(c.Request.Context(), issuerID)
	if err != nil {
		h.handleInvitationError(c, err, false)
		return
	}
	response.OK(c, result)
}

// Revoke 撤销邀请
// POST /api/v1/invitations/:slug/revoke
//
// gin 要求同一位置的通配符同名，这里的 :slug 段实际承载的是邀请码
func (h *InvitationHandler) Revoke(c *gin.Context) {
	issuerID, ok := MustGetSubjectID(c)
	if !ok {
		return
	}

	result, err := h.links.RevokeInvitation(c.Request.Context(), issuerID, c.Param("slug"))
	if err != nil {
		h.handleInvitationError(c, err, false)
		return
	}
	response.OK(c, result)
}

// handleInvitationError 将邀请相关业务错误映射为 HTTP 响应
// 兑换时次数用尽属于冲突（409），校验时属于拒绝（403）
func (h *InvitationHandler) handleInvitationError(c *gin.Context, err error, redeeming bool) {
	switch {
	case errors.Is(err, service.ErrInvitationNotFound):
		response.NotFound(c, 12001, "邀请不存在")
	case errors.Is(err, service.ErrInvitationInactive):
		response.Error(c, http.StatusForbidden, 12002, response.KindInactive, "邀请已撤销")
	case errors.Is(err, service.ErrInvitationExpired):
		response.Error(c, http.StatusForbidden, 12003, response.KindExpired, "邀请已过期")
	case errors.Is(err, service.ErrUsageLimitReached):
		status := http.StatusForbidden
		if redeeming {
			status = http.StatusConflict
		}
		response.Error(c, status, 12004, response.KindExhausted, "邀请使用次数已达上限")
	case errors.Is(err, service.ErrAlreadyRedeemed):
		response.Conflict(c, 12005, "已使用过该邀请")
	case errors.Is(err, service.ErrAlreadyLinked):
		response.Conflict(c, 13001, "已与该讲师关联")
	case errors.Is(err, service.ErrInvitationForbidden):
		response.Forbidden(c, 12006, "无权操作该邀请")
	case errors.Is(err, service.ErrNotInstructor):
		response.Forbidden(c, 12007, "仅讲师可执行此操作")
	case errors.Is(err, service.ErrNotStudent):
		response.Forbidden(c, 13002, "仅学员可兑换邀请")
	case errors.Is(err, service.ErrInvalidMaxUses):
		response.BadRequest(c, 12009, "maxUses 必须为正整数")
	case errors.Is(err, service.ErrNamespaceExhausted):
		response.Error(c, http.StatusInternalServerError, 12008, response.KindInternal, "暂时无法生成邀请，请稍后再试")
	default:
		response.InternalError(c)
	}
}
