package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"conduzauto/backend/internal/service"
	"conduzauto/backend/pkg/response"
)

// LinkHandler 讲师学员关联 HTTP 处理器
type LinkHandler struct {
	links service.LinkManager
}

// NewLinkHandler 创建 LinkHandler
func NewLinkHandler(links service.LinkManager) *LinkHandler {
	return &LinkHandler{links: links}
}

// List 当前讲师已关联的学员
// GET /api/v1/links
func (h *LinkHandler) List(c *gin.Context) {
	issuerID, ok := MustGetSubjectID(c)
	if !ok {
		return
	}

	result, err := h.links.ListLinked(c.Request.Context(), issuerID)
	if err != nil {
		h.handleLinkError(c, err)
		return
	}
	response.OK(c, result)
}

// Link 直接关联学员
// POST /api/v1/links/:subjectId
func (h *LinkHandler) Link(c *gin.Context) {
	issuerID, ok := MustGetSubjectID(c)
	if !ok {
		return
	}
	subjectID, ok := subjectParam(c)
	if !ok {
		return
	}

	result, err := h.links.LinkDirect(c.Request.Context(), issuerID, subjectID)
	if err != nil {
		h.handleLinkError(c, err)
		return
	}
	response.OK(c, result)
}

// Unlink 解除关联（幂等）
// DELETE /api/v1/links/:subjectId
func (h *LinkHandler) Unlink(c *gin.Context) {
	issuerID, ok := MustGetSubjectID(c)
	if !ok {
		return
	}
	subjectID, ok := subjectParam(c)
	if !ok {
		return
	}

	result, err := h.links.Unlink(c.Request.Context(), issuerID, subjectID)
	if err != nil {
		h.handleLinkError(c, err)
		return
	}
	response.OK(c, result)
}

func subjectParam(c *gin.Context) (string, bool) {
	id, err := uuid.Parse(c.Param("subjectId"))
	if err != nil {
		response.BadRequest(c, 13004, "subjectId 格式无效")
		return "", false
	}
	return id.String(), true
}

func (h *LinkHandler) handleLinkError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAlreadyLinked):
		response.Conflict(c, 13001, "学员已与该讲师关联")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 13003, "学员不存在")
	case errors.Is(err, service.ErrNotInstructor):
		response.Forbidden(c, 12007, "仅讲师可执行此操作")
	default:
		response.InternalError(c)
	}
}
