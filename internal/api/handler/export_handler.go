package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"conduzauto/backend/internal/service"
	"conduzauto/backend/pkg/response"
)

const (
	xlsxContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	calendarContentType = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportInvitations 导出当前讲师的邀请
// GET /api/v1/invitations/mine/export
func (h *ExportHandler) ExportInvitations(c *gin.Context) {
	issuerID, ok := MustGetSubjectID(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportInvitations(c.Request.Context(), issuerID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	setAttachment(c, filename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Calendar 有效邀请的过期日历
// GET /api/v1/invitations/mine/calendar
func (h *ExportHandler) Calendar(c *gin.Context) {
	issuerID, ok := MustGetSubjectID(c)
	if !ok {
		return
	}

	content, filename, err := h.exportSvc.InvitationCalendar(c.Request.Context(), issuerID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	setAttachment(c, filename)
	c.Data(http.StatusOK, calendarContentType, []byte(content))
}

func setAttachment(c *gin.Context, filename string) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoInvitations):
		response.NotFound(c, 14001, "暂无邀请可导出")
	case errors.Is(err, service.ErrNotInstructor):
		response.Forbidden(c, 12007, "仅讲师可执行此操作")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.Error(c, http.StatusInternalServerError, 14002, response.KindInternal, "生成导出文件失败")
	default:
		response.InternalError(c)
	}
}
