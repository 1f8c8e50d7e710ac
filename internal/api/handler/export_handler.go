package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/service"
	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportWeek 导出周排组
// GET /api/v1/weeks/:id/export
func (h *ExportHandler) ExportWeek(c *gin.Context) {
	weekID := c.Param("id")
	if weekID == "" {
		response.BadRequest(c, 24001, "赛周ID不能为空")
		return
	}

	buf, filename, err := h.exportSvc.ExportWeek(c.Request.Context(), weekID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrWeekNotFound):
		response.NotFound(c, 24002, "赛周不存在")
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, 24003, "该周暂无排组")
	case errors.Is(err, service.ErrExportNoFoursomes):
		response.BadRequest(c, 24004, "排组中无分组")
	default:
		response.InternalError(c)
	}
}
