package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/dto"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/service"
	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/response"
)

// RegenerationHandler 重排 HTTP 处理器
type RegenerationHandler struct {
	regenSvc service.RegenerationService
}

// NewRegenerationHandler 创建 RegenerationHandler
func NewRegenerationHandler(regenSvc service.RegenerationService) *RegenerationHandler {
	return &RegenerationHandler{regenSvc: regenSvc}
}

// GetStatus 查询重排进度
// GET /api/v1/weeks/:id/regeneration
func (h *RegenerationHandler) GetStatus(c *gin.Context) {
	weekID := c.Param("id")
	allowed := h.regenSvc.IsRegenerationAllowed(weekID)

	st, ok := h.regenSvc.GetRegenerationStatus(weekID)
	if !ok {
		locked, err := h.regenSvc.IsLockedElsewhere(c.Request.Context(), weekID)
		if err != nil {
			response.InternalError(c)
			return
		}
		response.OK(c, dto.RegenerationStatusResponse{
			WeekID:          weekID,
			State:           service.StateIdle.String(),
			Allowed:         allowed && !locked,
			LockedElsewhere: locked,
		})
		return
	}

	response.OK(c, service.ToStatusResponse(*st, allowed))
}

// Lock 进入确认阶段
// POST /api/v1/weeks/:id/regeneration/lock
func (h *RegenerationHandler) Lock(c *gin.Context) {
	weekID := c.Param("id")
	if err := h.regenSvc.SetRegenerationLock(c.Request.Context(), weekID, true); err != nil {
		h.handleRegenerationError(c, err, nil)
		return
	}

	h.GetStatus(c)
}

// Unlock 取消确认或强制解除
// DELETE /api/v1/weeks/:id/regeneration/lock
func (h *RegenerationHandler) Unlock(c *gin.Context) {
	if err := h.regenSvc.SetRegenerationLock(c.Request.Context(), c.Param("id"), false); err != nil {
		h.handleRegenerationError(c, err, nil)
		return
	}

	response.OK(c, nil)
}

// Regenerate 执行重排；同步返回结果
// POST /api/v1/weeks/:id/regeneration
func (h *RegenerationHandler) Regenerate(c *gin.Context) {
	var req dto.RegenerateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 22001, "参数校验失败")
			return
		}
	}

	callerID, ok := MustGetOperatorID(c)
	if !ok {
		return
	}

	result, err := h.regenSvc.Regenerate(c.Request.Context(), c.Param("id"), dto.RegenerationOptions{
		OperatorID: callerID,
		Reason:     req.Reason,
	})
	if err != nil {
		h.handleRegenerationError(c, err, result)
		return
	}

	response.OK(c, result)
}

// ListLogs 重排审计记录
// GET /api/v1/weeks/:id/regeneration/logs
func (h *RegenerationHandler) ListLogs(c *gin.Context) {
	var req dto.RegenerationLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 22001, "参数校验失败")
		return
	}

	list, total, err := h.regenSvc.ListLogs(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Sweep 立即执行一次超时清理
// POST /api/v1/regeneration/sweep
func (h *RegenerationHandler) Sweep(c *gin.Context) {
	n := h.regenSvc.SweepStale(c.Request.Context())
	response.OK(c, gin.H{"swept": n})
}

// handleRegenerationError result 非空时随错误一并返回，便于前端展示恢复建议
func (h *RegenerationHandler) handleRegenerationError(c *gin.Context, err error, result *dto.RegenerationResult) {
	switch {
	case errors.Is(err, service.ErrConcurrentOperation):
		response.Conflict(c, 22002, "该周正在重排，请稍后再试")
	case errors.Is(err, service.ErrWeekNotFound):
		response.NotFound(c, 22003, "赛周不存在")
	case result != nil:
		status := http.StatusInternalServerError
		if !result.Retryable && result.ErrorCategory != string(service.CategorySystem) {
			status = http.StatusUnprocessableEntity
		}
		response.ErrorWithData(c, status, 22004, result.Message, result)
	default:
		response.InternalError(c)
	}
}
