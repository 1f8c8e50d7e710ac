package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/dto"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/service"
	pkgerrors "github.com/rservant/indoor-golf-scheduler-sub005/pkg/errors"
	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/response"
)

// ScheduleHandler 周排组 HTTP 处理器
type ScheduleHandler struct {
	scheduleSvc service.ScheduleService
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(scheduleSvc service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc}
}

// Generate 首次生成排组
// POST /api/v1/schedules/generate
func (h *ScheduleHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 21001, "参数校验失败")
		return
	}

	callerID, ok := MustGetOperatorID(c)
	if !ok {
		return
	}

	schedule, err := h.scheduleSvc.GenerateSchedule(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.Created(c, schedule)
}

// GetSchedule 获取周排组
// GET /api/v1/weeks/:id/schedule
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	schedule, err := h.scheduleSvc.GetSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, schedule)
}

// Validate 校验候选排组；请求体为空时校验已存储排组
// POST /api/v1/weeks/:id/schedule/validate
func (h *ScheduleHandler) Validate(c *gin.Context) {
	var req dto.ValidateScheduleRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 21001, "参数校验失败")
			return
		}
	}

	result, err := h.scheduleSvc.ValidateSchedule(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, result)
}

// UpdateFoursome 手动调整分组
// PUT /api/v1/weeks/:id/schedule/foursomes/:foursome_id
func (h *ScheduleHandler) UpdateFoursome(c *gin.Context) {
	var req dto.UpdateFoursomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 21001, "参数校验失败")
		return
	}

	callerID, ok := MustGetOperatorID(c)
	if !ok {
		return
	}

	schedule, err := h.scheduleSvc.UpdateFoursome(c.Request.Context(), c.Param("id"), c.Param("foursome_id"), &req, callerID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, schedule)
}

// Finalize 定稿
// POST /api/v1/weeks/:id/schedule/finalize
func (h *ScheduleHandler) Finalize(c *gin.Context) {
	callerID, ok := MustGetOperatorID(c)
	if !ok {
		return
	}

	schedule, err := h.scheduleSvc.Finalize(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, schedule)
}

// CheckScope 出勤变化检测
// POST /api/v1/weeks/:id/schedule/scope-check
func (h *ScheduleHandler) CheckScope(c *gin.Context) {
	result, err := h.scheduleSvc.CheckScope(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *ScheduleHandler) handleScheduleError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		response.ErrorWithData(c, http.StatusUnprocessableEntity, 21002, "排组校验未通过", gin.H{"errors": verr.Errors})
	case errors.Is(err, service.ErrWeekNotFound):
		response.NotFound(c, 21003, "赛周不存在")
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, 21004, "该周暂无排组")
	case errors.Is(err, service.ErrFoursomeNotFound):
		response.NotFound(c, 21005, "分组不存在")
	case errors.Is(err, service.ErrScheduleAlreadyExists):
		response.Conflict(c, 21006, "该周已有排组，请使用重排")
	case errors.Is(err, service.ErrScheduleNotDraft):
		response.BadRequest(c, 21007, "排组非草稿状态，不可执行此操作")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 21008, "排组已被修改，请刷新后重试")
	case errors.Is(err, service.ErrConcurrentOperation):
		response.Conflict(c, 21009, "该周正在重排，请稍后再试")
	case errors.Is(err, service.ErrInsufficientParticipants):
		response.UnprocessableEntity(c, 21010, "本周可排球员不足 4 人")
	default:
		response.InternalError(c)
	}
}
