package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/dto"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/service"
	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/response"
)

// RosterHandler 赛季、名册、赛周与出勤 HTTP 处理器
type RosterHandler struct {
	rosterSvc service.RosterService
}

// NewRosterHandler 创建 RosterHandler
func NewRosterHandler(rosterSvc service.RosterService) *RosterHandler {
	return &RosterHandler{rosterSvc: rosterSvc}
}

// ── 赛季 ──

// CreateSeason POST /api/v1/seasons
func (h *RosterHandler) CreateSeason(c *gin.Context) {
	var req dto.CreateSeasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 20001, "参数校验失败")
		return
	}

	callerID, ok := MustGetOperatorID(c)
	if !ok {
		return
	}

	season, err := h.rosterSvc.CreateSeason(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleRosterError(c, err)
		return
	}

	response.Created(c, season)
}

// ListSeasons GET /api/v1/seasons
func (h *RosterHandler) ListSeasons(c *gin.Context) {
	list, err := h.rosterSvc.ListSeasons(c.Request.Context())
	if err != nil {
		h.handleRosterError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ── 名册 ──

// CreateParticipant POST /api/v1/seasons/:id/participants
func (h *RosterHandler) CreateParticipant(c *gin.Context) {
	var req dto.CreateParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 20001, "参数校验失败")
		return
	}

	callerID, ok := MustGetOperatorID(c)
	if !ok {
		return
	}

	p, err := h.rosterSvc.CreateParticipant(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		h.handleRosterError(c, err)
		return
	}

	response.Created(c, p)
}

// ListParticipants GET /api/v1/seasons/:id/participants
func (h *RosterHandler) ListParticipants(c *gin.Context) {
	list, err := h.rosterSvc.ListParticipants(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleRosterError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ── 赛周 ──

// CreateWeek POST /api/v1/seasons/:id/weeks
func (h *RosterHandler) CreateWeek(c *gin.Context) {
	var req dto.CreateWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 20001, "参数校验失败")
		return
	}

	callerID, ok := MustGetOperatorID(c)
	if !ok {
		return
	}

	week, err := h.rosterSvc.CreateWeek(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		h.handleRosterError(c, err)
		return
	}

	response.Created(c, week)
}

// ListWeeks GET /api/v1/seasons/:id/weeks
func (h *RosterHandler) ListWeeks(c *gin.Context) {
	list, err := h.rosterSvc.ListWeeks(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleRosterError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// GetWeek GET /api/v1/weeks/:id
func (h *RosterHandler) GetWeek(c *gin.Context) {
	week, err := h.rosterSvc.GetWeek(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleRosterError(c, err)
		return
	}

	response.OK(c, week)
}

// ── 出勤 ──

// GetAvailability GET /api/v1/weeks/:id/availability
func (h *RosterHandler) GetAvailability(c *gin.Context) {
	list, err := h.rosterSvc.GetAvailability(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleRosterError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// SetAvailability PUT /api/v1/weeks/:id/availability
func (h *RosterHandler) SetAvailability(c *gin.Context) {
	var req dto.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 20001, "参数校验失败")
		return
	}

	callerID, ok := MustGetOperatorID(c)
	if !ok {
		return
	}

	list, err := h.rosterSvc.SetAvailability(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		h.handleRosterError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

func (h *RosterHandler) handleRosterError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSeasonNotFound):
		response.NotFound(c, 20002, "赛季不存在")
	case errors.Is(err, service.ErrWeekNotFound):
		response.NotFound(c, 20003, "赛周不存在")
	case errors.Is(err, service.ErrParticipantNotFound):
		response.NotFound(c, 20004, "球员不存在")
	case errors.Is(err, service.ErrParticipantNotInSeason):
		response.BadRequest(c, 20005, "球员不属于该赛周所在赛季")
	case errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, 20006, "开始日期不能晚于结束日期")
	case errors.Is(err, service.ErrPlayDateOutOfSeason):
		response.BadRequest(c, 20007, "比赛日期不在赛季范围内")
	default:
		response.InternalError(c)
	}
}
