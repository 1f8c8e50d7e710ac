package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/service"
	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/response"
)

// PairingHandler 同组历史 HTTP 处理器
type PairingHandler struct {
	pairingSvc service.PairingHistoryService
}

// NewPairingHandler 创建 PairingHandler
func NewPairingHandler(pairingSvc service.PairingHistoryService) *PairingHandler {
	return &PairingHandler{pairingSvc: pairingSvc}
}

// List 赛季同组次数（次数多的在前）
// GET /api/v1/seasons/:id/pairings
func (h *PairingHandler) List(c *gin.Context) {
	list, err := h.pairingSvc.ListPairings(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handlePairingError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// Reset 清空赛季同组历史
// DELETE /api/v1/seasons/:id/pairings
func (h *PairingHandler) Reset(c *gin.Context) {
	n, err := h.pairingSvc.ResetSeason(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handlePairingError(c, err)
		return
	}

	response.OK(c, gin.H{"deleted": n})
}

func (h *PairingHandler) handlePairingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSeasonNotFound):
		response.NotFound(c, 26001, "赛季不存在")
	default:
		response.InternalError(c)
	}
}
