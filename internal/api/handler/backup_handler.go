package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/service"
	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/response"
)

// BackupHandler 排组备份 HTTP 处理器
// 恢复经由重排服务执行，与重排互斥
type BackupHandler struct {
	backupSvc service.BackupService
	regenSvc  service.RegenerationService
}

// NewBackupHandler 创建 BackupHandler
func NewBackupHandler(backupSvc service.BackupService, regenSvc service.RegenerationService) *BackupHandler {
	return &BackupHandler{backupSvc: backupSvc, regenSvc: regenSvc}
}

// List 周备份列表（最新在前）
// GET /api/v1/weeks/:id/backups
func (h *BackupHandler) List(c *gin.Context) {
	list, err := h.backupSvc.ListBackups(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": service.ToBackupResponses(list)})
}

// Validate 校验备份完整性
// GET /api/v1/weeks/:id/backups/:backup_id/validate
func (h *BackupHandler) Validate(c *gin.Context) {
	valid, err := h.backupSvc.ValidateBackup(c.Request.Context(), c.Param("backup_id"))
	if err != nil {
		h.handleBackupError(c, err)
		return
	}

	response.OK(c, gin.H{"valid": valid})
}

// Restore 手动恢复备份
// POST /api/v1/weeks/:id/backups/:backup_id/restore
func (h *BackupHandler) Restore(c *gin.Context) {
	callerID, ok := MustGetOperatorID(c)
	if !ok {
		return
	}

	schedule, err := h.regenSvc.RestoreBackup(c.Request.Context(), c.Param("id"), c.Param("backup_id"), callerID)
	if err != nil {
		h.handleBackupError(c, err)
		return
	}

	response.OK(c, gin.H{"schedule_id": schedule.ScheduleID, "version": schedule.Version})
}

func (h *BackupHandler) handleBackupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBackupNotFound):
		response.NotFound(c, 23001, "备份不存在")
	case errors.Is(err, service.ErrBackupWeekMismatch):
		response.BadRequest(c, 23002, "备份不属于该周")
	case errors.Is(err, service.ErrBackupIntegrity):
		response.UnprocessableEntity(c, 23003, "备份校验失败，内容可能已损坏")
	case errors.Is(err, service.ErrConcurrentOperation):
		response.Conflict(c, 23004, "该周正在重排，请稍后再试")
	case errors.Is(err, service.ErrScheduleFinalized):
		response.Conflict(c, 23005, "排组已定稿，不能恢复备份")
	default:
		response.InternalError(c)
	}
}
