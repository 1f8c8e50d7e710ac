package handler

import "github.com/rservant/indoor-golf-scheduler-sub005/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Roster       *RosterHandler
	Schedule     *ScheduleHandler
	Regeneration *RegenerationHandler
	Backup       *BackupHandler
	Pairing      *PairingHandler
	Notification *NotificationHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Roster:       NewRosterHandler(svc.Roster),
		Schedule:     NewScheduleHandler(svc.Schedule),
		Regeneration: NewRegenerationHandler(svc.Regeneration),
		Backup:       NewBackupHandler(svc.Backup, svc.Regeneration),
		Pairing:      NewPairingHandler(svc.Pairing),
		Notification: NewNotificationHandler(svc.Notification),
		Export:       NewExportHandler(svc.Export),
	}
}
