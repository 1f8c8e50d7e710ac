package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
)

// BackupRepository 排组备份数据访问接口
type BackupRepository interface {
	Create(ctx context.Context, backup *model.ScheduleBackup) error
	GetByID(ctx context.Context, id string) (*model.ScheduleBackup, error)
	// ListByWeek 按创建时间倒序（最新在前）
	ListByWeek(ctx context.Context, weekID string) ([]model.ScheduleBackup, error)
	TotalSizeByWeek(ctx context.Context, weekID string) (int64, error)
	DeleteByIDs(ctx context.Context, ids []string) error
}

type backupRepo struct {
	db *gorm.DB
}

// NewBackupRepo 创建 BackupRepository 实例
func NewBackupRepo(db *gorm.DB) BackupRepository {
	return &backupRepo{db: db}
}

func (r *backupRepo) Create(ctx context.Context, backup *model.ScheduleBackup) error {
	return r.db.WithContext(ctx).Create(backup).Error
}

func (r *backupRepo) GetByID(ctx context.Context, id string) (*model.ScheduleBackup, error) {
	var backup model.ScheduleBackup
	err := r.db.WithContext(ctx).
		Where("backup_id = ?", id).
		First(&backup).Error
	if err != nil {
		return nil, err
	}
	return &backup, nil
}

func (r *backupRepo) ListByWeek(ctx context.Context, weekID string) ([]model.ScheduleBackup, error) {
	var list []model.ScheduleBackup
	err := r.db.WithContext(ctx).
		Omit("payload").
		Where("week_id = ?", weekID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *backupRepo) TotalSizeByWeek(ctx context.Context, weekID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.ScheduleBackup{}).
		Where("week_id = ?", weekID).
		Select("COALESCE(SUM(size), 0)").
		Scan(&total).Error
	return total, err
}

func (r *backupRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("backup_id IN ?", ids).
		Delete(&model.ScheduleBackup{}).Error
}
