package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
	pkgerrors "github.com/rservant/indoor-golf-scheduler-sub005/pkg/errors"
)

// ScheduleRepository 周排组数据访问接口
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *model.Schedule) error
	GetByID(ctx context.Context, id string) (*model.Schedule, error)
	GetByWeek(ctx context.Context, weekID string) (*model.Schedule, error)
	// ReplaceFoursomes 在单个事务内覆盖状态与全部分组（乐观锁）
	ReplaceFoursomes(ctx context.Context, schedule *model.Schedule) error
	UpdateFoursome(ctx context.Context, schedule *model.Schedule, foursome *model.Foursome) error
	UpdateStatus(ctx context.Context, schedule *model.Schedule) error
	Delete(ctx context.Context, id string) (bool, error)
}

// RegenerationLogRepository 重排审计日志数据访问接口
type RegenerationLogRepository interface {
	Create(ctx context.Context, log *model.RegenerationLog) error
	ListByWeek(ctx context.Context, weekID string, offset, limit int) ([]model.RegenerationLog, int64, error)
}

// ── Schedule Repository 实现 ──

type scheduleRepo struct {
	db *gorm.DB
}

func NewScheduleRepo(db *gorm.DB) ScheduleRepository {
	return &scheduleRepo{db: db}
}

// Create 同时写入关联分组（GORM 默认事务）
func (r *scheduleRepo) Create(ctx context.Context, schedule *model.Schedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *scheduleRepo) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	var schedule model.Schedule
	err := r.db.WithContext(ctx).
		Preload("Foursomes", func(db *gorm.DB) *gorm.DB {
			return db.Order("time_slot DESC, position ASC")
		}).
		Where("schedule_id = ?", id).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepo) GetByWeek(ctx context.Context, weekID string) (*model.Schedule, error) {
	var schedule model.Schedule
	err := r.db.WithContext(ctx).
		Preload("Foursomes", func(db *gorm.DB) *gorm.DB {
			return db.Order("time_slot DESC, position ASC")
		}).
		Where("week_id = ?", weekID).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepo) ReplaceFoursomes(ctx context.Context, schedule *model.Schedule) error {
	oldVersion := schedule.Version
	// PostgreSQL TIMESTAMPTZ 精度为微秒，回读比对前先截断
	now := time.Now().UTC().Truncate(time.Microsecond)

	var created []model.Foursome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Schedule{}).
			Where("schedule_id = ? AND version = ?", schedule.ScheduleID, oldVersion).
			Updates(map[string]interface{}{
				"status":       schedule.Status,
				"finalized_at": schedule.FinalizedAt,
				"updated_by":   schedule.UpdatedBy,
				"updated_at":   now,
				"version":      oldVersion + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrOptimisticLock
		}

		if err := tx.Where("schedule_id = ?", schedule.ScheduleID).
			Delete(&model.Foursome{}).Error; err != nil {
			return err
		}

		if len(schedule.Foursomes) == 0 {
			return nil
		}
		created = make([]model.Foursome, len(schedule.Foursomes))
		for i, f := range schedule.Foursomes {
			f.FoursomeID = ""
			f.ScheduleID = schedule.ScheduleID
			created[i] = f
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		return err
	}

	schedule.Version = oldVersion + 1
	schedule.UpdatedAt = now
	schedule.Foursomes = created
	return nil
}

// UpdateFoursome 手动调整单个分组，同时递增排组版本
func (r *scheduleRepo) UpdateFoursome(ctx context.Context, schedule *model.Schedule, foursome *model.Foursome) error {
	oldVersion := schedule.Version
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Schedule{}).
			Where("schedule_id = ? AND version = ?", schedule.ScheduleID, oldVersion).
			Updates(map[string]interface{}{
				"updated_by": schedule.UpdatedBy,
				"version":    oldVersion + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrOptimisticLock
		}

		return tx.Model(foursome).
			Where("foursome_id = ? AND schedule_id = ?", foursome.FoursomeID, schedule.ScheduleID).
			Updates(map[string]interface{}{
				"time_slot":  foursome.TimeSlot,
				"position":   foursome.Position,
				"player_ids": foursome.PlayerIDs,
				"updated_by": schedule.UpdatedBy,
			}).Error
	})
	if err != nil {
		return err
	}
	schedule.Version = oldVersion + 1
	return nil
}

func (r *scheduleRepo) UpdateStatus(ctx context.Context, schedule *model.Schedule) error {
	oldVersion := schedule.Version
	result := r.db.WithContext(ctx).
		Model(schedule).
		Where("schedule_id = ? AND version = ?", schedule.ScheduleID, oldVersion).
		Updates(map[string]interface{}{
			"status":       schedule.Status,
			"finalized_at": schedule.FinalizedAt,
			"updated_by":   schedule.UpdatedBy,
			"version":      oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	schedule.Version = oldVersion + 1
	return nil
}

func (r *scheduleRepo) Delete(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("schedule_id = ?", id).
		Delete(&model.Schedule{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ── RegenerationLog Repository 实现 ──

type regenerationLogRepo struct {
	db *gorm.DB
}

func NewRegenerationLogRepo(db *gorm.DB) RegenerationLogRepository {
	return &regenerationLogRepo{db: db}
}

func (r *regenerationLogRepo) Create(ctx context.Context, log *model.RegenerationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *regenerationLogRepo) ListByWeek(ctx context.Context, weekID string, offset, limit int) ([]model.RegenerationLog, int64, error) {
	var logs []model.RegenerationLog
	var total int64

	db := r.db.WithContext(ctx).Model(&model.RegenerationLog{}).
		Where("week_id = ?", weekID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, total, err
}
