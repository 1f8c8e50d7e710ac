package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
	pkgerrors "github.com/rservant/indoor-golf-scheduler-sub005/pkg/errors"
)

// WeekRepository 赛周与出勤数据访问接口
type WeekRepository interface {
	Create(ctx context.Context, week *model.Week) error
	GetByID(ctx context.Context, id string) (*model.Week, error)
	ListBySeason(ctx context.Context, seasonID string) ([]model.Week, error)
	Update(ctx context.Context, week *model.Week) error
	ListAvailability(ctx context.Context, weekID string) ([]model.WeekAvailability, error)
	UpsertAvailability(ctx context.Context, rows []model.WeekAvailability) error
}

type weekRepo struct {
	db *gorm.DB
}

// NewWeekRepo 创建 WeekRepository 实例
func NewWeekRepo(db *gorm.DB) WeekRepository {
	return &weekRepo{db: db}
}

func (r *weekRepo) Create(ctx context.Context, week *model.Week) error {
	return r.db.WithContext(ctx).Create(week).Error
}

func (r *weekRepo) GetByID(ctx context.Context, id string) (*model.Week, error) {
	var week model.Week
	err := r.db.WithContext(ctx).
		Preload("Season").
		Where("week_id = ?", id).
		First(&week).Error
	if err != nil {
		return nil, err
	}
	return &week, nil
}

func (r *weekRepo) ListBySeason(ctx context.Context, seasonID string) ([]model.Week, error) {
	var weeks []model.Week
	err := r.db.WithContext(ctx).
		Where("season_id = ?", seasonID).
		Order("week_number ASC").
		Find(&weeks).Error
	return weeks, err
}

func (r *weekRepo) Update(ctx context.Context, week *model.Week) error {
	oldVersion := week.Version
	result := r.db.WithContext(ctx).
		Model(week).
		Where("week_id = ? AND version = ?", week.WeekID, oldVersion).
		Updates(map[string]interface{}{
			"week_number": week.WeekNumber,
			"play_date":   week.PlayDate,
			"updated_by":  week.UpdatedBy,
			"version":     oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	week.Version = oldVersion + 1
	return nil
}

func (r *weekRepo) ListAvailability(ctx context.Context, weekID string) ([]model.WeekAvailability, error) {
	var rows []model.WeekAvailability
	err := r.db.WithContext(ctx).
		Where("week_id = ?", weekID).
		Order("participant_id ASC").
		Find(&rows).Error
	return rows, err
}

// UpsertAvailability 批量写入出勤，已存在则覆盖状态
func (r *weekRepo) UpsertAvailability(ctx context.Context, rows []model.WeekAvailability) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "week_id"}, {Name: "participant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_by", "updated_at"}),
		}).
		Create(&rows).Error
}
