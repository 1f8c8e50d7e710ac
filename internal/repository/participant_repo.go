package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
)

// ParticipantRepository 球员名册数据访问接口
type ParticipantRepository interface {
	Create(ctx context.Context, p *model.Participant) error
	GetByID(ctx context.Context, id string) (*model.Participant, error)
	ListBySeason(ctx context.Context, seasonID string) ([]model.Participant, error)
}

type participantRepo struct {
	db *gorm.DB
}

// NewParticipantRepo 创建 ParticipantRepository 实例
func NewParticipantRepo(db *gorm.DB) ParticipantRepository {
	return &participantRepo{db: db}
}

func (r *participantRepo) Create(ctx context.Context, p *model.Participant) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *participantRepo) GetByID(ctx context.Context, id string) (*model.Participant, error) {
	var p model.Participant
	err := r.db.WithContext(ctx).
		Where("participant_id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *participantRepo) ListBySeason(ctx context.Context, seasonID string) ([]model.Participant, error) {
	var list []model.Participant
	err := r.db.WithContext(ctx).
		Where("season_id = ?", seasonID).
		Order("participant_id ASC").
		Find(&list).Error
	return list, err
}
