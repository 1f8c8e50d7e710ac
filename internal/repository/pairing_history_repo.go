package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
)

// PairingHistoryRepository 同组次数数据访问接口
type PairingHistoryRepository interface {
	// IncrementPairs 按给定增量累加（键须已规范化为 PlayerA < PlayerB）
	IncrementPairs(ctx context.Context, rows []model.PairingHistory) error
	Get(ctx context.Context, seasonID, playerA, playerB string) (int, error)
	ListBySeason(ctx context.Context, seasonID string) ([]model.PairingHistory, error)
	ResetSeason(ctx context.Context, seasonID string) (int64, error)
}

type pairingHistoryRepo struct {
	db *gorm.DB
}

// NewPairingHistoryRepo 创建 PairingHistoryRepository 实例
func NewPairingHistoryRepo(db *gorm.DB) PairingHistoryRepository {
	return &pairingHistoryRepo{db: db}
}

func (r *pairingHistoryRepo) IncrementPairs(ctx context.Context, rows []model.PairingHistory) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "season_id"}, {Name: "player_a"}, {Name: "player_b"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count":      gorm.Expr("pairing_histories.count + EXCLUDED.count"),
				"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).Create(&rows).Error
	})
}

func (r *pairingHistoryRepo) Get(ctx context.Context, seasonID, playerA, playerB string) (int, error) {
	var row model.PairingHistory
	err := r.db.WithContext(ctx).
		Where("season_id = ? AND player_a = ? AND player_b = ?", seasonID, playerA, playerB).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Count, nil
}

func (r *pairingHistoryRepo) ListBySeason(ctx context.Context, seasonID string) ([]model.PairingHistory, error) {
	var rows []model.PairingHistory
	err := r.db.WithContext(ctx).
		Where("season_id = ?", seasonID).
		Order("count DESC, player_a ASC, player_b ASC").
		Find(&rows).Error
	return rows, err
}

func (r *pairingHistoryRepo) ResetSeason(ctx context.Context, seasonID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("season_id = ?", seasonID).
		Delete(&model.PairingHistory{})
	return result.RowsAffected, result.Error
}
