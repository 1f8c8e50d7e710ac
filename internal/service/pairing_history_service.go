package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/dto"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/repository"
)

var ErrSeasonNotFound = errors.New("赛季不存在")

// PairKey 无序球员对的规范键：两者按字典序排列
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// orderedPair 返回 (小, 大)
func orderedPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// PairsOf 排组内所有同组无序球员对（已规范化，去重）
func PairsOf(schedule *model.Schedule) [][2]string {
	seen := make(map[string]bool)
	var pairs [][2]string
	for _, f := range schedule.Foursomes {
		for i := 0; i < len(f.PlayerIDs); i++ {
			for j := i + 1; j < len(f.PlayerIDs); j++ {
				a, b := orderedPair(f.PlayerIDs[i], f.PlayerIDs[j])
				if a == b {
					continue
				}
				k := a + "|" + b
				if seen[k] {
					continue
				}
				seen[k] = true
				pairs = append(pairs, [2]string{a, b})
			}
		}
	}
	return pairs
}

// PairingMatrix 某赛季同组次数只读快照
type PairingMatrix struct {
	counts map[string]int
}

// NewPairingMatrix 由历史记录构建矩阵
func NewPairingMatrix(rows []model.PairingHistory) *PairingMatrix {
	m := &PairingMatrix{counts: make(map[string]int, len(rows))}
	for _, r := range rows {
		m.counts[PairKey(r.PlayerA, r.PlayerB)] += r.Count
	}
	return m
}

// Count a==b 时为 0，未记录时为 0
func (m *PairingMatrix) Count(a, b string) int {
	if m == nil || a == b {
		return 0
	}
	return m.counts[PairKey(a, b)]
}

// ScheduleCost 排组内所有同组对的历史次数之和
func (m *PairingMatrix) ScheduleCost(schedule *model.Schedule) int {
	if schedule == nil {
		return 0
	}
	cost := 0
	for _, p := range PairsOf(schedule) {
		cost += m.Count(p[0], p[1])
	}
	return cost
}

// PairingHistoryService 同组历史业务接口
// 只有定稿会写入；生成与重排只读
type PairingHistoryService interface {
	RecordPairings(ctx context.Context, seasonID string, schedule *model.Schedule) error
	PairingCount(ctx context.Context, seasonID, a, b string) (int, error)
	LoadMatrix(ctx context.Context, seasonID string) (*PairingMatrix, error)
	ListPairings(ctx context.Context, seasonID string) ([]dto.PairingEntry, error)
	ResetSeason(ctx context.Context, seasonID string) (int64, error)
}

type pairingHistoryService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewPairingHistoryService 创建 PairingHistoryService 实例
func NewPairingHistoryService(repo *repository.Repository, logger *zap.Logger) PairingHistoryService {
	return &pairingHistoryService{repo: repo, logger: logger}
}

func (s *pairingHistoryService) RecordPairings(ctx context.Context, seasonID string, schedule *model.Schedule) error {
	pairs := PairsOf(schedule)
	if len(pairs) == 0 {
		return nil
	}
	rows := make([]model.PairingHistory, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, model.PairingHistory{
			SeasonID: seasonID,
			PlayerA:  p[0],
			PlayerB:  p[1],
			Count:    1,
		})
	}
	if err := s.repo.PairingHistory.IncrementPairs(ctx, rows); err != nil {
		s.logger.Error("累加同组历史失败", zap.String("season_id", seasonID), zap.Error(err))
		return err
	}
	s.logger.Info("同组历史已更新", zap.String("season_id", seasonID), zap.Int("pairs", len(rows)))
	return nil
}

func (s *pairingHistoryService) PairingCount(ctx context.Context, seasonID, a, b string) (int, error) {
	if a == b {
		return 0, nil
	}
	pa, pb := orderedPair(a, b)
	n, err := s.repo.PairingHistory.Get(ctx, seasonID, pa, pb)
	if err != nil {
		s.logger.Error("查询同组次数失败", zap.Error(err))
		return 0, err
	}
	return n, nil
}

func (s *pairingHistoryService) LoadMatrix(ctx context.Context, seasonID string) (*PairingMatrix, error) {
	rows, err := s.repo.PairingHistory.ListBySeason(ctx, seasonID)
	if err != nil {
		s.logger.Error("查询同组历史失败", zap.Error(err))
		return nil, err
	}
	return NewPairingMatrix(rows), nil
}

func (s *pairingHistoryService) ListPairings(ctx context.Context, seasonID string) ([]dto.PairingEntry, error) {
	if _, err := s.repo.Season.GetByID(ctx, seasonID); err != nil {
		if isNotFound(err) {
			return nil, ErrSeasonNotFound
		}
		s.logger.Error("查询赛季失败", zap.Error(err))
		return nil, err
	}
	rows, err := s.repo.PairingHistory.ListBySeason(ctx, seasonID)
	if err != nil {
		s.logger.Error("查询同组历史失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.PairingEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.PairingEntry{PlayerA: r.PlayerA, PlayerB: r.PlayerB, Count: r.Count})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

// ResetSeason 清空赛季历史，是同组次数唯一会减少的途径
func (s *pairingHistoryService) ResetSeason(ctx context.Context, seasonID string) (int64, error) {
	if _, err := s.repo.Season.GetByID(ctx, seasonID); err != nil {
		if isNotFound(err) {
			return 0, ErrSeasonNotFound
		}
		s.logger.Error("查询赛季失败", zap.Error(err))
		return 0, err
	}
	n, err := s.repo.PairingHistory.ResetSeason(ctx, seasonID)
	if err != nil {
		s.logger.Error("重置同组历史失败", zap.Error(err))
		return 0, err
	}
	s.logger.Warn("赛季同组历史已重置", zap.String("season_id", seasonID), zap.Int64("rows", n))
	return n, nil
}
