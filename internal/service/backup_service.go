package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/rservant/indoor-golf-scheduler-sub005/config"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/dto"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/repository"
)

// ── 备份模块业务错误 ──

var (
	ErrBackupNotFound      = errors.New("备份不存在")
	ErrBackupIntegrity     = errors.New("备份校验失败，内容可能已损坏")
	ErrBackupQuotaExceeded = errors.New("备份存储空间不足")
	ErrBackupWeekMismatch  = errors.New("备份不属于该周")
)

// scheduleSnapshot 备份内容；只含业务字段，相同排组得到相同校验和
type scheduleSnapshot struct {
	ScheduleID  string             `json:"schedule_id"`
	WeekID      string             `json:"week_id"`
	Status      string             `json:"status"`
	FinalizedAt *time.Time         `json:"finalized_at,omitempty"`
	Foursomes   []foursomeSnapshot `json:"foursomes"`
}

type foursomeSnapshot struct {
	TimeSlot  string   `json:"time_slot"`
	Position  int      `json:"position"`
	PlayerIDs []string `json:"player_ids"`
}

func snapshotOf(s *model.Schedule) scheduleSnapshot {
	snap := scheduleSnapshot{
		ScheduleID: s.ScheduleID,
		WeekID:     s.WeekID,
		Status:     s.Status,
		Foursomes:  make([]foursomeSnapshot, 0, len(s.Foursomes)),
	}
	if s.FinalizedAt != nil {
		t := s.FinalizedAt.UTC().Truncate(time.Microsecond)
		snap.FinalizedAt = &t
	}
	for _, f := range s.Foursomes {
		ids := make([]string, len(f.PlayerIDs))
		copy(ids, f.PlayerIDs)
		snap.Foursomes = append(snap.Foursomes, foursomeSnapshot{
			TimeSlot:  f.TimeSlot,
			Position:  f.Position,
			PlayerIDs: ids,
		})
	}
	// 上午在前，组号升序
	sort.SliceStable(snap.Foursomes, func(i, j int) bool {
		a, b := snap.Foursomes[i], snap.Foursomes[j]
		if a.TimeSlot != b.TimeSlot {
			return a.TimeSlot == model.SlotMorning
		}
		return a.Position < b.Position
	})
	return snap
}

func (snap scheduleSnapshot) toSchedule() *model.Schedule {
	s := &model.Schedule{
		ScheduleID:  snap.ScheduleID,
		WeekID:      snap.WeekID,
		Status:      snap.Status,
		FinalizedAt: snap.FinalizedAt,
	}
	for _, f := range snap.Foursomes {
		s.Foursomes = append(s.Foursomes, model.Foursome{
			ScheduleID: snap.ScheduleID,
			TimeSlot:   f.TimeSlot,
			Position:   f.Position,
			PlayerIDs:  model.StringArray(f.PlayerIDs),
		})
	}
	return s
}

func encodeSnapshot(snap scheduleSnapshot) ([]byte, string, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(payload)
	return payload, hex.EncodeToString(sum[:]), nil
}

// ScheduleChecksum 排组内容的 sha256（与备份校验和同一口径）
func ScheduleChecksum(s *model.Schedule) (string, error) {
	if s == nil {
		return "", nil
	}
	_, sum, err := encodeSnapshot(snapshotOf(s))
	return sum, err
}

// BackupService 排组备份业务接口
type BackupService interface {
	CreateBackup(ctx context.Context, schedule *model.Schedule) (*model.ScheduleBackup, error)
	ValidateBackup(ctx context.Context, backupID string) (bool, error)
	RestoreBackup(ctx context.Context, backupID string) (*model.Schedule, error)
	ListBackups(ctx context.Context, weekID string) ([]model.ScheduleBackup, error)
	CleanupOldBackups(ctx context.Context, weekID string) (int, error)
}

type backupService struct {
	repo   *repository.Repository
	cfg    config.BackupConfig
	logger *zap.Logger
}

// NewBackupService 创建 BackupService 实例
func NewBackupService(cfg config.BackupConfig, repo *repository.Repository, logger *zap.Logger) BackupService {
	if cfg.Retention < 1 {
		cfg.Retention = 5
	}
	return &backupService{repo: repo, cfg: cfg, logger: logger}
}

// CreateBackup 序列化排组并写入备份，超出配额时返回 ErrBackupQuotaExceeded
func (s *backupService) CreateBackup(ctx context.Context, schedule *model.Schedule) (*model.ScheduleBackup, error) {
	payload, checksum, err := encodeSnapshot(snapshotOf(schedule))
	if err != nil {
		return nil, fmt.Errorf("序列化排组失败: %w", err)
	}
	size := int64(len(payload))

	if s.cfg.MaxBytes > 0 && size > s.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: 单份备份 %d 字节，上限 %d", ErrBackupQuotaExceeded, size, s.cfg.MaxBytes)
	}
	if s.cfg.MaxTotalBytes > 0 {
		used, err := s.repo.Backup.TotalSizeByWeek(ctx, schedule.WeekID)
		if err != nil {
			s.logger.Error("统计备份占用失败", zap.Error(err))
			return nil, err
		}
		if used+size > s.cfg.MaxTotalBytes {
			return nil, fmt.Errorf("%w: 已用 %d 字节，上限 %d", ErrBackupQuotaExceeded, used, s.cfg.MaxTotalBytes)
		}
	}

	backup := &model.ScheduleBackup{
		WeekID:     schedule.WeekID,
		ScheduleID: schedule.ScheduleID,
		Payload:    datatypes.JSON(payload),
		Checksum:   checksum,
		Size:       size,
	}
	if err := s.repo.Backup.Create(ctx, backup); err != nil {
		s.logger.Error("写入备份失败", zap.String("week_id", schedule.WeekID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("排组已备份",
		zap.String("week_id", schedule.WeekID),
		zap.String("backup_id", backup.BackupID),
		zap.Int64("size", size),
	)
	return backup, nil
}

// loadVerified 读取备份并校验；jsonb 会重排键序，因此先解码再按固定结构重新编码后比对
func (s *backupService) loadVerified(ctx context.Context, backupID string) (*model.ScheduleBackup, *scheduleSnapshot, error) {
	backup, err := s.repo.Backup.GetByID(ctx, backupID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, ErrBackupNotFound
		}
		s.logger.Error("查询备份失败", zap.Error(err))
		return nil, nil, err
	}

	var snap scheduleSnapshot
	if err := json.Unmarshal(backup.Payload, &snap); err != nil {
		return backup, nil, fmt.Errorf("%w: %v", ErrBackupIntegrity, err)
	}
	payload, checksum, err := encodeSnapshot(snap)
	if err != nil {
		return backup, nil, fmt.Errorf("%w: %v", ErrBackupIntegrity, err)
	}
	if subtle.ConstantTimeCompare([]byte(checksum), []byte(backup.Checksum)) != 1 {
		return backup, nil, fmt.Errorf("%w: 校验和不一致", ErrBackupIntegrity)
	}
	if int64(len(payload)) != backup.Size {
		return backup, nil, fmt.Errorf("%w: 大小不一致", ErrBackupIntegrity)
	}
	return backup, &snap, nil
}

func (s *backupService) ValidateBackup(ctx context.Context, backupID string) (bool, error) {
	_, _, err := s.loadVerified(ctx, backupID)
	if err != nil {
		if errors.Is(err, ErrBackupIntegrity) {
			s.logger.Warn("备份校验未通过", zap.String("backup_id", backupID), zap.Error(err))
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RestoreBackup 将备份内容写回该周排组；排组已被删除时重新创建
func (s *backupService) RestoreBackup(ctx context.Context, backupID string) (*model.Schedule, error) {
	backup, snap, err := s.loadVerified(ctx, backupID)
	if err != nil {
		return nil, err
	}
	target := snap.toSchedule()

	current, err := s.repo.Schedule.GetByWeek(ctx, backup.WeekID)
	if err != nil && !isNotFound(err) {
		s.logger.Error("查询当前排组失败", zap.Error(err))
		return nil, err
	}

	if current == nil {
		if err := s.repo.Schedule.Create(ctx, target); err != nil {
			s.logger.Error("按备份重建排组失败", zap.String("backup_id", backupID), zap.Error(err))
			return nil, err
		}
		s.logger.Info("排组已按备份重建", zap.String("week_id", backup.WeekID), zap.String("backup_id", backupID))
		return target, nil
	}

	current.Status = target.Status
	current.FinalizedAt = target.FinalizedAt
	current.Foursomes = target.Foursomes
	if err := s.repo.Schedule.ReplaceFoursomes(ctx, current); err != nil {
		s.logger.Error("按备份恢复排组失败", zap.String("backup_id", backupID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("排组已按备份恢复", zap.String("week_id", backup.WeekID), zap.String("backup_id", backupID))
	return current, nil
}

func (s *backupService) ListBackups(ctx context.Context, weekID string) ([]model.ScheduleBackup, error) {
	list, err := s.repo.Backup.ListByWeek(ctx, weekID)
	if err != nil {
		s.logger.Error("查询备份列表失败", zap.Error(err))
		return nil, err
	}
	return list, nil
}

// CleanupOldBackups 仅保留最近 Retention 份，返回删除数量
func (s *backupService) CleanupOldBackups(ctx context.Context, weekID string) (int, error) {
	list, err := s.ListBackups(ctx, weekID)
	if err != nil {
		return 0, err
	}
	if len(list) <= s.cfg.Retention {
		return 0, nil
	}

	ids := make([]string, 0, len(list)-s.cfg.Retention)
	for _, b := range list[s.cfg.Retention:] {
		ids = append(ids, b.BackupID)
	}
	if err := s.repo.Backup.DeleteByIDs(ctx, ids); err != nil {
		s.logger.Error("清理旧备份失败", zap.String("week_id", weekID), zap.Error(err))
		return 0, err
	}
	return len(ids), nil
}

// ToBackupResponses 备份列表转换为接口响应
func ToBackupResponses(backups []model.ScheduleBackup) []dto.BackupResponse {
	out := make([]dto.BackupResponse, 0, len(backups))
	for _, b := range backups {
		out = append(out, dto.BackupResponse{
			ID:         b.BackupID,
			WeekID:     b.WeekID,
			ScheduleID: b.ScheduleID,
			Checksum:   b.Checksum,
			Size:       b.Size,
			CreatedAt:  b.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}
