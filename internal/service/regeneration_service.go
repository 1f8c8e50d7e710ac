package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rservant/indoor-golf-scheduler-sub005/config"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/dto"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/metrics"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/repository"
	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/retry"
)

// systemOperator 无操作人时（超时清理等）写入审计日志的操作人
const systemOperator = "system"

// cleanupTimeout 回滚、审计与释放锁等收尾操作的时限
const cleanupTimeout = 5 * time.Second

// detached 调用方断开后收尾操作仍需完成
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

// RegenerationService 周排组重排业务接口
type RegenerationService interface {
	// IsRegenerationAllowed 该周不处于进行中状态时为 true
	IsRegenerationAllowed(weekID string) bool
	// SetRegenerationLock true 进入 confirming 并获取存储层锁；false 清除状态并强制释放存储层锁
	SetRegenerationLock(ctx context.Context, weekID string, locked bool) error
	// Regenerate 备份 → 生成 → 校验 → 原子替换 → 完成，失败按策略重试并回滚
	Regenerate(ctx context.Context, weekID string, opts dto.RegenerationOptions) (*dto.RegenerationResult, error)
	GetRegenerationStatus(weekID string) (*RegenerationStatus, bool)
	// IsLockedElsewhere 本进程无进行中的重排但存储层锁被其他进程持有
	IsLockedElsewhere(ctx context.Context, weekID string) (bool, error)
	ListLogs(ctx context.Context, weekID string, req *dto.RegenerationLogListRequest) ([]model.RegenerationLog, int64, error)
	// RestoreBackup 手动恢复指定备份；与重排互斥
	RestoreBackup(ctx context.Context, weekID, backupID, operatorID string) (*model.Schedule, error)
	// SweepStale 强制失败超时未结束的重排，返回处理数量
	SweepStale(ctx context.Context) int
	// Close 停止超时清理任务
	Close() error
}

// RegenerationDeps 重排服务依赖
type RegenerationDeps struct {
	Repo      *repository.Repository
	Generator *ScheduleGenerator
	Validator *ScheduleValidator
	Pairing   PairingHistoryService
	Backup    BackupService
	Locker    ScheduleLocker
	Notifier  Notifier
	Store     RegenerationStatusStore
	Metrics   metrics.Collector
}

// RegenerationOption 可选项（测试注入时钟与退避）
type RegenerationOption func(*regenerationService)

// WithClock 替换时钟
func WithClock(now func() time.Time) RegenerationOption {
	return func(s *regenerationService) { s.now = now }
}

// WithBackoffSleep 替换重试退避等待
func WithBackoffSleep(sleep func(ctx context.Context, d time.Duration) error) RegenerationOption {
	return func(s *regenerationService) { s.sleep = sleep }
}

type regenerationService struct {
	RegenerationDeps
	cfg    config.SchedulerConfig
	policy retry.Policy
	logger *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRegenerationService 创建重排服务并启动超时清理任务，调用方负责 Close
func NewRegenerationService(cfg config.SchedulerConfig, deps RegenerationDeps, logger *zap.Logger, opts ...RegenerationOption) RegenerationService {
	if deps.Store == nil {
		deps.Store = NewMemoryStatusStore()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}
	if deps.Locker == nil {
		deps.Locker = noopLocker{}
	}
	if deps.Generator == nil {
		deps.Generator = NewScheduleGenerator(cfg.MaxCandidatePool)
	}
	if deps.Validator == nil {
		deps.Validator = NewScheduleValidator()
	}

	policy := retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		Multiplier:  cfg.BackoffFactor,
		MaxDelay:    cfg.MaxDelay,
	}
	policy.ApplyDefaults()
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = 5 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	s := &regenerationService{
		RegenerationDeps: deps,
		cfg:              cfg,
		policy:           policy,
		logger:           logger,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.sweepLoop(ctx)

	return s
}

// regenRun 单次 Regenerate 调用（含全部重试）的上下文
type regenRun struct {
	id       string
	weekID   string
	opts     dto.RegenerationOptions
	attempt  int
	aborted  atomic.Bool
	original *model.Schedule
	captured bool
	hadPrior bool
	restored bool
	backup   *model.ScheduleBackup
	stored   *model.Schedule
	matrix   *PairingMatrix
	created  bool
}

// ════════════════════════════════════════════════════════════
// 锁与状态
// ════════════════════════════════════════════════════════════

func (s *regenerationService) IsRegenerationAllowed(weekID string) bool {
	st, ok := s.Store.Get(weekID)
	return !ok || !st.State.InProgress()
}

func (s *regenerationService) GetRegenerationStatus(weekID string) (*RegenerationStatus, bool) {
	st, ok := s.Store.Get(weekID)
	if !ok {
		return nil, false
	}
	return &st, true
}

func (s *regenerationService) IsLockedElsewhere(ctx context.Context, weekID string) (bool, error) {
	if !s.IsRegenerationAllowed(weekID) {
		return false, nil
	}
	locked, err := s.Locker.IsLocked(ctx, weekID)
	if err != nil {
		s.logger.Error("查询存储层重排锁失败", zap.String("week_id", weekID), zap.Error(err))
		return false, &SystemError{Week: weekID, Kind: SystemInternal, Err: err}
	}
	return locked, nil
}

func (s *regenerationService) SetRegenerationLock(ctx context.Context, weekID string, locked bool) error {
	if !locked {
		s.Store.Delete(weekID)
		s.refreshActive()
		if err := s.Locker.ForceRelease(ctx, weekID); err != nil {
			s.logger.Error("释放重排锁失败", zap.String("week_id", weekID), zap.Error(err))
			return &SystemError{Week: weekID, Kind: SystemInternal, Err: err}
		}
		return nil
	}

	runID := uuid.NewString()
	err := s.Store.Update(weekID, func(cur *RegenerationStatus) (*RegenerationStatus, error) {
		from := StateIdle
		if cur != nil {
			from = cur.State
		}
		if from.InProgress() || !isValidTransition(from, StateConfirming) {
			return nil, &SystemError{Week: weekID, Kind: SystemConcurrent, Err: fmt.Errorf("当前状态 %s", from)}
		}
		return &RegenerationStatus{
			RunID:       runID,
			State:       StateConfirming,
			Progress:    progressConfirming,
			CurrentStep: "等待确认",
			StartedAt:   s.now(),
		}, nil
	})
	if err != nil {
		return err
	}

	ok, err := s.Locker.Acquire(ctx, weekID)
	if err != nil || !ok {
		s.dropStatus(weekID, runID)
		if err != nil {
			s.logger.Error("获取存储层重排锁失败", zap.String("week_id", weekID), zap.Error(err))
			return &SystemError{Week: weekID, Kind: SystemInternal, Err: err}
		}
		return &SystemError{Week: weekID, Kind: SystemConcurrent, Err: errors.New("存储层锁已被占用")}
	}

	s.refreshActive()
	return nil
}

// begin 将状态迁移到 backing_up；直接调用（无 confirming）时在此获取存储层锁
func (s *regenerationService) begin(ctx context.Context, run *regenRun) error {
	needLock := false
	err := s.Store.Update(run.weekID, func(cur *RegenerationStatus) (*RegenerationStatus, error) {
		from := StateIdle
		if cur != nil {
			from = cur.State
		}
		if from != StateConfirming && from.InProgress() {
			return nil, &SystemError{Week: run.weekID, Kind: SystemConcurrent, Err: fmt.Errorf("当前状态 %s", from)}
		}
		if !isValidTransition(from, StateBackingUp) {
			return nil, &SystemError{Week: run.weekID, Kind: SystemInternal, Err: fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, StateBackingUp)}
		}
		needLock = from != StateConfirming
		return &RegenerationStatus{
			RunID:       run.id,
			State:       StateBackingUp,
			Progress:    progressBackingUp,
			CurrentStep: "准备重排",
			StartedAt:   s.now(),
			Attempt:     1,
		}, nil
	})
	if err != nil {
		return err
	}

	if needLock {
		ok, err := s.Locker.Acquire(ctx, run.weekID)
		if err != nil || !ok {
			s.dropStatus(run.weekID, run.id)
			if err != nil {
				return &SystemError{Week: run.weekID, Kind: SystemInternal, Err: err}
			}
			return &SystemError{Week: run.weekID, Kind: SystemConcurrent, Err: errors.New("存储层锁已被占用")}
		}
	}
	s.refreshActive()
	return nil
}

// transition 本次重排内的状态迁移；状态已被超时清理接管时中止
func (s *regenerationService) transition(run *regenRun, to RegenerationState, progress int, step string, mutate func(st *RegenerationStatus)) error {
	return s.Store.Update(run.weekID, func(cur *RegenerationStatus) (*RegenerationStatus, error) {
		if cur == nil || cur.RunID != run.id || cur.State == StateFailed {
			run.aborted.Store(true)
			return nil, &SystemError{Week: run.weekID, Kind: SystemTimeout, Err: ErrRegenerationTimeout}
		}
		if !isValidTransition(cur.State, to) {
			return nil, &SystemError{Week: run.weekID, Kind: SystemInternal, Err: fmt.Errorf("%w: %s → %s", ErrInvalidTransition, cur.State, to)}
		}
		cur.State = to
		cur.Progress = progress
		cur.CurrentStep = step
		cur.Attempt = run.attempt
		if mutate != nil {
			mutate(cur)
		}
		return cur, nil
	})
}

// dropStatus 仅删除属于 runID 的状态，返回是否删除
func (s *regenerationService) dropStatus(weekID, runID string) bool {
	dropped := false
	_ = s.Store.Update(weekID, func(cur *RegenerationStatus) (*RegenerationStatus, error) {
		if cur != nil && cur.RunID == runID {
			dropped = true
			return nil, nil
		}
		return cur, nil
	})
	return dropped
}

func (s *regenerationService) refreshActive() {
	n := 0
	for _, st := range s.Store.Snapshot() {
		if st.State.InProgress() {
			n++
		}
	}
	s.Metrics.SetActiveRegenerations(n)
}

// ════════════════════════════════════════════════════════════
// Regenerate 主流程
// ════════════════════════════════════════════════════════════

func (s *regenerationService) Regenerate(ctx context.Context, weekID string, opts dto.RegenerationOptions) (*dto.RegenerationResult, error) {
	start := s.now()
	if opts.OperatorID == "" {
		opts.OperatorID = systemOperator
	}
	run := &regenRun{id: uuid.NewString(), weekID: weekID, opts: opts}

	// 同周并发调用在此同步拒绝，不排队
	if err := s.begin(ctx, run); err != nil {
		s.logger.Warn("拒绝重排请求", zap.String("week_id", weekID), zap.Error(err))
		return nil, err
	}

	defer func() {
		relCtx, cancel := detached(ctx)
		defer cancel()
		if s.dropStatus(weekID, run.id) {
			if err := s.Locker.ForceRelease(relCtx, weekID); err != nil {
				s.logger.Error("释放重排锁失败", zap.String("week_id", weekID), zap.Error(err))
			}
		}
		s.refreshActive()
	}()

	s.logger.Info("开始重排",
		zap.String("week_id", weekID),
		zap.String("run_id", run.id),
		zap.String("operator", opts.OperatorID),
	)

	retryOpts := []retry.Option{
		retry.RetryIf(func(err error) bool { return ctx.Err() == nil && !run.aborted.Load() && IsRetryable(err) }),
		retry.OnRetry(func(attempt int, delay time.Duration, err error) {
			s.logger.Warn("重排失败，准备重试",
				zap.String("week_id", weekID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
		}),
	}
	if s.sleep != nil {
		retryOpts = append(retryOpts, retry.WithSleep(s.sleep))
	}

	summary, attempts, err := retry.Do(ctx, s.policy, func(ctx context.Context, attempt int) (*dto.ChangeSummary, error) {
		run.attempt = attempt
		s.Metrics.RecordRegenerationAttempt()
		return s.runAttempt(ctx, run)
	}, retryOpts...)

	duration := s.now().Sub(start)
	s.Metrics.ObserveRegenerationDuration(duration.Seconds())

	finCtx, cancel := detached(ctx)
	defer cancel()
	if err != nil {
		return s.fail(finCtx, run, attempts, err, duration), err
	}
	return s.succeed(finCtx, run, attempts, summary, duration), nil
}

// runAttempt 单轮：备份 → 生成校验 → 替换
func (s *regenerationService) runAttempt(ctx context.Context, run *regenRun) (*dto.ChangeSummary, error) {
	current, err := s.backupStep(ctx, run)
	if err != nil {
		return nil, err
	}

	week, participants, candidate, err := s.generateStep(ctx, run)
	if err != nil {
		return nil, err
	}

	stored, err := s.replaceStep(ctx, run, current, candidate)
	if err != nil {
		return nil, err
	}
	run.stored = stored

	summary := computeSummary(run.original, stored, run.matrix)
	s.logger.Debug("重排候选已写入",
		zap.String("week_id", week.WeekID),
		zap.Int("participants", len(participants)),
		zap.Int("foursomes", len(stored.Foursomes)),
	)
	return summary, nil
}

// ── 阶段1: 备份 ──

func (s *regenerationService) backupStep(ctx context.Context, run *regenRun) (*model.Schedule, error) {
	if err := s.transition(run, StateBackingUp, progressBackingUp, "正在备份当前排组", nil); err != nil {
		return nil, err
	}

	current, err := s.Repo.Schedule.GetByWeek(ctx, run.weekID)
	if err != nil && !isNotFound(err) {
		s.logger.Error("查询当前排组失败", zap.String("week_id", run.weekID), zap.Error(err))
		return nil, &BackupError{Week: run.weekID, Kind: BackupCreation, Err: err}
	}
	if !run.captured {
		run.original = current
		run.hadPrior = current != nil
		run.captured = true
	}
	if current == nil {
		// 首次生成，无可备份内容
		return nil, nil
	}
	// 已定稿的排组已计入同组历史，重排后再定稿会重复计数
	if current.Status == model.ScheduleStatusFinalized || current.FinalizedAt != nil {
		return nil, &GenerationError{Week: run.weekID, Kind: GenerationFinalized, Err: ErrScheduleFinalized}
	}

	backup, err := s.Backup.CreateBackup(ctx, current)
	if err != nil {
		kind := BackupCreation
		if errors.Is(err, ErrBackupQuotaExceeded) {
			kind = BackupQuota
		}
		return nil, &BackupError{Week: run.weekID, Kind: kind, Err: err}
	}

	ok, err := s.Backup.ValidateBackup(ctx, backup.BackupID)
	if err != nil {
		return nil, &BackupError{Week: run.weekID, Kind: BackupCreation, Err: err}
	}
	if !ok {
		return nil, &BackupError{Week: run.weekID, Kind: BackupIntegrity, Err: ErrBackupIntegrity}
	}

	run.backup = backup
	s.Metrics.RecordBackup(backup.Size)
	if err := s.transition(run, StateBackingUp, progressBackingUp, "备份完成", func(st *RegenerationStatus) {
		st.BackupID = backup.BackupID
	}); err != nil {
		return nil, err
	}
	return current, nil
}

// ── 阶段2: 生成与校验 ──

func (s *regenerationService) generateStep(ctx context.Context, run *regenRun) (*model.Week, []model.Participant, *model.Schedule, error) {
	if err := s.transition(run, StateGenerating, progressGenerating, "正在生成新排组", nil); err != nil {
		return nil, nil, nil, err
	}

	week, err := s.Repo.Week.GetByID(ctx, run.weekID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, nil, &GenerationError{Week: run.weekID, Kind: GenerationWeekMissing, Err: ErrWeekNotFound}
		}
		s.logger.Error("查询赛周失败", zap.Error(err))
		return nil, nil, nil, &GenerationError{Week: run.weekID, Kind: GenerationFailed, Err: err}
	}

	participants, err := s.Repo.Participant.ListBySeason(ctx, week.SeasonID)
	if err != nil {
		s.logger.Error("查询名册失败", zap.Error(err))
		return nil, nil, nil, &GenerationError{Week: run.weekID, Kind: GenerationFailed, Err: err}
	}
	if len(participants) == 0 {
		return nil, nil, nil, &GenerationError{Week: run.weekID, Kind: GenerationNoParticipants, Err: ErrNoParticipants}
	}

	rows, err := s.Repo.Week.ListAvailability(ctx, run.weekID)
	if err != nil {
		s.logger.Error("查询出勤失败", zap.Error(err))
		return nil, nil, nil, &GenerationError{Week: run.weekID, Kind: GenerationFailed, Err: err}
	}
	availability := model.ToAvailabilityMap(rows)

	matrix, err := s.Pairing.LoadMatrix(ctx, week.SeasonID)
	if err != nil {
		return nil, nil, nil, &GenerationError{Week: run.weekID, Kind: GenerationFailed, Err: err}
	}
	run.matrix = matrix

	candidate, err := s.Generator.Generate(week, participants, availability, matrix)
	if err != nil {
		if errors.Is(err, ErrInsufficientParticipants) {
			eligible := len(EligibleParticipants(participants, availability))
			return nil, nil, nil, &GenerationError{Week: run.weekID, Kind: GenerationInsufficient, Eligible: eligible, Err: err}
		}
		return nil, nil, nil, &GenerationError{Week: run.weekID, Kind: GenerationFailed, Err: err}
	}

	eligible := EligibleParticipants(participants, availability)
	result := MergeValidation(
		s.Validator.Validate(candidate, eligible, week),
		s.Validator.ValidateBusinessRules(candidate, participants, week),
	)
	if !result.Valid {
		return nil, nil, nil, &ValidationError{Week: run.weekID, Errors: result.Errors}
	}
	for _, w := range result.Warnings {
		s.logger.Info("候选排组告警", zap.String("week_id", run.weekID), zap.String("warning", w))
	}

	return week, participants, candidate, nil
}

// ── 阶段3: 原子替换 ──

func (s *regenerationService) replaceStep(ctx context.Context, run *regenRun, current, candidate *model.Schedule) (*model.Schedule, error) {
	operator := run.opts.OperatorID

	target := &model.Schedule{
		ScheduleID: uuid.NewString(),
		WeekID:     run.weekID,
		Status:     model.ScheduleStatusDraft,
		Foursomes:  candidate.Foursomes,
	}
	if current != nil {
		target.ScheduleID = current.ScheduleID
		target.VersionedModel = current.VersionedModel
	}
	target.UpdatedBy = &operator

	checksum, err := ScheduleChecksum(target)
	if err != nil {
		return nil, &ReplacementError{Week: run.weekID, Err: err}
	}
	if err := s.transition(run, StateReplacing, progressReplacing, "正在替换排组", func(st *RegenerationStatus) {
		st.TargetChecksum = checksum
	}); err != nil {
		return nil, err
	}

	if current == nil {
		target.CreatedBy = &operator
		if err := s.Repo.Schedule.Create(ctx, target); err != nil {
			s.logger.Error("创建排组失败", zap.String("week_id", run.weekID), zap.Error(err))
			return nil, &ReplacementError{Week: run.weekID, Err: err}
		}
		run.created = true
	} else if err := s.Repo.Schedule.ReplaceFoursomes(ctx, target); err != nil {
		s.logger.Error("替换排组失败", zap.String("week_id", run.weekID), zap.Error(err))
		return nil, s.rollback(ctx, run, err)
	}

	// 回读确认
	stored, err := s.Repo.Schedule.GetByWeek(ctx, run.weekID)
	if err != nil {
		return nil, s.rollback(ctx, run, fmt.Errorf("回读排组失败: %w", err))
	}
	if stored.ScheduleID != target.ScheduleID ||
		(!run.created && !stored.UpdatedAt.Equal(target.UpdatedAt)) ||
		len(stored.Foursomes) != len(target.Foursomes) {
		return nil, s.rollback(ctx, run, errors.New("回读排组与写入内容不一致"))
	}
	return stored, nil
}

// rollback 替换失败后恢复本轮备份；恢复失败时返回不可重试的复合错误
func (s *regenerationService) rollback(ctx context.Context, run *regenRun, cause error) error {
	rerr := &ReplacementError{Week: run.weekID, Err: cause}
	ctx, cancel := detached(ctx)
	defer cancel()

	switch {
	case run.backup != nil:
		rerr.BackupID = run.backup.BackupID
		restored, err := s.restoreIfChanged(ctx, run.weekID, run.backup)
		run.restored = restored
		if err != nil {
			s.logger.Error("替换失败后恢复备份失败",
				zap.String("week_id", run.weekID),
				zap.String("backup_id", run.backup.BackupID),
				zap.Error(err),
			)
			rerr.RollbackFailed = true
			rerr.Err = errors.Join(cause, err)
		}
	case run.created:
		stored, err := s.Repo.Schedule.GetByWeek(ctx, run.weekID)
		if err == nil {
			if _, err = s.Repo.Schedule.Delete(ctx, stored.ScheduleID); err == nil {
				run.created = false
			}
		}
		if err != nil && !isNotFound(err) {
			s.logger.Error("撤销新建排组失败", zap.String("week_id", run.weekID), zap.Error(err))
			rerr.RollbackFailed = true
			rerr.Err = errors.Join(cause, err)
		}
	}
	return rerr
}

// restoreIfChanged 当前存储内容与备份不一致时才恢复，返回是否执行了恢复
func (s *regenerationService) restoreIfChanged(ctx context.Context, weekID string, backup *model.ScheduleBackup) (bool, error) {
	stored, err := s.Repo.Schedule.GetByWeek(ctx, weekID)
	if err != nil && !isNotFound(err) {
		return false, err
	}
	if stored != nil {
		sum, err := ScheduleChecksum(stored)
		if err != nil {
			return false, err
		}
		if sum == backup.Checksum {
			return false, nil
		}
	}
	if _, err := s.Backup.RestoreBackup(ctx, backup.BackupID); err != nil {
		return false, err
	}
	return true, nil
}

// ── 阶段4: 完成 ──

func (s *regenerationService) succeed(ctx context.Context, run *regenRun, attempts int, summary *dto.ChangeSummary, duration time.Duration) *dto.RegenerationResult {
	now := s.now()
	if err := s.transition(run, StateCompleted, progressCompleted, "重排完成", func(st *RegenerationStatus) {
		st.CompletedAt = &now
	}); err != nil {
		s.logger.Warn("重排已写入但状态已被接管", zap.String("week_id", run.weekID), zap.Error(err))
	}

	if n, err := s.Backup.CleanupOldBackups(ctx, run.weekID); err != nil {
		s.logger.Error("清理旧备份失败", zap.String("week_id", run.weekID), zap.Error(err))
	} else if n > 0 {
		s.logger.Info("已清理旧备份", zap.String("week_id", run.weekID), zap.Int("deleted", n))
	}

	result := &dto.RegenerationResult{
		Success:    true,
		WeekID:     run.weekID,
		ScheduleID: run.stored.ScheduleID,
		Attempts:   attempts,
		Summary:    summary,
		DurationMs: duration.Milliseconds(),
	}
	if run.backup != nil {
		result.BackupID = run.backup.BackupID
	}

	scheduleID := run.stored.ScheduleID
	s.writeLog(ctx, &model.RegenerationLog{
		WeekID:         run.weekID,
		ScheduleID:     &scheduleID,
		Outcome:        model.RegenOutcomeSuccess,
		Attempts:       attempts,
		Message:        truncate(run.opts.Reason, 500),
		PlayersAdded:   len(summary.PlayersAdded),
		PlayersRemoved: len(summary.PlayersRemoved),
		PairingDelta:   summary.PairingDelta,
		MorningDelta:   summary.MorningDelta,
		AfternoonDelta: summary.AfternoonDelta,
		OperatorID:     run.opts.OperatorID,
	})

	s.Notifier.Notify(ctx, NotificationMessage{
		WeekID: run.weekID,
		Level:  model.NotifySuccess,
		Title:  "重排完成",
		Content: fmt.Sprintf("新增 %d 人、移除 %d 人，重复同组变化 %+d",
			len(summary.PlayersAdded), len(summary.PlayersRemoved), summary.PairingDelta),
		RecoveryActions: []string{ActionRefresh},
		AutoHide:        true,
	})
	s.Metrics.RecordRegenerationOutcome(model.RegenOutcomeSuccess, "")

	s.logger.Info("重排完成",
		zap.String("week_id", run.weekID),
		zap.Int("attempts", attempts),
		zap.Duration("duration", duration),
	)
	return result
}

func (s *regenerationService) fail(ctx context.Context, run *regenRun, attempts int, cause error, duration time.Duration) *dto.RegenerationResult {
	category := string(CategorySystem)
	retryable := false
	if re, ok := AsRegenerationError(cause); ok {
		category = string(re.Category())
		retryable = re.Retryable()
	}
	actions := RecoveryActionsFor(cause)

	// 尽力恢复：仅使用本次重排自己的备份
	restored, restoreFailed := false, false
	if run.backup != nil && !run.aborted.Load() {
		var err error
		restored, err = s.restoreIfChanged(ctx, run.weekID, run.backup)
		if err != nil {
			restoreFailed = true
			s.logger.Error("重排失败后自动恢复失败",
				zap.String("week_id", run.weekID),
				zap.String("backup_id", run.backup.BackupID),
				zap.Error(err),
			)
		}
	}
	if !restoreFailed {
		restored = restored || run.restored
	}
	var re *ReplacementError
	if errors.As(cause, &re) && re.RollbackFailed && !restored {
		restoreFailed = true
	}
	if restoreFailed && !containsString(actions, ActionManualRestore) {
		actions = append([]string{ActionManualRestore}, actions...)
	}

	now := s.now()
	_ = s.transition(run, StateFailed, 0, "重排失败", func(st *RegenerationStatus) {
		st.CompletedAt = &now
		st.Err = cause
	})

	outcome := model.RegenOutcomeFailed
	if restored {
		outcome = model.RegenOutcomeRestored
	}
	log := &model.RegenerationLog{
		WeekID:        run.weekID,
		Outcome:       outcome,
		Attempts:      attempts,
		ErrorCategory: category,
		Message:       truncate(cause.Error(), 500),
		OperatorID:    run.opts.OperatorID,
	}
	if run.original != nil {
		id := run.original.ScheduleID
		log.ScheduleID = &id
	}
	s.writeLog(ctx, log)

	msg := NotificationMessage{
		WeekID:          run.weekID,
		Level:           model.NotifyError,
		Title:           "重排失败",
		Content:         cause.Error(),
		RecoveryActions: actions,
		AutoHide:        !restoreFailed,
	}
	if restoreFailed {
		msg.Title = "重排失败且未能恢复原排组"
	}
	s.Notifier.Notify(ctx, msg)
	s.Metrics.RecordRegenerationOutcome(outcome, category)

	s.logger.Error("重排失败",
		zap.String("week_id", run.weekID),
		zap.String("category", category),
		zap.Int("attempts", attempts),
		zap.Bool("restored", restored),
		zap.Error(cause),
	)

	result := &dto.RegenerationResult{
		Success:         false,
		WeekID:          run.weekID,
		Attempts:        attempts,
		ErrorCategory:   category,
		Retryable:       retryable,
		Message:         cause.Error(),
		RecoveryActions: actions,
		Restored:        restored,
		DurationMs:      duration.Milliseconds(),
	}
	if run.original != nil {
		result.ScheduleID = run.original.ScheduleID
	}
	if run.backup != nil {
		result.BackupID = run.backup.BackupID
	}
	return result
}

// ════════════════════════════════════════════════════════════
// RestoreBackup 手动恢复
// ════════════════════════════════════════════════════════════

func (s *regenerationService) RestoreBackup(ctx context.Context, weekID, backupID, operatorID string) (*model.Schedule, error) {
	backup, err := s.Repo.Backup.GetByID(ctx, backupID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrBackupNotFound
		}
		s.logger.Error("查询备份失败", zap.Error(err))
		return nil, err
	}
	if backup.WeekID != weekID {
		return nil, ErrBackupWeekMismatch
	}
	if operatorID == "" {
		operatorID = systemOperator
	}

	// 占用状态表与存储层锁，期间拒绝重排
	run := &regenRun{id: uuid.NewString(), weekID: weekID, opts: dto.RegenerationOptions{OperatorID: operatorID}}
	if err := s.begin(ctx, run); err != nil {
		return nil, err
	}
	defer func() {
		relCtx, cancel := detached(ctx)
		defer cancel()
		if s.dropStatus(weekID, run.id) {
			if err := s.Locker.ForceRelease(relCtx, weekID); err != nil {
				s.logger.Error("释放重排锁失败", zap.String("week_id", weekID), zap.Error(err))
			}
		}
		s.refreshActive()
	}()

	current, err := s.Repo.Schedule.GetByWeek(ctx, weekID)
	if err != nil && !isNotFound(err) {
		s.logger.Error("查询当前排组失败", zap.String("week_id", weekID), zap.Error(err))
		return nil, err
	}
	// 定稿后回到草稿会导致再次定稿时重复计数
	if current != nil && (current.Status == model.ScheduleStatusFinalized || current.FinalizedAt != nil) {
		return nil, ErrScheduleFinalized
	}

	restored, err := s.Backup.RestoreBackup(ctx, backupID)
	if err != nil {
		s.logger.Error("手动恢复备份失败", zap.String("week_id", weekID), zap.String("backup_id", backupID), zap.Error(err))
		return nil, &BackupError{Week: weekID, Kind: BackupRestoration, Err: err}
	}

	ctx, cancel := detached(ctx)
	defer cancel()
	scheduleID := restored.ScheduleID
	s.writeLog(ctx, &model.RegenerationLog{
		WeekID:     weekID,
		ScheduleID: &scheduleID,
		Outcome:    model.RegenOutcomeRestored,
		Attempts:   1,
		Message:    "手动恢复备份 " + backupID,
		OperatorID: operatorID,
	})
	s.Notifier.Notify(ctx, NotificationMessage{
		WeekID:   weekID,
		Level:    model.NotifySuccess,
		Title:    "排组已恢复",
		Content:  "已恢复到备份时的排组",
		AutoHide: true,
	})
	s.logger.Info("手动恢复备份完成", zap.String("week_id", weekID), zap.String("backup_id", backupID), zap.String("operator", operatorID))
	return restored, nil
}

func (s *regenerationService) writeLog(ctx context.Context, log *model.RegenerationLog) {
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := s.Repo.RegenerationLog.Create(ctx, log); err != nil {
		s.logger.Error("写入重排日志失败", zap.String("week_id", log.WeekID), zap.Error(err))
	}
}

func (s *regenerationService) ListLogs(ctx context.Context, weekID string, req *dto.RegenerationLogListRequest) ([]model.RegenerationLog, int64, error) {
	logs, total, err := s.Repo.RegenerationLog.ListByWeek(ctx, weekID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询重排日志失败", zap.Error(err))
		return nil, 0, err
	}
	return logs, total, nil
}

// computeSummary before 为空表示首次生成
func computeSummary(before, after *model.Schedule, matrix *PairingMatrix) *dto.ChangeSummary {
	beforeSet := make(map[string]bool)
	if before != nil {
		for _, id := range before.PlayerIDs() {
			beforeSet[id] = true
		}
	}
	afterSet := make(map[string]bool)
	for _, id := range after.PlayerIDs() {
		afterSet[id] = true
	}

	summary := &dto.ChangeSummary{PlayersAdded: []string{}, PlayersRemoved: []string{}}
	for id := range afterSet {
		if !beforeSet[id] {
			summary.PlayersAdded = append(summary.PlayersAdded, id)
		}
	}
	for id := range beforeSet {
		if !afterSet[id] {
			summary.PlayersRemoved = append(summary.PlayersRemoved, id)
		}
	}
	sort.Strings(summary.PlayersAdded)
	sort.Strings(summary.PlayersRemoved)

	summary.PairingDelta = matrix.ScheduleCost(after) - matrix.ScheduleCost(before)
	summary.MorningDelta = after.SlotCount(model.SlotMorning)
	summary.AfternoonDelta = after.SlotCount(model.SlotAfternoon)
	if before != nil {
		summary.MorningDelta -= before.SlotCount(model.SlotMorning)
		summary.AfternoonDelta -= before.SlotCount(model.SlotAfternoon)
	}
	return summary
}

// ════════════════════════════════════════════════════════════
// 超时清理
// ════════════════════════════════════════════════════════════

func (s *regenerationService) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepStale(ctx)
		}
	}
}

func (s *regenerationService) SweepStale(ctx context.Context) int {
	now := s.now()
	swept := 0

	for _, st := range s.Store.Snapshot() {
		if !st.State.InProgress() || now.Sub(st.StartedAt) <= s.cfg.StaleTimeout {
			continue
		}

		var taken RegenerationStatus
		err := s.Store.Update(st.WeekID, func(cur *RegenerationStatus) (*RegenerationStatus, error) {
			if cur == nil || cur.RunID != st.RunID || !cur.State.InProgress() {
				return nil, errSweepSkipped
			}
			taken = *cur
			cur.State = StateFailed
			cur.CompletedAt = &now
			cur.Err = &SystemError{Week: st.WeekID, Kind: SystemTimeout, Err: ErrRegenerationTimeout}
			return cur, nil
		})
		if err != nil {
			continue
		}

		s.recoverStale(ctx, taken)
		if s.dropStatus(st.WeekID, st.RunID) {
			if err := s.Locker.ForceRelease(ctx, st.WeekID); err != nil {
				s.logger.Error("超时清理释放锁失败", zap.String("week_id", st.WeekID), zap.Error(err))
			}
		}
		swept++
	}

	if swept > 0 {
		s.Metrics.RecordStaleSweep(swept)
		s.refreshActive()
	}
	return swept
}

var errSweepSkipped = errors.New("sweep skipped")

// recoverStale 目标内容已写入则视为已完成但未标记，不回退；否则按该次备份恢复
func (s *regenerationService) recoverStale(ctx context.Context, st RegenerationStatus) {
	logger := s.logger.With(zap.String("week_id", st.WeekID), zap.String("state", st.State.String()))
	logger.Warn("重排超时，强制失败", zap.Time("started_at", st.StartedAt))

	outcome := model.RegenOutcomeTimedOut
	msg := NotificationMessage{
		WeekID:          st.WeekID,
		Level:           model.NotifyWarning,
		Title:           "重排超时",
		Content:         "重排长时间未完成，已自动终止",
		RecoveryActions: []string{ActionRefresh, ActionRetry},
		AutoHide:        true,
	}

	if st.State != StateConfirming {
		stored, err := s.Repo.Schedule.GetByWeek(ctx, st.WeekID)
		if err != nil && !isNotFound(err) {
			logger.Error("超时清理查询排组失败", zap.Error(err))
		}

		var storedSum string
		if stored != nil {
			storedSum, _ = ScheduleChecksum(stored)
		}

		switch {
		case st.TargetChecksum != "" && storedSum == st.TargetChecksum:
			msg.Content = "重排可能已完成但未被标记，请核对当前排组"
			logger.Warn("当前排组与重排目标一致，不回退")
		case st.BackupID != "":
			backup, err := s.Repo.Backup.GetByID(ctx, st.BackupID)
			if err == nil {
				var restored bool
				restored, err = s.restoreIfChanged(ctx, st.WeekID, backup)
				if restored {
					outcome = model.RegenOutcomeRestored
					msg.Content = "重排超时，已恢复到重排前的排组"
				}
			}
			if err != nil {
				logger.Error("超时清理恢复备份失败", zap.String("backup_id", st.BackupID), zap.Error(err))
				msg.Level = model.NotifyError
				msg.Title = "重排超时且未能恢复原排组"
				msg.RecoveryActions = []string{ActionManualRestore, ActionRefresh}
				msg.AutoHide = false
			}
		}

		s.writeLog(ctx, &model.RegenerationLog{
			WeekID:        st.WeekID,
			Outcome:       outcome,
			Attempts:      st.Attempt,
			ErrorCategory: string(CategorySystem),
			Message:       msg.Content,
			OperatorID:    systemOperator,
		})
	}

	s.Notifier.Notify(ctx, msg)
	s.Metrics.RecordRegenerationOutcome(outcome, string(CategorySystem))
}

// Close 停止超时清理任务并等待退出
func (s *regenerationService) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
