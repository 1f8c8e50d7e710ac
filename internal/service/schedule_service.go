package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/dto"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/repository"
	pkgerrors "github.com/rservant/indoor-golf-scheduler-sub005/pkg/errors"
)

// ── 排组模块业务错误 ──

var (
	ErrScheduleNotFound      = errors.New("该周暂无排组")
	ErrScheduleAlreadyExists = errors.New("该周已有排组，请使用重排")
	ErrScheduleNotDraft      = errors.New("排组非草稿状态，不可执行此操作")
	ErrFoursomeNotFound      = errors.New("分组不存在")
)

const timeLayout = "2006-01-02T15:04:05Z"

// RegenerationGuard 重排进行中时禁止人工修改
type RegenerationGuard interface {
	IsRegenerationAllowed(weekID string) bool
}

// ScheduleService 周排组业务接口
type ScheduleService interface {
	// GenerateSchedule 首次生成排组（该周尚无排组）
	GenerateSchedule(ctx context.Context, req *dto.GenerateScheduleRequest, callerID string) (*dto.ScheduleResponse, error)
	GetSchedule(ctx context.Context, weekID string) (*dto.ScheduleResponse, error)
	// ValidateSchedule 校验候选排组，未提供分组时校验已存储排组
	ValidateSchedule(ctx context.Context, weekID string, req *dto.ValidateScheduleRequest) (*dto.ValidationResult, error)
	// UpdateFoursome 手动调整草稿排组中的单个分组
	UpdateFoursome(ctx context.Context, weekID, foursomeID string, req *dto.UpdateFoursomeRequest, callerID string) (*dto.ScheduleResponse, error)
	// Finalize 定稿并累加同组历史
	Finalize(ctx context.Context, weekID, callerID string) (*dto.ScheduleResponse, error)
	// CheckScope 出勤变化检测，变化时标记 need_regen
	CheckScope(ctx context.Context, weekID string) (*dto.ScopeCheckResponse, error)
}

type scheduleService struct {
	repo      *repository.Repository
	generator *ScheduleGenerator
	validator *ScheduleValidator
	pairing   PairingHistoryService
	guard     RegenerationGuard
	logger    *zap.Logger
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(
	repo *repository.Repository,
	generator *ScheduleGenerator,
	validator *ScheduleValidator,
	pairing PairingHistoryService,
	guard RegenerationGuard,
	logger *zap.Logger,
) ScheduleService {
	return &scheduleService{
		repo:      repo,
		generator: generator,
		validator: validator,
		pairing:   pairing,
		guard:     guard,
		logger:    logger,
	}
}

// weekContext 生成与校验所需的一周输入
type weekContext struct {
	week         *model.Week
	participants []model.Participant
	availability model.AvailabilityMap
}

func (w *weekContext) eligible() []model.Participant {
	return EligibleParticipants(w.participants, w.availability)
}

func (w *weekContext) byID() map[string]*model.Participant {
	m := make(map[string]*model.Participant, len(w.participants))
	for i := range w.participants {
		m[w.participants[i].ParticipantID] = &w.participants[i]
	}
	return m
}

func (s *scheduleService) loadWeek(ctx context.Context, weekID string) (*weekContext, error) {
	week, err := s.repo.Week.GetByID(ctx, weekID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrWeekNotFound
		}
		s.logger.Error("查询赛周失败", zap.Error(err))
		return nil, err
	}
	participants, err := s.repo.Participant.ListBySeason(ctx, week.SeasonID)
	if err != nil {
		s.logger.Error("查询名册失败", zap.Error(err))
		return nil, err
	}
	rows, err := s.repo.Week.ListAvailability(ctx, weekID)
	if err != nil {
		s.logger.Error("查询出勤失败", zap.Error(err))
		return nil, err
	}
	return &weekContext{week: week, participants: participants, availability: model.ToAvailabilityMap(rows)}, nil
}

func (s *scheduleService) checkGuard(weekID string) error {
	if s.guard != nil && !s.guard.IsRegenerationAllowed(weekID) {
		return ErrConcurrentOperation
	}
	return nil
}

func (s *scheduleService) validate(wc *weekContext, schedule *model.Schedule) dto.ValidationResult {
	return MergeValidation(
		s.validator.Validate(schedule, wc.eligible(), wc.week),
		s.validator.ValidateBusinessRules(schedule, wc.participants, wc.week),
	)
}

// ════════════════════════════════════════════════════════════
// GenerateSchedule 首次生成
// ════════════════════════════════════════════════════════════

func (s *scheduleService) GenerateSchedule(ctx context.Context, req *dto.GenerateScheduleRequest, callerID string) (*dto.ScheduleResponse, error) {
	if err := s.checkGuard(req.WeekID); err != nil {
		return nil, err
	}

	wc, err := s.loadWeek(ctx, req.WeekID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.Schedule.GetByWeek(ctx, req.WeekID)
	if err != nil && !isNotFound(err) {
		s.logger.Error("查询已有排组失败", zap.Error(err))
		return nil, err
	}
	if existing != nil {
		return nil, ErrScheduleAlreadyExists
	}

	matrix, err := s.pairing.LoadMatrix(ctx, wc.week.SeasonID)
	if err != nil {
		return nil, err
	}

	schedule, err := s.generator.Generate(wc.week, wc.participants, wc.availability, matrix)
	if err != nil {
		return nil, err
	}
	if result := s.validate(wc, schedule); !result.Valid {
		s.logger.Error("生成结果未通过校验", zap.String("week_id", req.WeekID), zap.Strings("errors", result.Errors))
		return nil, &ValidationError{Week: req.WeekID, Errors: result.Errors}
	}

	schedule.CreatedBy = &callerID
	schedule.UpdatedBy = &callerID
	if err := s.repo.Schedule.Create(ctx, schedule); err != nil {
		s.logger.Error("保存排组失败", zap.String("week_id", req.WeekID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("排组已生成",
		zap.String("week_id", req.WeekID),
		zap.Int("foursomes", len(schedule.Foursomes)),
		zap.Int("pairing_cost", matrix.ScheduleCost(schedule)),
	)
	return toScheduleResponse(schedule, wc.byID()), nil
}

func (s *scheduleService) GetSchedule(ctx context.Context, weekID string) (*dto.ScheduleResponse, error) {
	schedule, err := s.getByWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	wc, err := s.loadWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	return toScheduleResponse(schedule, wc.byID()), nil
}

func (s *scheduleService) getByWeek(ctx context.Context, weekID string) (*model.Schedule, error) {
	schedule, err := s.repo.Schedule.GetByWeek(ctx, weekID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrScheduleNotFound
		}
		s.logger.Error("查询排组失败", zap.Error(err))
		return nil, err
	}
	return schedule, nil
}

// ════════════════════════════════════════════════════════════
// ValidateSchedule
// ════════════════════════════════════════════════════════════

func (s *scheduleService) ValidateSchedule(ctx context.Context, weekID string, req *dto.ValidateScheduleRequest) (*dto.ValidationResult, error) {
	wc, err := s.loadWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}

	var schedule *model.Schedule
	if req == nil || len(req.Foursomes) == 0 {
		schedule, err = s.getByWeek(ctx, weekID)
		if err != nil {
			return nil, err
		}
	} else {
		schedule = &model.Schedule{WeekID: weekID, Status: model.ScheduleStatusDraft}
		for _, f := range req.Foursomes {
			schedule.Foursomes = append(schedule.Foursomes, model.Foursome{
				TimeSlot:  f.TimeSlot,
				Position:  f.Position,
				PlayerIDs: model.StringArray(f.PlayerIDs),
			})
		}
	}

	result := s.validate(wc, schedule)
	return &result, nil
}

// ════════════════════════════════════════════════════════════
// UpdateFoursome 草稿人工调整
// ════════════════════════════════════════════════════════════

func (s *scheduleService) UpdateFoursome(ctx context.Context, weekID, foursomeID string, req *dto.UpdateFoursomeRequest, callerID string) (*dto.ScheduleResponse, error) {
	if err := s.checkGuard(weekID); err != nil {
		return nil, err
	}

	schedule, err := s.getByWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	if schedule.Status != model.ScheduleStatusDraft {
		return nil, ErrScheduleNotDraft
	}
	if req.Version != schedule.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	idx := -1
	for i := range schedule.Foursomes {
		if schedule.Foursomes[i].FoursomeID == foursomeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrFoursomeNotFound
	}

	// 在副本上应用修改后整体校验
	candidate := *schedule
	candidate.Foursomes = append([]model.Foursome(nil), schedule.Foursomes...)
	target := &candidate.Foursomes[idx]
	if target.TimeSlot != req.TimeSlot {
		target.Position = nextPosition(&candidate, req.TimeSlot)
	}
	target.TimeSlot = req.TimeSlot
	target.PlayerIDs = model.StringArray(req.PlayerIDs)

	wc, err := s.loadWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	if result := s.validate(wc, &candidate); !result.Valid {
		return nil, &ValidationError{Week: weekID, Errors: result.Errors}
	}

	schedule.UpdatedBy = &callerID
	if err := s.repo.Schedule.UpdateFoursome(ctx, schedule, target); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, err
		}
		s.logger.Error("更新分组失败", zap.String("foursome_id", foursomeID), zap.Error(err))
		return nil, err
	}

	updated, err := s.getByWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	return toScheduleResponse(updated, wc.byID()), nil
}

// nextPosition 目标时段的下一个组号
func nextPosition(schedule *model.Schedule, slot string) int {
	max := 0
	for _, f := range schedule.Foursomes {
		if f.TimeSlot == slot && f.Position > max {
			max = f.Position
		}
	}
	return max + 1
}

// ════════════════════════════════════════════════════════════
// Finalize 定稿并写入同组历史
// ════════════════════════════════════════════════════════════

func (s *scheduleService) Finalize(ctx context.Context, weekID, callerID string) (*dto.ScheduleResponse, error) {
	if err := s.checkGuard(weekID); err != nil {
		return nil, err
	}

	schedule, err := s.getByWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	if schedule.Status != model.ScheduleStatusDraft {
		return nil, ErrScheduleNotDraft
	}

	wc, err := s.loadWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	if result := s.validate(wc, schedule); !result.Valid {
		return nil, &ValidationError{Week: weekID, Errors: result.Errors}
	}

	// 先以乐观锁切换状态，保证同一草稿只会被定稿一次
	now := time.Now()
	schedule.Status = model.ScheduleStatusFinalized
	schedule.FinalizedAt = &now
	schedule.UpdatedBy = &callerID
	if err := s.repo.Schedule.UpdateStatus(ctx, schedule); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("定稿排组失败", zap.String("week_id", weekID), zap.Error(err))
		}
		return nil, err
	}

	if err := s.pairing.RecordPairings(ctx, wc.week.SeasonID, schedule); err != nil {
		schedule.Status = model.ScheduleStatusDraft
		schedule.FinalizedAt = nil
		if rerr := s.repo.Schedule.UpdateStatus(ctx, schedule); rerr != nil {
			s.logger.Error("回退定稿状态失败", zap.String("week_id", weekID), zap.Error(rerr))
		}
		return nil, err
	}

	s.logger.Info("排组已定稿", zap.String("week_id", weekID), zap.String("operator", callerID))
	return toScheduleResponse(schedule, wc.byID()), nil
}

// ════════════════════════════════════════════════════════════
// CheckScope 出勤变化检测
// ════════════════════════════════════════════════════════════

func (s *scheduleService) CheckScope(ctx context.Context, weekID string) (*dto.ScopeCheckResponse, error) {
	schedule, err := s.getByWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	wc, err := s.loadWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}

	scheduled := make(map[string]bool)
	for _, id := range schedule.PlayerIDs() {
		scheduled[id] = true
	}
	available := make(map[string]bool)
	for _, p := range wc.eligible() {
		available[p.ParticipantID] = true
	}

	byID := wc.byID()
	name := func(id string) string {
		if p, ok := byID[id]; ok {
			return p.Name
		}
		return id
	}

	added, removed := []string{}, []string{}
	for _, id := range sortedSet(available) {
		if !scheduled[id] {
			added = append(added, name(id))
		}
	}
	for _, id := range sortedSet(scheduled) {
		if !available[id] {
			removed = append(removed, name(id))
		}
	}
	changed := len(added) > 0 || len(removed) > 0

	// 已定稿的排组只报告变化，不再改回可重排状态
	if changed && schedule.Status == model.ScheduleStatusDraft && s.checkGuard(weekID) == nil {
		schedule.Status = model.ScheduleStatusNeedRegen
		if err := s.repo.Schedule.UpdateStatus(ctx, schedule); err != nil {
			s.logger.Error("标记need_regen失败", zap.Error(err))
			return nil, err
		}
		s.logger.Info("出勤已变化，排组标记为需重排",
			zap.String("week_id", weekID),
			zap.Int("added", len(added)),
			zap.Int("removed", len(removed)),
		)
	}

	return &dto.ScopeCheckResponse{
		Changed: changed,
		Added:   added,
		Removed: removed,
		Status:  schedule.Status,
	}, nil
}

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ── 响应构建 ──

func toPlayerBrief(id string, byID map[string]*model.Participant) dto.PlayerBrief {
	p, ok := byID[id]
	if !ok {
		return dto.PlayerBrief{ID: id, Name: id}
	}
	return dto.PlayerBrief{
		ID:             p.ParticipantID,
		Name:           p.Name,
		Handedness:     p.Handedness,
		TimePreference: p.TimePreference,
	}
}

func toScheduleResponse(schedule *model.Schedule, byID map[string]*model.Participant) *dto.ScheduleResponse {
	resp := &dto.ScheduleResponse{
		ID:             schedule.ScheduleID,
		WeekID:         schedule.WeekID,
		Status:         schedule.Status,
		Version:        schedule.Version,
		Morning:        []dto.FoursomeResponse{},
		Afternoon:      []dto.FoursomeResponse{},
		MorningCount:   schedule.SlotCount(model.SlotMorning),
		AfternoonCount: schedule.SlotCount(model.SlotAfternoon),
		UpdatedAt:      schedule.UpdatedAt.Format(timeLayout),
	}
	if schedule.FinalizedAt != nil {
		t := schedule.FinalizedAt.Format(timeLayout)
		resp.FinalizedAt = &t
	}

	for _, f := range schedule.Foursomes {
		fr := dto.FoursomeResponse{
			ID:       f.FoursomeID,
			TimeSlot: f.TimeSlot,
			Position: f.Position,
			Players:  make([]dto.PlayerBrief, 0, len(f.PlayerIDs)),
		}
		for _, id := range f.PlayerIDs {
			fr.Players = append(fr.Players, toPlayerBrief(id, byID))
		}
		if f.TimeSlot == model.SlotMorning {
			resp.Morning = append(resp.Morning, fr)
		} else {
			resp.Afternoon = append(resp.Afternoon, fr)
		}
	}
	return resp
}
