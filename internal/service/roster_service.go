package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/dto"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/repository"
)

// ── 名册模块业务错误 ──

var (
	ErrParticipantNotFound    = errors.New("球员不存在")
	ErrParticipantNotInSeason = errors.New("球员不属于该赛周所在赛季")
	ErrInvalidDateRange       = errors.New("开始日期不能晚于结束日期")
	ErrPlayDateOutOfSeason    = errors.New("比赛日期不在赛季范围内")
)

const dateLayout = "2006-01-02"

// RosterService 赛季、球员、赛周与出勤维护
type RosterService interface {
	CreateSeason(ctx context.Context, req *dto.CreateSeasonRequest, callerID string) (*dto.SeasonResponse, error)
	ListSeasons(ctx context.Context) ([]dto.SeasonResponse, error)
	CreateParticipant(ctx context.Context, seasonID string, req *dto.CreateParticipantRequest, callerID string) (*dto.PlayerBrief, error)
	ListParticipants(ctx context.Context, seasonID string) ([]dto.PlayerBrief, error)
	CreateWeek(ctx context.Context, seasonID string, req *dto.CreateWeekRequest, callerID string) (*dto.WeekResponse, error)
	GetWeek(ctx context.Context, weekID string) (*dto.WeekResponse, error)
	ListWeeks(ctx context.Context, seasonID string) ([]dto.WeekResponse, error)
	// SetAvailability 批量写入出勤；未写入的球员保持 no_data
	SetAvailability(ctx context.Context, weekID string, req *dto.SetAvailabilityRequest, callerID string) ([]dto.AvailabilityResponse, error)
	GetAvailability(ctx context.Context, weekID string) ([]dto.AvailabilityResponse, error)
}

type rosterService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewRosterService 创建 RosterService 实例
func NewRosterService(repo *repository.Repository, logger *zap.Logger) RosterService {
	return &rosterService{repo: repo, logger: logger}
}

// ── 赛季 ──

func (s *rosterService) CreateSeason(ctx context.Context, req *dto.CreateSeasonRequest, callerID string) (*dto.SeasonResponse, error) {
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, ErrInvalidDateRange
	}

	season := &model.Season{
		Name:      req.Name,
		StartDate: start,
		EndDate:   end,
		IsActive:  req.IsActive,
	}
	season.CreatedBy = &callerID
	season.UpdatedBy = &callerID
	if err := s.repo.Season.Create(ctx, season); err != nil {
		s.logger.Error("创建赛季失败", zap.Error(err))
		return nil, err
	}

	resp := toSeasonResponse(season)
	return &resp, nil
}

func (s *rosterService) ListSeasons(ctx context.Context) ([]dto.SeasonResponse, error) {
	seasons, err := s.repo.Season.List(ctx)
	if err != nil {
		s.logger.Error("查询赛季列表失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.SeasonResponse, 0, len(seasons))
	for i := range seasons {
		out = append(out, toSeasonResponse(&seasons[i]))
	}
	return out, nil
}

func (s *rosterService) getSeason(ctx context.Context, seasonID string) (*model.Season, error) {
	season, err := s.repo.Season.GetByID(ctx, seasonID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSeasonNotFound
		}
		s.logger.Error("查询赛季失败", zap.Error(err))
		return nil, err
	}
	return season, nil
}

// ── 球员 ──

func (s *rosterService) CreateParticipant(ctx context.Context, seasonID string, req *dto.CreateParticipantRequest, callerID string) (*dto.PlayerBrief, error) {
	if _, err := s.getSeason(ctx, seasonID); err != nil {
		return nil, err
	}

	pref := req.TimePreference
	if pref == "" {
		pref = model.PreferenceEither
	}
	p := &model.Participant{
		SeasonID:       seasonID,
		Name:           req.Name,
		Handedness:     req.Handedness,
		TimePreference: pref,
	}
	p.CreatedBy = &callerID
	p.UpdatedBy = &callerID
	if err := s.repo.Participant.Create(ctx, p); err != nil {
		s.logger.Error("创建球员失败", zap.Error(err))
		return nil, err
	}

	brief := toPlayerBrief(p.ParticipantID, map[string]*model.Participant{p.ParticipantID: p})
	return &brief, nil
}

func (s *rosterService) ListParticipants(ctx context.Context, seasonID string) ([]dto.PlayerBrief, error) {
	if _, err := s.getSeason(ctx, seasonID); err != nil {
		return nil, err
	}
	list, err := s.repo.Participant.ListBySeason(ctx, seasonID)
	if err != nil {
		s.logger.Error("查询名册失败", zap.Error(err))
		return nil, err
	}
	byID := make(map[string]*model.Participant, len(list))
	out := make([]dto.PlayerBrief, 0, len(list))
	for i := range list {
		byID[list[i].ParticipantID] = &list[i]
		out = append(out, toPlayerBrief(list[i].ParticipantID, byID))
	}
	return out, nil
}

// ── 赛周 ──

func (s *rosterService) CreateWeek(ctx context.Context, seasonID string, req *dto.CreateWeekRequest, callerID string) (*dto.WeekResponse, error) {
	season, err := s.getSeason(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	playDate, err := time.Parse(dateLayout, req.PlayDate)
	if err != nil {
		return nil, err
	}
	if playDate.Before(season.StartDate) || playDate.After(season.EndDate) {
		return nil, ErrPlayDateOutOfSeason
	}

	week := &model.Week{
		SeasonID:   seasonID,
		WeekNumber: req.WeekNumber,
		PlayDate:   playDate,
	}
	week.CreatedBy = &callerID
	week.UpdatedBy = &callerID
	if err := s.repo.Week.Create(ctx, week); err != nil {
		s.logger.Error("创建赛周失败", zap.Error(err))
		return nil, err
	}
	week.Season = season

	resp := toWeekResponse(week)
	return &resp, nil
}

func (s *rosterService) getWeek(ctx context.Context, weekID string) (*model.Week, error) {
	week, err := s.repo.Week.GetByID(ctx, weekID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrWeekNotFound
		}
		s.logger.Error("查询赛周失败", zap.Error(err))
		return nil, err
	}
	return week, nil
}

func (s *rosterService) GetWeek(ctx context.Context, weekID string) (*dto.WeekResponse, error) {
	week, err := s.getWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	resp := toWeekResponse(week)
	return &resp, nil
}

func (s *rosterService) ListWeeks(ctx context.Context, seasonID string) ([]dto.WeekResponse, error) {
	if _, err := s.getSeason(ctx, seasonID); err != nil {
		return nil, err
	}
	weeks, err := s.repo.Week.ListBySeason(ctx, seasonID)
	if err != nil {
		s.logger.Error("查询赛周列表失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.WeekResponse, 0, len(weeks))
	for i := range weeks {
		out = append(out, toWeekResponse(&weeks[i]))
	}
	return out, nil
}

// ── 出勤 ──

func (s *rosterService) SetAvailability(ctx context.Context, weekID string, req *dto.SetAvailabilityRequest, callerID string) ([]dto.AvailabilityResponse, error) {
	week, err := s.getWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	participants, err := s.repo.Participant.ListBySeason(ctx, week.SeasonID)
	if err != nil {
		s.logger.Error("查询名册失败", zap.Error(err))
		return nil, err
	}
	inSeason := make(map[string]bool, len(participants))
	for _, p := range participants {
		inSeason[p.ParticipantID] = true
	}

	rows := make([]model.WeekAvailability, 0, len(req.Items))
	for _, item := range req.Items {
		if !inSeason[item.ParticipantID] {
			return nil, ErrParticipantNotInSeason
		}
		row := model.WeekAvailability{
			WeekID:        weekID,
			ParticipantID: item.ParticipantID,
			Status:        item.Status,
		}
		row.CreatedBy = &callerID
		row.UpdatedBy = &callerID
		rows = append(rows, row)
	}

	if err := s.repo.Week.UpsertAvailability(ctx, rows); err != nil {
		s.logger.Error("写入出勤失败", zap.String("week_id", weekID), zap.Error(err))
		return nil, err
	}
	s.logger.Info("出勤已更新", zap.String("week_id", weekID), zap.Int("items", len(rows)))

	return s.GetAvailability(ctx, weekID)
}

func (s *rosterService) GetAvailability(ctx context.Context, weekID string) ([]dto.AvailabilityResponse, error) {
	week, err := s.getWeek(ctx, weekID)
	if err != nil {
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
	availability := model.ToAvailabilityMap(rows)

	byID := make(map[string]*model.Participant, len(participants))
	out := make([]dto.AvailabilityResponse, 0, len(participants))
	for i := range participants {
		p := &participants[i]
		byID[p.ParticipantID] = p
		out = append(out, dto.AvailabilityResponse{
			Participant: toPlayerBrief(p.ParticipantID, byID),
			Status:      availability.StatusOf(p.ParticipantID),
		})
	}
	return out, nil
}

// ── 响应构建 ──

func toSeasonResponse(s *model.Season) dto.SeasonResponse {
	return dto.SeasonResponse{
		ID:        s.SeasonID,
		Name:      s.Name,
		StartDate: s.StartDate.Format(dateLayout),
		EndDate:   s.EndDate.Format(dateLayout),
		IsActive:  s.IsActive,
	}
}

func toWeekResponse(w *model.Week) dto.WeekResponse {
	resp := dto.WeekResponse{
		ID:         w.WeekID,
		WeekNumber: w.WeekNumber,
		PlayDate:   w.PlayDate.Format(dateLayout),
	}
	if w.Season != nil {
		resp.Season = &dto.SeasonBrief{ID: w.Season.SeasonID, Name: w.Season.Name}
	}
	return resp
}
