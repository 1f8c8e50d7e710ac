package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/repository"
	pkgerrors "github.com/rservant/indoor-golf-scheduler-sub005/pkg/errors"
)

// ── Mock SeasonRepository ──

type mockSeasonRepo struct {
	seasons map[string]*model.Season
}

func newMockSeasonRepo() *mockSeasonRepo {
	return &mockSeasonRepo{seasons: make(map[string]*model.Season)}
}

func (m *mockSeasonRepo) Create(_ context.Context, season *model.Season) error {
	if season.SeasonID == "" {
		season.SeasonID = "season-" + season.Name
	}
	m.seasons[season.SeasonID] = season
	return nil
}

func (m *mockSeasonRepo) GetByID(_ context.Context, id string) (*model.Season, error) {
	if s, ok := m.seasons[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSeasonRepo) List(_ context.Context) ([]model.Season, error) {
	var result []model.Season
	for _, s := range m.seasons {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SeasonID < result[j].SeasonID })
	return result, nil
}

// ── Mock ParticipantRepository ──

type mockParticipantRepo struct {
	participants map[string]*model.Participant
	listErr      error
	// extra 原样追加到 ListBySeason 结果（模拟脏数据）
	extra []model.Participant
}

func newMockParticipantRepo() *mockParticipantRepo {
	return &mockParticipantRepo{participants: make(map[string]*model.Participant)}
}

func (m *mockParticipantRepo) Create(_ context.Context, p *model.Participant) error {
	if p.ParticipantID == "" {
		p.ParticipantID = fmt.Sprintf("p-%03d", len(m.participants)+1)
	}
	m.participants[p.ParticipantID] = p
	return nil
}

func (m *mockParticipantRepo) GetByID(_ context.Context, id string) (*model.Participant, error) {
	if p, ok := m.participants[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockParticipantRepo) ListBySeason(_ context.Context, seasonID string) ([]model.Participant, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []model.Participant
	for _, p := range m.participants {
		if p.SeasonID == seasonID {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ParticipantID < result[j].ParticipantID })
	return append(result, m.extra...), nil
}

// ── Mock WeekRepository ──

type mockWeekRepo struct {
	seasons      *mockSeasonRepo
	weeks        map[string]*model.Week
	availability map[string]map[string]model.WeekAvailability
}

func newMockWeekRepo(seasons *mockSeasonRepo) *mockWeekRepo {
	return &mockWeekRepo{
		seasons:      seasons,
		weeks:        make(map[string]*model.Week),
		availability: make(map[string]map[string]model.WeekAvailability),
	}
}

func (m *mockWeekRepo) Create(_ context.Context, week *model.Week) error {
	if week.WeekID == "" {
		week.WeekID = fmt.Sprintf("week-%d", week.WeekNumber)
	}
	m.weeks[week.WeekID] = week
	return nil
}

func (m *mockWeekRepo) GetByID(_ context.Context, id string) (*model.Week, error) {
	w, ok := m.weeks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *w
	if s, ok := m.seasons.seasons[w.SeasonID]; ok {
		cp.Season = s
	}
	return &cp, nil
}

func (m *mockWeekRepo) ListBySeason(_ context.Context, seasonID string) ([]model.Week, error) {
	var result []model.Week
	for _, w := range m.weeks {
		if w.SeasonID == seasonID {
			result = append(result, *w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WeekNumber < result[j].WeekNumber })
	return result, nil
}

func (m *mockWeekRepo) Update(_ context.Context, week *model.Week) error {
	cur, ok := m.weeks[week.WeekID]
	if !ok || cur.Version != week.Version {
		return pkgerrors.ErrOptimisticLock
	}
	week.Version++
	m.weeks[week.WeekID] = week
	return nil
}

func (m *mockWeekRepo) ListAvailability(_ context.Context, weekID string) ([]model.WeekAvailability, error) {
	var result []model.WeekAvailability
	for _, row := range m.availability[weekID] {
		result = append(result, row)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ParticipantID < result[j].ParticipantID })
	return result, nil
}

func (m *mockWeekRepo) UpsertAvailability(_ context.Context, rows []model.WeekAvailability) error {
	for _, row := range rows {
		if m.availability[row.WeekID] == nil {
			m.availability[row.WeekID] = make(map[string]model.WeekAvailability)
		}
		m.availability[row.WeekID][row.ParticipantID] = row
	}
	return nil
}

// ── Mock ScheduleRepository ──

type mockScheduleRepo struct {
	mu        sync.Mutex
	schedules map[string]*model.Schedule
	seq       int

	// 故障注入
	replaceErr      error
	replaceFailures int // >0 时前 N 次 ReplaceFoursomes 返回 replaceErr
	replaceCalls    int
	partialFailures int  // 前 N 次失败在返回错误前已写入
	staleReadBack   bool // 回读时返回旧的 updated_at
	getErr          error
	getErrOnce      error // 下一次 GetByWeek 返回后清空
	// honorCtx 为 true 时 ctx 已取消的读写直接返回 ctx.Err()
	honorCtx bool
	// onReplace 在 ReplaceFoursomes 成功写入后回调（持锁外）
	onReplace func()
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{schedules: make(map[string]*model.Schedule)}
}

func cloneSchedule(s *model.Schedule) *model.Schedule {
	cp := *s
	cp.Foursomes = make([]model.Foursome, len(s.Foursomes))
	for i, f := range s.Foursomes {
		f.PlayerIDs = append(model.StringArray(nil), f.PlayerIDs...)
		cp.Foursomes[i] = f
	}
	return &cp
}

func (m *mockScheduleRepo) assignFoursomeIDs(s *model.Schedule) {
	for i := range s.Foursomes {
		m.seq++
		s.Foursomes[i].FoursomeID = fmt.Sprintf("f-%03d", m.seq)
		s.Foursomes[i].ScheduleID = s.ScheduleID
	}
}

func (m *mockScheduleRepo) Create(_ context.Context, schedule *model.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.schedules {
		if s.WeekID == schedule.WeekID {
			return fmt.Errorf("duplicate key value violates unique constraint \"uk_schedules_week\"")
		}
	}
	if schedule.ScheduleID == "" {
		m.seq++
		schedule.ScheduleID = fmt.Sprintf("sch-%03d", m.seq)
	}
	if schedule.Status == "" {
		schedule.Status = model.ScheduleStatusDraft
	}
	schedule.Version = 1
	schedule.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	m.assignFoursomeIDs(schedule)
	m.schedules[schedule.ScheduleID] = cloneSchedule(schedule)
	return nil
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id string) (*model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.schedules[id]; ok {
		return cloneSchedule(s), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockScheduleRepo) GetByWeek(ctx context.Context, weekID string) (*model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.honorCtx && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if m.getErr != nil {
		return nil, m.getErr
	}
	if err := m.getErrOnce; err != nil {
		m.getErrOnce = nil
		return nil, err
	}
	for _, s := range m.schedules {
		if s.WeekID == weekID {
			cp := cloneSchedule(s)
			if m.staleReadBack {
				cp.UpdatedAt = cp.UpdatedAt.Add(-time.Second)
			}
			return cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockScheduleRepo) ReplaceFoursomes(ctx context.Context, schedule *model.Schedule) error {
	m.mu.Lock()
	m.replaceCalls++
	if m.honorCtx && ctx.Err() != nil {
		m.mu.Unlock()
		return ctx.Err()
	}
	var failAfterWrite error
	if m.replaceErr != nil && m.replaceFailures > 0 {
		m.replaceFailures--
		if m.partialFailures == 0 {
			m.mu.Unlock()
			return m.replaceErr
		}
		m.partialFailures--
		failAfterWrite = m.replaceErr
	}
	cur, ok := m.schedules[schedule.ScheduleID]
	if !ok || cur.Version != schedule.Version {
		m.mu.Unlock()
		return pkgerrors.ErrOptimisticLock
	}
	schedule.Version++
	schedule.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	fs := make([]model.Foursome, len(schedule.Foursomes))
	copy(fs, schedule.Foursomes)
	schedule.Foursomes = fs
	m.assignFoursomeIDs(schedule)
	m.schedules[schedule.ScheduleID] = cloneSchedule(schedule)
	hook := m.onReplace
	m.mu.Unlock()

	if failAfterWrite != nil {
		return failAfterWrite
	}
	if hook != nil {
		hook()
	}
	return nil
}

func (m *mockScheduleRepo) UpdateFoursome(_ context.Context, schedule *model.Schedule, foursome *model.Foursome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.schedules[schedule.ScheduleID]
	if !ok || cur.Version != schedule.Version {
		return pkgerrors.ErrOptimisticLock
	}
	for i := range cur.Foursomes {
		if cur.Foursomes[i].FoursomeID == foursome.FoursomeID {
			cur.Foursomes[i].TimeSlot = foursome.TimeSlot
			cur.Foursomes[i].Position = foursome.Position
			cur.Foursomes[i].PlayerIDs = append(model.StringArray(nil), foursome.PlayerIDs...)
		}
	}
	cur.Version++
	schedule.Version = cur.Version
	return nil
}

func (m *mockScheduleRepo) UpdateStatus(_ context.Context, schedule *model.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.schedules[schedule.ScheduleID]
	if !ok || cur.Version != schedule.Version {
		return pkgerrors.ErrOptimisticLock
	}
	cur.Status = schedule.Status
	cur.FinalizedAt = schedule.FinalizedAt
	cur.Version++
	schedule.Version = cur.Version
	return nil
}

func (m *mockScheduleRepo) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return false, nil
	}
	delete(m.schedules, id)
	return true, nil
}

// stored 测试断言用：按周返回当前存储内容
func (m *mockScheduleRepo) stored(weekID string) *model.Schedule {
	s, err := m.GetByWeek(context.Background(), weekID)
	if err != nil {
		return nil
	}
	return s
}

// ── Mock RegenerationLogRepository ──

type mockRegenLogRepo struct {
	mu   sync.Mutex
	logs []model.RegenerationLog
}

func (m *mockRegenLogRepo) Create(_ context.Context, log *model.RegenerationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.LogID = fmt.Sprintf("log-%d", len(m.logs)+1)
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockRegenLogRepo) ListByWeek(_ context.Context, weekID string, offset, limit int) ([]model.RegenerationLog, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []model.RegenerationLog
	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].WeekID == weekID {
			matched = append(matched, m.logs[i])
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (m *mockRegenLogRepo) last() *model.RegenerationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.logs) == 0 {
		return nil
	}
	l := m.logs[len(m.logs)-1]
	return &l
}

// ── Mock PairingHistoryRepository ──

type mockPairingRepo struct {
	counts map[string]int // season|a|b
}

func newMockPairingRepo() *mockPairingRepo {
	return &mockPairingRepo{counts: make(map[string]int)}
}

func (m *mockPairingRepo) IncrementPairs(_ context.Context, rows []model.PairingHistory) error {
	for _, r := range rows {
		m.counts[r.SeasonID+"|"+r.PlayerA+"|"+r.PlayerB] += r.Count
	}
	return nil
}

func (m *mockPairingRepo) Get(_ context.Context, seasonID, a, b string) (int, error) {
	return m.counts[seasonID+"|"+a+"|"+b], nil
}

func (m *mockPairingRepo) ListBySeason(_ context.Context, seasonID string) ([]model.PairingHistory, error) {
	var result []model.PairingHistory
	for k, c := range m.counts {
		parts := strings.Split(k, "|")
		if len(parts) != 3 || parts[0] != seasonID {
			continue
		}
		result = append(result, model.PairingHistory{SeasonID: parts[0], PlayerA: parts[1], PlayerB: parts[2], Count: c})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PlayerA+result[i].PlayerB < result[j].PlayerA+result[j].PlayerB
	})
	return result, nil
}

func (m *mockPairingRepo) ResetSeason(_ context.Context, seasonID string) (int64, error) {
	var n int64
	for k := range m.counts {
		if strings.HasPrefix(k, seasonID+"|") {
			delete(m.counts, k)
			n++
		}
	}
	return n, nil
}

// ── Mock BackupRepository ──

type mockBackupRepo struct {
	mu      sync.Mutex
	backups map[string]*model.ScheduleBackup
	seq     int

	createErr error
	// corrupt 写入后篡改内容，用于完整性失败场景
	corrupt bool
}

func newMockBackupRepo() *mockBackupRepo {
	return &mockBackupRepo{backups: make(map[string]*model.ScheduleBackup)}
}

func (m *mockBackupRepo) Create(_ context.Context, backup *model.ScheduleBackup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	backup.BackupID = fmt.Sprintf("bak-%03d", m.seq)
	backup.CreatedAt = time.Unix(int64(m.seq), 0)
	cp := *backup
	cp.Payload = append([]byte(nil), backup.Payload...)
	if m.corrupt {
		cp.Checksum = "0000" + cp.Checksum[4:]
	}
	m.backups[backup.BackupID] = &cp
	return nil
}

func (m *mockBackupRepo) GetByID(_ context.Context, id string) (*model.ScheduleBackup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.backups[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockBackupRepo) ListByWeek(_ context.Context, weekID string) ([]model.ScheduleBackup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.ScheduleBackup
	for _, b := range m.backups {
		if b.WeekID == weekID {
			cp := *b
			cp.Payload = nil
			result = append(result, cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *mockBackupRepo) TotalSizeByWeek(_ context.Context, weekID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, b := range m.backups {
		if b.WeekID == weekID {
			total += b.Size
		}
	}
	return total, nil
}

func (m *mockBackupRepo) DeleteByIDs(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.backups, id)
	}
	return nil
}

func (m *mockBackupRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.backups)
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	mu    sync.Mutex
	items []*model.Notification
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.NotificationID = fmt.Sprintf("n-%d", len(m.items)+1)
	n.CreatedAt = time.Unix(int64(len(m.items)+1), 0)
	m.items = append(m.items, n)
	return nil
}

func (m *mockNotificationRepo) List(_ context.Context, weekID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []model.Notification
	for i := len(m.items) - 1; i >= 0; i-- {
		n := m.items[i]
		if weekID != "" && (n.WeekID == nil || *n.WeekID != weekID) {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		matched = append(matched, *n)
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.NotificationID == id {
			n.IsRead = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockNotificationRepo) all() []model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Notification, 0, len(m.items))
	for _, n := range m.items {
		out = append(out, *n)
	}
	return out
}

// ── Mock ScheduleLocker ──

type mockLocker struct {
	mu         sync.Mutex
	held       map[string]bool
	acquireErr error
	releases   int
}

func newMockLocker() *mockLocker {
	return &mockLocker{held: make(map[string]bool)}
}

func (m *mockLocker) Acquire(_ context.Context, weekID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acquireErr != nil {
		return false, m.acquireErr
	}
	if m.held[weekID] {
		return false, nil
	}
	m.held[weekID] = true
	return true, nil
}

func (m *mockLocker) ForceRelease(_ context.Context, weekID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, weekID)
	m.releases++
	return nil
}

func (m *mockLocker) IsLocked(_ context.Context, weekID string) (bool, error) {
	return m.isHeld(weekID), nil
}

func (m *mockLocker) isHeld(weekID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[weekID]
}

// ── 测试装配 ──

type mockRepos struct {
	season       *mockSeasonRepo
	participant  *mockParticipantRepo
	week         *mockWeekRepo
	schedule     *mockScheduleRepo
	regenLog     *mockRegenLogRepo
	pairing      *mockPairingRepo
	backup       *mockBackupRepo
	notification *mockNotificationRepo
}

func newMockRepos() (*repository.Repository, *mockRepos) {
	season := newMockSeasonRepo()
	m := &mockRepos{
		season:       season,
		participant:  newMockParticipantRepo(),
		week:         newMockWeekRepo(season),
		schedule:     newMockScheduleRepo(),
		regenLog:     &mockRegenLogRepo{},
		pairing:      newMockPairingRepo(),
		backup:       newMockBackupRepo(),
		notification: &mockNotificationRepo{},
	}
	return newRepoFrom(m), m
}

// newRepoFrom 用同一组 mock 再装配一个 Repository
func newRepoFrom(m *mockRepos) *repository.Repository {
	return &repository.Repository{
		Season:          m.season,
		Participant:     m.participant,
		Week:            m.week,
		Schedule:        m.schedule,
		PairingHistory:  m.pairing,
		Backup:          m.backup,
		Notification:    m.notification,
		RegenerationLog: m.regenLog,
	}
}

const (
	testSeasonID = "season-1"
	testWeekID   = "week-1"
)

// seedPlayer 描述测试球员：id、惯用手、偏好、是否出勤
type seedPlayer struct {
	id        string
	hand      string
	pref      string
	available bool
}

// seedWeek 写入赛季、一个赛周与球员出勤
func seedWeek(m *mockRepos, players []seedPlayer) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.season.seasons[testSeasonID] = &model.Season{
		SeasonID:  testSeasonID,
		Name:      "2026 冬季联赛",
		StartDate: start,
		EndDate:   start.AddDate(0, 3, 0),
		IsActive:  true,
	}
	m.week.weeks[testWeekID] = &model.Week{
		WeekID:     testWeekID,
		SeasonID:   testSeasonID,
		WeekNumber: 1,
		PlayDate:   start.AddDate(0, 0, 7),
	}
	m.week.availability[testWeekID] = make(map[string]model.WeekAvailability)
	for _, p := range players {
		hand := p.hand
		if hand == "" {
			hand = model.HandednessRight
		}
		pref := p.pref
		if pref == "" {
			pref = model.PreferenceEither
		}
		m.participant.participants[p.id] = &model.Participant{
			ParticipantID:  p.id,
			SeasonID:       testSeasonID,
			Name:           "球员" + p.id,
			Handedness:     hand,
			TimePreference: pref,
		}
		status := model.AvailabilityUnavailable
		if p.available {
			status = model.AvailabilityAvailable
		}
		m.week.availability[testWeekID][p.id] = model.WeekAvailability{
			WeekID:        testWeekID,
			ParticipantID: p.id,
			Status:        status,
		}
	}
}

// availablePlayers n 名均可出勤、无偏好的球员 p01..pNN
func availablePlayers(n int) []seedPlayer {
	out := make([]seedPlayer, n)
	for i := range out {
		out[i] = seedPlayer{id: fmt.Sprintf("p%02d", i+1), available: true}
	}
	return out
}

// [自证通过] internal/service/mock_repos_test.go
