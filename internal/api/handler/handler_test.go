package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/dto"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/service"
	pkgerrors "github.com/rservant/indoor-golf-scheduler-sub005/pkg/errors"
	"github.com/rservant/indoor-golf-scheduler-sub005/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testWeekID = "11111111-1111-1111-1111-111111111111"

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock ScheduleService ──

type mockScheduleService struct {
	generateResult *dto.ScheduleResponse
	generateErr    error
	getResult      *dto.ScheduleResponse
	getErr         error
	validateResult *dto.ValidationResult
	validateErr    error
	validateReq    *dto.ValidateScheduleRequest
	updateResult   *dto.ScheduleResponse
	updateErr      error
	finalizeResult *dto.ScheduleResponse
	finalizeErr    error
	scopeResult    *dto.ScopeCheckResponse
	scopeErr       error
	callerID       string
}

func (m *mockScheduleService) GenerateSchedule(_ context.Context, _ *dto.GenerateScheduleRequest, callerID string) (*dto.ScheduleResponse, error) {
	m.callerID = callerID
	return m.generateResult, m.generateErr
}
func (m *mockScheduleService) GetSchedule(_ context.Context, _ string) (*dto.ScheduleResponse, error) {
	return m.getResult, m.getErr
}
func (m *mockScheduleService) ValidateSchedule(_ context.Context, _ string, req *dto.ValidateScheduleRequest) (*dto.ValidationResult, error) {
	m.validateReq = req
	return m.validateResult, m.validateErr
}
func (m *mockScheduleService) UpdateFoursome(_ context.Context, _, _ string, _ *dto.UpdateFoursomeRequest, callerID string) (*dto.ScheduleResponse, error) {
	m.callerID = callerID
	return m.updateResult, m.updateErr
}
func (m *mockScheduleService) Finalize(_ context.Context, _, callerID string) (*dto.ScheduleResponse, error) {
	m.callerID = callerID
	return m.finalizeResult, m.finalizeErr
}
func (m *mockScheduleService) CheckScope(_ context.Context, _ string) (*dto.ScopeCheckResponse, error) {
	return m.scopeResult, m.scopeErr
}

// ── Mock RegenerationService ──

type mockRegenerationService struct {
	allowed       bool
	status        *service.RegenerationStatus
	lockErr       error
	lockCalls     []bool
	result        *dto.RegenerationResult
	regenErr      error
	opts          dto.RegenerationOptions
	logs          []model.RegenerationLog
	logsTotal     int64
	restoreResult *model.Schedule
	restoreErr    error
	swept         int
	lockedElse    bool
}

func (m *mockRegenerationService) IsRegenerationAllowed(string) bool { return m.allowed }
func (m *mockRegenerationService) SetRegenerationLock(_ context.Context, _ string, locked bool) error {
	m.lockCalls = append(m.lockCalls, locked)
	return m.lockErr
}
func (m *mockRegenerationService) Regenerate(_ context.Context, _ string, opts dto.RegenerationOptions) (*dto.RegenerationResult, error) {
	m.opts = opts
	return m.result, m.regenErr
}
func (m *mockRegenerationService) GetRegenerationStatus(string) (*service.RegenerationStatus, bool) {
	return m.status, m.status != nil
}
func (m *mockRegenerationService) ListLogs(_ context.Context, _ string, _ *dto.RegenerationLogListRequest) ([]model.RegenerationLog, int64, error) {
	return m.logs, m.logsTotal, nil
}
func (m *mockRegenerationService) RestoreBackup(_ context.Context, _, _, _ string) (*model.Schedule, error) {
	return m.restoreResult, m.restoreErr
}
func (m *mockRegenerationService) IsLockedElsewhere(context.Context, string) (bool, error) {
	return m.lockedElse, nil
}
func (m *mockRegenerationService) SweepStale(context.Context) int { return m.swept }
func (m *mockRegenerationService) Close() error { return nil }

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportWeek(_ context.Context, _ string) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ── Mock NotificationService ──

type mockNotificationService struct {
	list    []dto.NotificationResponse
	total   int64
	req     *dto.NotificationListRequest
	markErr error
}

func (m *mockNotificationService) Notify(context.Context, service.NotificationMessage) {}
func (m *mockNotificationService) Subscribe(func(service.NotificationMessage)) func() {
	return func() {}
}
func (m *mockNotificationService) List(_ context.Context, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	m.req = req
	return m.list, m.total, nil
}
func (m *mockNotificationService) MarkRead(context.Context, string) error { return m.markErr }

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setAuth(c *gin.Context) {
	c.Set("operator_id", "admin-1")
	c.Set("role", "admin")
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

// serve 注册单个路由并发起请求；auth 为 true 时注入认证信息
func serve(method, route, target string, body io.Reader, auth bool, h gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	r := gin.New()
	r.Handle(method, route, func(c *gin.Context) {
		if auth {
			setAuth(c)
		}
		h(c)
	})
	r.ServeHTTP(w, req)
	return w
}

// ═══════════════════════════════════════════════════════════
// ScheduleHandler Tests
// ═══════════════════════════════════════════════════════════

func TestScheduleHandler_Generate_Success(t *testing.T) {
	mock := &mockScheduleService{generateResult: &dto.ScheduleResponse{ID: "s1", WeekID: testWeekID}}
	h := NewScheduleHandler(mock)

	w := serve("POST", "/schedules/generate", "/schedules/generate",
		jsonBody(dto.GenerateScheduleRequest{WeekID: testWeekID}), true, h.Generate)

	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", w.Code)
	}
	if mock.callerID != "admin-1" {
		t.Errorf("expected caller admin-1, got %s", mock.callerID)
	}
}

func TestScheduleHandler_Generate_BadJSON(t *testing.T) {
	h := NewScheduleHandler(&mockScheduleService{})

	w := serve("POST", "/schedules/generate", "/schedules/generate",
		bytes.NewReader([]byte("bad")), true, h.Generate)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestScheduleHandler_Generate_InvalidWeekID(t *testing.T) {
	h := NewScheduleHandler(&mockScheduleService{})

	w := serve("POST", "/schedules/generate", "/schedules/generate",
		jsonBody(dto.GenerateScheduleRequest{WeekID: "not-a-uuid"}), true, h.Generate)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestScheduleHandler_Generate_Unauthenticated(t *testing.T) {
	h := NewScheduleHandler(&mockScheduleService{})

	w := serve("POST", "/schedules/generate", "/schedules/generate",
		jsonBody(dto.GenerateScheduleRequest{WeekID: testWeekID}), false, h.Generate)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestScheduleHandler_Generate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"already exists", service.ErrScheduleAlreadyExists, http.StatusConflict, 21006},
		{"week not found", service.ErrWeekNotFound, http.StatusNotFound, 21003},
		{"insufficient", service.ErrInsufficientParticipants, http.StatusUnprocessableEntity, 21010},
		{"regenerating", service.ErrConcurrentOperation, http.StatusConflict, 21009},
		{"validation", &service.ValidationError{Week: testWeekID, Errors: []string{"球员重复"}}, http.StatusUnprocessableEntity, 21002},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewScheduleHandler(&mockScheduleService{generateErr: tt.err})

			w := serve("POST", "/schedules/generate", "/schedules/generate",
				jsonBody(dto.GenerateScheduleRequest{WeekID: testWeekID}), true, h.Generate)

			if w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.code {
				t.Errorf("expected error code %d, got %d", tt.code, resp.Code)
			}
		})
	}
}

func TestScheduleHandler_Validate_EmptyBody(t *testing.T) {
	mock := &mockScheduleService{validateResult: &dto.ValidationResult{Valid: true}}
	h := NewScheduleHandler(mock)

	w := serve("POST", "/weeks/:id/schedule/validate", "/weeks/"+testWeekID+"/schedule/validate", nil, true, h.Validate)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if mock.validateReq == nil || len(mock.validateReq.Foursomes) != 0 {
		t.Errorf("expected empty candidate, got %+v", mock.validateReq)
	}
}

func TestScheduleHandler_UpdateFoursome_VersionConflict(t *testing.T) {
	h := NewScheduleHandler(&mockScheduleService{updateErr: pkgerrors.ErrOptimisticLock})

	w := serve("PUT", "/weeks/:id/schedule/foursomes/:foursome_id", "/weeks/"+testWeekID+"/schedule/foursomes/f1",
		jsonBody(dto.UpdateFoursomeRequest{TimeSlot: "morning", Version: 2}), true, h.UpdateFoursome)

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 21008 {
		t.Errorf("expected error code 21008, got %d", resp.Code)
	}
}

func TestScheduleHandler_Finalize_NotDraft(t *testing.T) {
	h := NewScheduleHandler(&mockScheduleService{finalizeErr: service.ErrScheduleNotDraft})

	w := serve("POST", "/weeks/:id/schedule/finalize", "/weeks/"+testWeekID+"/schedule/finalize", nil, true, h.Finalize)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestScheduleHandler_GetSchedule_NotFound(t *testing.T) {
	h := NewScheduleHandler(&mockScheduleService{getErr: service.ErrScheduleNotFound})

	w := serve("GET", "/weeks/:id/schedule", "/weeks/"+testWeekID+"/schedule", nil, true, h.GetSchedule)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// RegenerationHandler Tests
// ═══════════════════════════════════════════════════════════

func TestRegenerationHandler_GetStatus_Idle(t *testing.T) {
	h := NewRegenerationHandler(&mockRegenerationService{allowed: true})

	w := serve("GET", "/weeks/:id/regeneration", "/weeks/"+testWeekID+"/regeneration", nil, true, h.GetStatus)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Data dto.RegenerationStatusResponse `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.State != "idle" || !body.Data.Allowed || body.Data.WeekID != testWeekID {
		t.Errorf("unexpected status: %+v", body.Data)
	}
}

func TestRegenerationHandler_GetStatus_LockedByOtherInstance(t *testing.T) {
	h := NewRegenerationHandler(&mockRegenerationService{allowed: true, lockedElse: true})

	w := serve("GET", "/weeks/:id/regeneration", "/weeks/"+testWeekID+"/regeneration", nil, true, h.GetStatus)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Data dto.RegenerationStatusResponse `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.State != "idle" || body.Data.Allowed || !body.Data.LockedElsewhere {
		t.Errorf("expected idle but not allowed, got %+v", body.Data)
	}
}

func TestRegenerationHandler_GetStatus_InProgress(t *testing.T) {
	mock := &mockRegenerationService{status: &service.RegenerationStatus{
		WeekID:      testWeekID,
		State:       service.StateGenerating,
		Progress:    50,
		CurrentStep: "生成排组",
		StartedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Attempt:     2,
	}}
	h := NewRegenerationHandler(mock)

	w := serve("GET", "/weeks/:id/regeneration", "/weeks/"+testWeekID+"/regeneration", nil, true, h.GetStatus)

	var body struct {
		Data dto.RegenerationStatusResponse `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.State != "generating" || body.Data.Allowed || body.Data.Attempt != 2 || body.Data.Progress != 50 {
		t.Errorf("unexpected status: %+v", body.Data)
	}
}

func TestRegenerationHandler_Regenerate_Success(t *testing.T) {
	mock := &mockRegenerationService{result: &dto.RegenerationResult{Success: true, WeekID: testWeekID, Attempts: 1}}
	h := NewRegenerationHandler(mock)

	w := serve("POST", "/weeks/:id/regeneration", "/weeks/"+testWeekID+"/regeneration",
		jsonBody(dto.RegenerateRequest{Reason: "王五请假"}), true, h.Regenerate)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if mock.opts.OperatorID != "admin-1" || mock.opts.Reason != "王五请假" {
		t.Errorf("unexpected options: %+v", mock.opts)
	}
}

func TestRegenerationHandler_Regenerate_Concurrent(t *testing.T) {
	mock := &mockRegenerationService{regenErr: &service.SystemError{Week: testWeekID, Kind: service.SystemConcurrent}}
	h := NewRegenerationHandler(mock)

	w := serve("POST", "/weeks/:id/regeneration", "/weeks/"+testWeekID+"/regeneration", nil, true, h.Regenerate)

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 22002 {
		t.Errorf("expected error code 22002, got %d", resp.Code)
	}
}

func TestRegenerationHandler_Regenerate_FailureCarriesResult(t *testing.T) {
	tests := []struct {
		name   string
		result *dto.RegenerationResult
		status int
	}{
		{"insufficient", &dto.RegenerationResult{ErrorCategory: "generation", Message: "可排球员不足", RecoveryActions: []string{"manage_availability"}}, http.StatusUnprocessableEntity},
		{"replacement", &dto.RegenerationResult{ErrorCategory: "replacement", Retryable: true, Message: "排组替换失败", Restored: true}, http.StatusInternalServerError},
		{"rollback", &dto.RegenerationResult{ErrorCategory: "replacement", Message: "回滚失败", RecoveryActions: []string{"manual_restore"}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockRegenerationService{result: tt.result, regenErr: service.ErrGenerationFailed}
			h := NewRegenerationHandler(mock)

			w := serve("POST", "/weeks/:id/regeneration", "/weeks/"+testWeekID+"/regeneration", nil, true, h.Regenerate)

			if w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
			var body struct {
				Code    int                    `json:"code"`
				Message string                 `json:"message"`
				Data    dto.RegenerationResult `json:"data"`
			}
			json.Unmarshal(w.Body.Bytes(), &body)
			if body.Code != 22004 || body.Message != tt.result.Message {
				t.Errorf("unexpected body: %+v", body)
			}
			if len(body.Data.RecoveryActions) != len(tt.result.RecoveryActions) || body.Data.Restored != tt.result.Restored {
				t.Errorf("result not carried: %+v", body.Data)
			}
		})
	}
}

func TestRegenerationHandler_LockAndUnlock(t *testing.T) {
	mock := &mockRegenerationService{}
	h := NewRegenerationHandler(mock)

	w := serve("POST", "/weeks/:id/regeneration/lock", "/weeks/"+testWeekID+"/regeneration/lock", nil, true, h.Lock)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	w = serve("DELETE", "/weeks/:id/regeneration/lock", "/weeks/"+testWeekID+"/regeneration/lock", nil, true, h.Unlock)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if len(mock.lockCalls) != 2 || !mock.lockCalls[0] || mock.lockCalls[1] {
		t.Errorf("unexpected lock calls: %v", mock.lockCalls)
	}

	mock.lockErr = &service.SystemError{Week: testWeekID, Kind: service.SystemConcurrent}
	w = serve("POST", "/weeks/:id/regeneration/lock", "/weeks/"+testWeekID+"/regeneration/lock", nil, true, h.Lock)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestRegenerationHandler_ListLogs_Paged(t *testing.T) {
	mock := &mockRegenerationService{
		logs:      []model.RegenerationLog{{LogID: "l1", WeekID: testWeekID, Outcome: model.RegenOutcomeSuccess}},
		logsTotal: 21,
	}
	h := NewRegenerationHandler(mock)

	w := serve("GET", "/weeks/:id/regeneration/logs", "/weeks/"+testWeekID+"/regeneration/logs?page=2&page_size=10", nil, true, h.ListLogs)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Data response.PageData `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.Pagination.Page != 2 || body.Data.Pagination.TotalPages != 3 {
		t.Errorf("unexpected pagination: %+v", body.Data.Pagination)
	}
}

func TestRegenerationHandler_ListLogs_BadPageSize(t *testing.T) {
	h := NewRegenerationHandler(&mockRegenerationService{})

	w := serve("GET", "/weeks/:id/regeneration/logs", "/weeks/"+testWeekID+"/regeneration/logs?page_size=1000", nil, true, h.ListLogs)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// BackupHandler Tests
// ═══════════════════════════════════════════════════════════

func TestBackupHandler_Restore(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"success", nil, http.StatusOK},
		{"not found", service.ErrBackupNotFound, http.StatusNotFound},
		{"other week", service.ErrBackupWeekMismatch, http.StatusBadRequest},
		{"corrupted", &service.BackupError{Week: testWeekID, Kind: service.BackupRestoration, Err: service.ErrBackupIntegrity}, http.StatusUnprocessableEntity},
		{"regenerating", &service.SystemError{Week: testWeekID, Kind: service.SystemConcurrent}, http.StatusConflict},
		{"finalized", service.ErrScheduleFinalized, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regen := &mockRegenerationService{restoreErr: tt.err}
			if tt.err == nil {
				regen.restoreResult = &model.Schedule{ScheduleID: "s1"}
			}
			h := NewBackupHandler(nil, regen)

			w := serve("POST", "/weeks/:id/backups/:backup_id/restore", "/weeks/"+testWeekID+"/backups/b1/restore", nil, true, h.Restore)

			if w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_Success(t *testing.T) {
	mock := &mockExportService{buf: bytes.NewBufferString("xlsx"), filename: "冬季联赛_第1周_排组.xlsx"}
	h := NewExportHandler(mock)

	w := serve("GET", "/weeks/:id/export", "/weeks/"+testWeekID+"/export", nil, true, h.ExportWeek)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("unexpected content type: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment; filename*=UTF-8''") {
		t.Errorf("unexpected Content-Disposition: %s", cd)
	}
}

func TestExportHandler_Errors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{service.ErrWeekNotFound, http.StatusNotFound},
		{service.ErrScheduleNotFound, http.StatusNotFound},
		{service.ErrExportNoFoursomes, http.StatusBadRequest},
		{service.ErrExportGenerateFail, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := NewExportHandler(&mockExportService{err: tt.err})

		w := serve("GET", "/weeks/:id/export", "/weeks/"+testWeekID+"/export", nil, true, h.ExportWeek)

		if w.Code != tt.status {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.status, w.Code)
		}
	}
}

// ═══════════════════════════════════════════════════════════
// NotificationHandler Tests
// ═══════════════════════════════════════════════════════════

func TestNotificationHandler_List(t *testing.T) {
	mock := &mockNotificationService{list: []dto.NotificationResponse{{ID: "n1", Title: "重排完成"}}, total: 1}
	h := NewNotificationHandler(mock)

	w := serve("GET", "/notifications", "/notifications?week_id="+testWeekID+"&unread_only=true", nil, true, h.List)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if mock.req == nil || mock.req.WeekID != testWeekID || !mock.req.UnreadOnly {
		t.Errorf("query not bound: %+v", mock.req)
	}
}

func TestNotificationHandler_MarkRead_NotFound(t *testing.T) {
	h := NewNotificationHandler(&mockNotificationService{markErr: service.ErrNotificationNotFound})

	w := serve("PUT", "/notifications/:id/read", "/notifications/n9/read", nil, true, h.MarkRead)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
