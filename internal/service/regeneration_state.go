package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/dto"
)

// RegenerationState 周重排状态
type RegenerationState int

const (
	StateIdle RegenerationState = iota
	StateConfirming
	StateBackingUp
	StateGenerating
	StateReplacing
	StateCompleted
	StateFailed
)

// String 状态名，用于日志与接口响应
func (s RegenerationState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfirming:
		return "confirming"
	case StateBackingUp:
		return "backing_up"
	case StateGenerating:
		return "generating"
	case StateReplacing:
		return "replacing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// InProgress 处于该状态时禁止发起新的重排
func (s RegenerationState) InProgress() bool {
	switch s {
	case StateConfirming, StateBackingUp, StateGenerating, StateReplacing:
		return true
	default:
		return false
	}
}

// Terminal completed / failed
func (s RegenerationState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// regenerationTransitions 合法状态迁移表
// 重试时 generating/replacing 会回到 backing_up
var regenerationTransitions = map[RegenerationState][]RegenerationState{
	StateIdle:       {StateConfirming, StateBackingUp},
	StateConfirming: {StateBackingUp, StateFailed},
	StateBackingUp:  {StateGenerating, StateBackingUp, StateFailed},
	StateGenerating: {StateReplacing, StateBackingUp, StateFailed},
	StateReplacing:  {StateCompleted, StateBackingUp, StateFailed},
	StateCompleted:  {StateConfirming, StateBackingUp},
	StateFailed:     {StateConfirming, StateBackingUp},
}

// isValidTransition 判断状态迁移是否合法
func isValidTransition(from, to RegenerationState) bool {
	for _, s := range regenerationTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// 各阶段进度
const (
	progressConfirming = 0
	progressBackingUp  = 10
	progressGenerating = 40
	progressReplacing  = 70
	progressCompleted  = 100
)

// RegenerationStatus 单周重排进度，仅存在于一次重排（含重试）期间
type RegenerationStatus struct {
	RunID          string
	WeekID         string
	State          RegenerationState
	Progress       int
	CurrentStep    string
	StartedAt      time.Time
	CompletedAt    *time.Time
	Attempt        int
	BackupID       string
	TargetChecksum string
	Err            error
}

// RegenerationStatusStore 周 → 重排进度的存储
// Update 是唯一的原子“检查并迁移”原语：fn 在持锁状态下执行，返回 nil 时表示删除
type RegenerationStatusStore interface {
	Get(weekID string) (RegenerationStatus, bool)
	Update(weekID string, fn func(cur *RegenerationStatus) (*RegenerationStatus, error)) error
	Delete(weekID string)
	Snapshot() []RegenerationStatus
}

// MemoryStatusStore 进程内状态存储
type MemoryStatusStore struct {
	mu       sync.Mutex
	statuses map[string]*RegenerationStatus
}

// NewMemoryStatusStore 创建空存储
func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{statuses: make(map[string]*RegenerationStatus)}
}

// Get 返回副本
func (m *MemoryStatusStore) Get(weekID string) (RegenerationStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.statuses[weekID]
	if !ok {
		return RegenerationStatus{}, false
	}
	return *st, true
}

// Update cur 为当前状态副本，不存在时为 nil
func (m *MemoryStatusStore) Update(weekID string, fn func(cur *RegenerationStatus) (*RegenerationStatus, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cur *RegenerationStatus
	if st, ok := m.statuses[weekID]; ok {
		cp := *st
		cur = &cp
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	if next == nil {
		delete(m.statuses, weekID)
		return nil
	}
	next.WeekID = weekID
	m.statuses[weekID] = next
	return nil
}

// Delete 删除状态（幂等）
func (m *MemoryStatusStore) Delete(weekID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, weekID)
}

// Snapshot 按周 ID 排序的全部状态副本
func (m *MemoryStatusStore) Snapshot() []RegenerationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RegenerationStatus, 0, len(m.statuses))
	for _, st := range m.statuses {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekID < out[j].WeekID })
	return out
}

// ToStatusResponse 转换为接口响应；allowed 为当前是否可发起重排
func ToStatusResponse(st RegenerationStatus, allowed bool) dto.RegenerationStatusResponse {
	resp := dto.RegenerationStatusResponse{
		WeekID:      st.WeekID,
		State:       st.State.String(),
		Progress:    st.Progress,
		CurrentStep: st.CurrentStep,
		Attempt:     st.Attempt,
		BackupID:    st.BackupID,
		StartedAt:   st.StartedAt.Format(time.RFC3339),
		Allowed:     allowed,
	}
	if st.CompletedAt != nil {
		t := st.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &t
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return resp
}
