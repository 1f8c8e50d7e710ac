package dto

// ── 重排模块 DTO ──

// RegenerateRequest 重排请求
type RegenerateRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// RegenerationOptions 重排选项（服务层）
type RegenerationOptions struct {
	OperatorID string
	Reason     string
}

// ChangeSummary 重排前后差异
type ChangeSummary struct {
	PlayersAdded   []string `json:"players_added"`
	PlayersRemoved []string `json:"players_removed"`
	PairingDelta   int      `json:"pairing_delta"`   // 新排组历史同组次数总和 - 旧排组
	MorningDelta   int      `json:"morning_delta"`   // 上午人数变化
	AfternoonDelta int      `json:"afternoon_delta"` // 下午人数变化
}

// RegenerationResult 重排结果
type RegenerationResult struct {
	Success         bool           `json:"success"`
	WeekID          string         `json:"week_id"`
	ScheduleID      string         `json:"schedule_id,omitempty"`
	BackupID        string         `json:"backup_id,omitempty"`
	Attempts        int            `json:"attempts"`
	Summary         *ChangeSummary `json:"summary,omitempty"`
	ErrorCategory   string         `json:"error_category,omitempty"`
	Retryable       bool           `json:"retryable"`
	Message         string         `json:"message,omitempty"`
	RecoveryActions []string       `json:"recovery_actions,omitempty"`
	Restored        bool           `json:"restored"`
	DurationMs      int64          `json:"duration_ms"`
}

// RegenerationStatusResponse 重排进度
type RegenerationStatusResponse struct {
	WeekID          string  `json:"week_id"`
	State           string  `json:"state"`
	Progress        int     `json:"progress"`
	CurrentStep     string  `json:"current_step"`
	Attempt         int     `json:"attempt"`
	BackupID        string  `json:"backup_id,omitempty"`
	StartedAt       string  `json:"started_at"`
	CompletedAt     *string `json:"completed_at,omitempty"`
	Error           string  `json:"error,omitempty"`
	Allowed         bool    `json:"allowed"`
	LockedElsewhere bool    `json:"locked_elsewhere"` // 其他实例正在重排该周
}

// BackupResponse 备份元数据
type BackupResponse struct {
	ID         string `json:"id"`
	WeekID     string `json:"week_id"`
	ScheduleID string `json:"schedule_id"`
	Checksum   string `json:"checksum"`
	Size       int64  `json:"size"`
	CreatedAt  string `json:"created_at"`
}

// RegenerationLogListRequest 重排日志查询参数
type RegenerationLogListRequest struct {
	PaginationRequest
}
