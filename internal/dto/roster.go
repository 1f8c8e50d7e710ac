package dto

// ── 名册模块 DTO ──

// CreateSeasonRequest 创建赛季请求
type CreateSeasonRequest struct {
	Name      string `json:"name"       binding:"required,min=1,max=100"`
	StartDate string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date"   binding:"required,datetime=2006-01-02"`
	IsActive  bool   `json:"is_active"`
}

// CreateParticipantRequest 创建球员请求
type CreateParticipantRequest struct {
	Name           string `json:"name"            binding:"required,min=1,max=100"`
	Handedness     string `json:"handedness"      binding:"required,oneof=left right"`
	TimePreference string `json:"time_preference" binding:"omitempty,oneof=morning_only afternoon_only either"`
}

// CreateWeekRequest 创建赛周请求
type CreateWeekRequest struct {
	WeekNumber int    `json:"week_number" binding:"required,min=1,max=99"`
	PlayDate   string `json:"play_date"   binding:"required,datetime=2006-01-02"`
}

// AvailabilityItem 单个球员出勤
type AvailabilityItem struct {
	ParticipantID string `json:"participant_id" binding:"required,uuid"`
	Status        string `json:"status"         binding:"required,oneof=available unavailable"`
}

// SetAvailabilityRequest 批量设置出勤
type SetAvailabilityRequest struct {
	Items []AvailabilityItem `json:"items" binding:"required,min=1,dive"`
}

// ── 响应 ──

// SeasonResponse 赛季响应
type SeasonResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	IsActive  bool   `json:"is_active"`
}

// WeekResponse 赛周响应
type WeekResponse struct {
	ID         string       `json:"id"`
	Season     *SeasonBrief `json:"season,omitempty"`
	WeekNumber int          `json:"week_number"`
	PlayDate   string       `json:"play_date"`
}

// AvailabilityResponse 出勤响应（含 no_data）
type AvailabilityResponse struct {
	Participant PlayerBrief `json:"participant"`
	Status      string      `json:"status"` // available | unavailable | no_data
}
