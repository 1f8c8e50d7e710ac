package dto

// NotificationListRequest 通知列表查询参数
type NotificationListRequest struct {
	WeekID     string `form:"week_id"     binding:"omitempty,uuid"`
	UnreadOnly bool   `form:"unread_only"`
	PaginationRequest
}

// NotificationResponse 通知响应
type NotificationResponse struct {
	ID              string   `json:"id"`
	WeekID          string   `json:"week_id,omitempty"`
	Level           string   `json:"level"`
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	RecoveryActions []string `json:"recovery_actions"`
	AutoHide        bool     `json:"auto_hide"`
	IsRead          bool     `json:"is_read"`
	CreatedAt       string   `json:"created_at"`
}
