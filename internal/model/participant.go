package model

// 惯用手
const (
	HandednessLeft  = "left"
	HandednessRight = "right"
)

// 时段偏好
const (
	PreferenceMorningOnly   = "morning_only"
	PreferenceAfternoonOnly = "afternoon_only"
	PreferenceEither        = "either"
)

// Participant 赛季球员表，对应 participants
// 创建后不可变，由名册维护
type Participant struct {
	ParticipantID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"participant_id"`
	SeasonID       string `gorm:"type:uuid;not null;index"                       json:"season_id"`
	Name           string `gorm:"type:varchar(100);not null"                     json:"name"`
	Handedness     string `gorm:"type:varchar(10);not null"                      json:"handedness"`      // left | right
	TimePreference string `gorm:"type:varchar(20);not null;default:'either'"     json:"time_preference"` // morning_only | afternoon_only | either
	VersionedModel
}

func (Participant) TableName() string { return "participants" }

// AllowsSlot 判断球员偏好是否允许出现在指定时段
func (p *Participant) AllowsSlot(slot string) bool {
	switch p.TimePreference {
	case PreferenceMorningOnly:
		return slot == SlotMorning
	case PreferenceAfternoonOnly:
		return slot == SlotAfternoon
	default:
		return true
	}
}

// [自证通过] internal/model/participant.go
