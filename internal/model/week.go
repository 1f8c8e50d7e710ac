package model

import "time"

// 出勤状态；无记录即 no_data
const (
	AvailabilityAvailable   = "available"
	AvailabilityUnavailable = "unavailable"
	AvailabilityNoData      = "no_data"
)

// Week 赛周表，对应 weeks
type Week struct {
	WeekID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"week_id"`
	SeasonID   string    `gorm:"type:uuid;not null"                             json:"season_id"`
	WeekNumber int       `gorm:"type:smallint;not null"                         json:"week_number"`
	PlayDate   time.Time `gorm:"type:date;not null"                             json:"play_date"`
	VersionedModel

	// 关联
	Season *Season `gorm:"foreignKey:SeasonID;references:SeasonID" json:"season,omitempty"`
}

func (Week) TableName() string { return "weeks" }

// WeekAvailability 周出勤表，对应 week_availabilities
type WeekAvailability struct {
	WeekID        string `gorm:"type:uuid;primaryKey"       json:"week_id"`
	ParticipantID string `gorm:"type:uuid;primaryKey"       json:"participant_id"`
	Status        string `gorm:"type:varchar(20);not null"  json:"status"` // available | unavailable
	BaseModel
}

func (WeekAvailability) TableName() string { return "week_availabilities" }

// AvailabilityMap 球员 → 出勤状态
type AvailabilityMap map[string]string

// StatusOf 返回球员出勤状态，无记录时为 no_data
func (m AvailabilityMap) StatusOf(participantID string) string {
	if s, ok := m[participantID]; ok {
		return s
	}
	return AvailabilityNoData
}

// IsAvailable 仅显式 available 视为可排
func (m AvailabilityMap) IsAvailable(participantID string) bool {
	return m[participantID] == AvailabilityAvailable
}

// ToAvailabilityMap 将出勤记录转为映射
func ToAvailabilityMap(rows []WeekAvailability) AvailabilityMap {
	m := make(AvailabilityMap, len(rows))
	for _, r := range rows {
		m[r.ParticipantID] = r.Status
	}
	return m
}
