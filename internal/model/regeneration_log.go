package model

import "time"

// 重排结果
const (
	RegenOutcomeSuccess  = "success"
	RegenOutcomeFailed   = "failed"
	RegenOutcomeRestored = "restored"
	RegenOutcomeTimedOut = "timed_out"
)

// RegenerationLog 重排审计记录，对应 regeneration_logs
type RegenerationLog struct {
	LogID          string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"log_id"`
	WeekID         string    `gorm:"type:uuid;not null"                             json:"week_id"`
	ScheduleID     *string   `gorm:"type:uuid"                                      json:"schedule_id,omitempty"`
	Outcome        string    `gorm:"type:varchar(20);not null"                      json:"outcome"` // success | failed | restored | timed_out
	Attempts       int       `gorm:"type:smallint;not null"                         json:"attempts"`
	ErrorCategory  string    `gorm:"type:varchar(20)"                               json:"error_category,omitempty"`
	Message        string    `gorm:"type:varchar(500)"                              json:"message,omitempty"`
	PlayersAdded   int       `gorm:"not null;default:0"                             json:"players_added"`
	PlayersRemoved int       `gorm:"not null;default:0"                             json:"players_removed"`
	PairingDelta   int       `gorm:"not null;default:0"                             json:"pairing_delta"`
	MorningDelta   int       `gorm:"not null;default:0"                             json:"morning_delta"`
	AfternoonDelta int       `gorm:"not null;default:0"                             json:"afternoon_delta"`
	OperatorID     string    `gorm:"type:varchar(64);not null"                      json:"operator_id"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (RegenerationLog) TableName() string { return "regeneration_logs" }
