package model

// PairingHistory 同组次数，对应 pairing_histories
// PlayerA < PlayerB（字典序），仅定稿时累加
type PairingHistory struct {
	SeasonID string `gorm:"type:uuid;primaryKey" json:"season_id"`
	PlayerA  string `gorm:"type:uuid;primaryKey" json:"player_a"`
	PlayerB  string `gorm:"type:uuid;primaryKey" json:"player_b"`
	Count    int    `gorm:"not null;default:0"   json:"count"`
	BaseModel
}

func (PairingHistory) TableName() string { return "pairing_histories" }
