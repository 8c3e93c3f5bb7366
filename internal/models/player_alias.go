package models

import (
	"time"

	"github.com/google/uuid"
)

type PlayerAlias struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_player_alias,priority:1;index" json:"player_id"`
	AliasText       string    `gorm:"type:varchar(200);not null" json:"alias_text"`
	NormalizedAlias string    `gorm:"type:varchar(200);not null;uniqueIndex:idx_player_alias,priority:2;index" json:"normalized_alias"`
	CreatedAt       time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (PlayerAlias) TableName() string {
	return "player_aliases"
}
