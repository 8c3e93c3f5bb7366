package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Player struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FullName       string         `gorm:"type:varchar(200);not null" json:"full_name"`
	NormalizedName string         `gorm:"type:varchar(200);not null;uniqueIndex" json:"normalized_name"`
	WikidataQID    *string        `gorm:"column:wikidata_qid;type:varchar(32);uniqueIndex" json:"wikidata_qid,omitempty"`
	Team           *string        `gorm:"type:varchar(120)" json:"team,omitempty"`
	// Active has no column default; every insert writes it.
	Active         bool           `gorm:"not null;index" json:"active"`
	Positions      datatypes.JSON `gorm:"type:jsonb" json:"positions,omitempty"`
	BirthDate      *time.Time     `gorm:"type:date" json:"birth_date,omitempty"`
	DebutYear      *int           `json:"nba_debut_year,omitempty"`

	Aliases []PlayerAlias `gorm:"foreignKey:PlayerID;constraint:OnDelete:CASCADE" json:"aliases,omitempty"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Player) TableName() string {
	return "players"
}

func (p *Player) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
