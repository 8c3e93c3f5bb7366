package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PlayerDailyMetric is fully rewritten on every aggregation run.
// TopTerms is stored as json (not jsonb) so the rank order of keys survives.
type PlayerDailyMetric struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_player_daily,priority:1;index" json:"player_id"`
	Date         time.Time       `gorm:"type:date;not null;uniqueIndex:idx_player_daily,priority:2;index" json:"date"`
	CommentCount int             `gorm:"not null;default:0" json:"comment_count"`
	AvgCompound  decimal.Decimal `gorm:"type:numeric(10,6);not null;default:0" json:"avg_compound"`
	PosShare     decimal.Decimal `gorm:"type:numeric(10,6);not null;default:0" json:"pos_share"`
	NegShare     decimal.Decimal `gorm:"type:numeric(10,6);not null;default:0" json:"neg_share"`
	TopTerms     datatypes.JSON  `gorm:"type:json" json:"top_terms"`
	UpdatedAt    time.Time       `gorm:"type:timestamptz" json:"updated_at"`
}

func (PlayerDailyMetric) TableName() string {
	return "player_daily_metrics"
}
