package models

import (
	"time"

	"github.com/google/uuid"
)

// SentimentScore is keyed by (comment, player, model) so scores from
// different model versions can live side by side.
type SentimentScore struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CommentID uint64    `gorm:"not null;uniqueIndex:idx_sentiment_comment_player_model,priority:1" json:"comment_id"`
	PlayerID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_sentiment_comment_player_model,priority:2;index" json:"player_id"`
	ModelName string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_sentiment_comment_player_model,priority:3" json:"model_name"`
	Compound  float64   `gorm:"not null" json:"compound"`
	Pos       float64   `gorm:"not null" json:"pos"`
	Neu       float64   `gorm:"not null" json:"neu"`
	Neg       float64   `gorm:"not null" json:"neg"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`

	Comment *Comment `gorm:"foreignKey:CommentID;constraint:OnDelete:CASCADE" json:"-"`
}

func (SentimentScore) TableName() string {
	return "sentiment_scores"
}
