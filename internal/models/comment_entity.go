package models

import (
	"time"

	"github.com/google/uuid"
)

type CommentEntity struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CommentID   uint64    `gorm:"not null;uniqueIndex:idx_comment_entity,priority:1" json:"comment_id"`
	PlayerID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_comment_entity,priority:2;index" json:"player_id"`
	MentionText string    `gorm:"type:varchar(200);not null;uniqueIndex:idx_comment_entity,priority:3" json:"mention_text"`
	CreatedAt   time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`

	Comment *Comment `gorm:"foreignKey:CommentID;constraint:OnDelete:CASCADE" json:"-"`
}

func (CommentEntity) TableName() string {
	return "comment_entities"
}
