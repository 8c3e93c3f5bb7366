package models

import "time"

// Comment is immutable once inserted; dedup is by (source_id, external_id).
type Comment struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SourceID         uint64    `gorm:"not null;uniqueIndex:idx_comment_source_ext,priority:1" json:"source_id"`
	ThreadID         uint64    `gorm:"not null;index" json:"thread_id"`
	ExternalID       string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_comment_source_ext,priority:2" json:"external_id"`
	ParentExternalID *string   `gorm:"type:varchar(128)" json:"parent_external_id,omitempty"`
	AuthorHash       *string   `gorm:"type:char(64)" json:"author_hash,omitempty"`
	Body             string    `gorm:"type:text;not null" json:"body"`
	CreatedUTC       time.Time `gorm:"column:created_utc;type:timestamptz;not null;index" json:"created_utc"`
	Score            int       `gorm:"not null;default:0" json:"score"`
	URL              *string   `gorm:"type:text" json:"url,omitempty"`
	InsertedAt       time.Time `gorm:"type:timestamptz;autoCreateTime" json:"inserted_at"`

	Source *Source `gorm:"foreignKey:SourceID;constraint:OnDelete:CASCADE" json:"-"`
	Thread *Thread `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Comment) TableName() string {
	return "comments"
}
