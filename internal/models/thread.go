package models

import "time"

type Thread struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SourceID   uint64     `gorm:"not null;uniqueIndex:idx_thread_source_ext,priority:1" json:"source_id"`
	ExternalID string     `gorm:"type:varchar(128);not null;uniqueIndex:idx_thread_source_ext,priority:2" json:"external_id"`
	Title      string     `gorm:"type:text" json:"title"`
	URL        *string    `gorm:"type:text" json:"url,omitempty"`
	// CreatedAt is the origin-reported time; nil when the source has none.
	CreatedAt  *time.Time `gorm:"type:timestamptz;autoCreateTime:false" json:"created_at,omitempty"`
	FetchedAt  time.Time  `gorm:"type:timestamptz;not null;index" json:"fetched_at"`

	Source *Source `gorm:"foreignKey:SourceID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Thread) TableName() string {
	return "threads"
}
