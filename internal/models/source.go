package models

import "time"

const (
	SourceTypeReddit = "reddit"
	SourceTypeForum  = "forum"
)

// Source is one external origin, created lazily on the first crawl.
type Source struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SourceType string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_source_type_name,priority:1" json:"source_type"`
	Name       string    `gorm:"type:varchar(200);not null;uniqueIndex:idx_source_type_name,priority:2" json:"name"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
}

func (Source) TableName() string {
	return "sources"
}
