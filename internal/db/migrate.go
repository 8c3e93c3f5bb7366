package db

import (
	"fansapprove/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Player{},
		&models.PlayerAlias{},
		&models.Source{},
		&models.Thread{},
		&models.Comment{},
		&models.CommentEntity{},
		&models.SentimentScore{},
		&models.PlayerDailyMetric{},
		&models.SyncState{},
		&models.SystemSetting{},
	)
}
