package service

import (
	"context"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"gorm.io/datatypes"

	"fansapprove/internal/models"
	"fansapprove/internal/repository"
)

const (
	FeatureIngestReddit = "feature.ingest.reddit"
	FeatureIngestForum  = "feature.ingest.forum"
	FeatureAggregate    = "feature.aggregate"
	FeatureRosterSync   = "feature.roster_sync"
)

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeatureIngestReddit: true,
		FeatureIngestForum:  true,
		FeatureAggregate:    true,
		FeatureRosterSync:   false, // hits the public SPARQL endpoint; opt in
	}
}

// IngestFeatureKey is the switch consulted before a scheduled crawl of a
// source type.
func IngestFeatureKey(sourceType string) string {
	return "feature.ingest." + strings.ToLower(strings.TrimSpace(sourceType))
}

type SystemSettingsService struct {
	Repo repository.SettingsRepository
}

func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			// Upgrade OFF to ON when the default is on. Never turn an ON switch OFF.
			if enabled {
				var current bool
				if err := json.Unmarshal(existing.Value, &current); err == nil && !current {
					raw, _ := json.Marshal(true)
					existing.Value = datatypes.JSON(raw)
					existing.UpdatedAt = now
					if err := s.Repo.UpsertSystemSetting(ctx, existing); err != nil {
						return err
					}
				}
			}
			continue
		}
		raw, _ := json.Marshal(enabled)
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: "feature switch",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	raw, _ := json.Marshal(enabled)
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: "feature switch",
		UpdatedAt:   time.Now().UTC(),
	}
	return s.Repo.UpsertSystemSetting(ctx, item)
}
