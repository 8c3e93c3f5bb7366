package handler

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"fansapprove/internal/connector"
	"fansapprove/internal/models"
	"fansapprove/internal/repository"
)

// stubRepo is a test-only repository. Methods the handlers never call are
// left to the embedded nil interface.
type stubRepo struct {
	repository.Repository

	players    []models.Player
	metrics    []models.PlayerDailyMetric
	sources    []models.Source
	states     []models.SyncState
	settings   map[string]models.SystemSetting
	lastParams repository.ListPlayersParams
}

func (s *stubRepo) ListPlayers(ctx context.Context, params repository.ListPlayersParams) ([]models.Player, error) {
	s.lastParams = params
	var out []models.Player
	for _, p := range s.players {
		if params.Name != nil && !strings.Contains(p.NormalizedName, *params.Name) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *stubRepo) CountPlayers(ctx context.Context, params repository.ListPlayersParams) (int64, error) {
	items, _ := s.ListPlayers(ctx, params)
	return int64(len(items)), nil
}

func (s *stubRepo) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	for i := range s.players {
		if s.players[i].ID == id {
			return &s.players[i], nil
		}
	}
	return nil, nil
}

func (s *stubRepo) ListPlayerDailyMetrics(ctx context.Context, params repository.ListDailyMetricsParams) ([]models.PlayerDailyMetric, error) {
	var out []models.PlayerDailyMetric
	for _, m := range s.metrics {
		if m.PlayerID != params.PlayerID {
			continue
		}
		if params.From != nil && m.Date.Before(*params.From) {
			continue
		}
		if params.To != nil && m.Date.After(*params.To) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *stubRepo) GetPlayerDailyMetric(ctx context.Context, playerID uuid.UUID, date time.Time) (*models.PlayerDailyMetric, error) {
	for i := range s.metrics {
		if s.metrics[i].PlayerID == playerID && s.metrics[i].Date.Equal(date) {
			return &s.metrics[i], nil
		}
	}
	return nil, nil
}

func (s *stubRepo) ListSources(ctx context.Context) ([]models.Source, error) {
	return s.sources, nil
}

func (s *stubRepo) ListSyncStates(ctx context.Context) ([]models.SyncState, error) {
	return s.states, nil
}

func (s *stubRepo) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s.settings == nil {
		s.settings = map[string]models.SystemSetting{}
	}
	s.settings[item.Key] = *item
	return nil
}

func (s *stubRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	item, ok := s.settings[key]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *stubRepo) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	var out []models.SystemSetting
	for _, item := range s.settings {
		if params.Prefix != nil && !strings.HasPrefix(item.Key, *params.Prefix) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *stubRepo) CountSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	items, _ := s.ListSystemSettings(ctx, params)
	return int64(len(items)), nil
}

type connectorStub struct {
	sourceType string
	name       string
}

func (c connectorStub) SourceType() string { return c.sourceType }
func (c connectorStub) SourceName() string { return c.name }

func (c connectorStub) ListRecentThreads(ctx context.Context, since time.Time) ([]connector.ThreadItem, error) {
	return nil, nil
}

func (c connectorStub) ListPosts(ctx context.Context, thread connector.ThreadItem, cutoff time.Time) ([]connector.PostItem, error) {
	return nil, nil
}

type connectorStubs []connectorStub

func (s connectorStubs) asConnectors() []connector.Connector {
	out := make([]connector.Connector, len(s))
	for i, c := range s {
		out[i] = c
	}
	return out
}
