package service

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fansapprove/internal/models"
	"fansapprove/internal/repository"
)

// memRepo is an in-memory repository.Repository. InTx runs fn with a nil tx
// and does not roll back.
type memRepo struct {
	mu       sync.Mutex
	players  map[uuid.UUID]*models.Player
	aliases  []models.PlayerAlias
	sources  []models.Source
	threads  []models.Thread
	comments []models.Comment
	entities []models.CommentEntity
	scores   []models.SentimentScore
	metrics  map[string]models.PlayerDailyMetric
	states   map[string]models.SyncState
	settings map[string]models.SystemSetting
	nextID   uint64
}

func newMemRepo() *memRepo {
	return &memRepo{
		players:  map[uuid.UUID]*models.Player{},
		metrics:  map[string]models.PlayerDailyMetric{},
		states:   map[string]models.SyncState{},
		settings: map[string]models.SystemSetting{},
	}
}

func (r *memRepo) id() uint64 {
	r.nextID++
	return r.nextID
}

func (r *memRepo) addPlayer(name string, aliases ...string) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &models.Player{ID: uuid.New(), FullName: name, NormalizedName: name, Active: true}
	r.players[p.ID] = p
	for _, a := range aliases {
		r.aliases = append(r.aliases, models.PlayerAlias{ID: r.id(), PlayerID: p.ID, AliasText: a})
	}
	return p.ID
}

func (r *memRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (r *memRepo) ListAliases(ctx context.Context) ([]models.PlayerAlias, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.PlayerAlias(nil), r.aliases...), nil
}

func (r *memRepo) ListPlayers(ctx context.Context, params repository.ListPlayersParams) ([]models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NormalizedName < out[j].NormalizedName })
	return out, nil
}

func (r *memRepo) CountPlayers(ctx context.Context, params repository.ListPlayersParams) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.players)), nil
}

func (r *memRepo) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) FindPlayerByQIDTx(ctx context.Context, tx *gorm.DB, qid string) (*models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		if p.WikidataQID != nil && *p.WikidataQID == qid {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) FindPlayerByNormalizedNameTx(ctx context.Context, tx *gorm.DB, normalized string) (*models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		if p.NormalizedName == normalized {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) CreatePlayerTx(ctx context.Context, tx *gorm.DB, item *models.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	cp := *item
	r.players[item.ID] = &cp
	return nil
}

func (r *memRepo) UpdatePlayerTx(ctx context.Context, tx *gorm.DB, item *models.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *item
	r.players[item.ID] = &cp
	return nil
}

func (r *memRepo) ListAliasesByPlayerTx(ctx context.Context, tx *gorm.DB, playerID uuid.UUID) ([]models.PlayerAlias, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PlayerAlias
	for _, a := range r.aliases {
		if a.PlayerID == playerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) InsertPlayerAliasTx(ctx context.Context, tx *gorm.DB, item *models.PlayerAlias) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.aliases {
		if a.PlayerID == item.PlayerID && a.NormalizedAlias == item.NormalizedAlias {
			return false, nil
		}
	}
	item.ID = r.id()
	r.aliases = append(r.aliases, *item)
	return true, nil
}

func (r *memRepo) GetOrCreateSource(ctx context.Context, sourceType, name string) (*models.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sources {
		if s.SourceType == sourceType && s.Name == name {
			cp := s
			return &cp, nil
		}
	}
	s := models.Source{ID: r.id(), SourceType: sourceType, Name: name}
	r.sources = append(r.sources, s)
	return &s, nil
}

func (r *memRepo) ListSources(ctx context.Context) ([]models.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Source(nil), r.sources...), nil
}

func (r *memRepo) UpsertThread(ctx context.Context, item *models.Thread) (*models.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range r.threads {
		if t.SourceID == item.SourceID && t.ExternalID == item.ExternalID {
			r.threads[i].FetchedAt = item.FetchedAt
			cp := r.threads[i]
			return &cp, nil
		}
	}
	item.ID = r.id()
	r.threads = append(r.threads, *item)
	cp := *item
	return &cp, nil
}

func (r *memRepo) CommentExists(ctx context.Context, sourceID uint64, externalID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.comments {
		if c.SourceID == sourceID && c.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) InsertCommentTx(ctx context.Context, tx *gorm.DB, item *models.Comment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.comments {
		if c.SourceID == item.SourceID && c.ExternalID == item.ExternalID {
			return false, nil
		}
	}
	item.ID = r.id()
	r.comments = append(r.comments, *item)
	return true, nil
}

func (r *memRepo) InsertCommentEntitiesTx(ctx context.Context, tx *gorm.DB, items []models.CommentEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
next:
	for _, item := range items {
		for _, e := range r.entities {
			if e.CommentID == item.CommentID && e.PlayerID == item.PlayerID && e.MentionText == item.MentionText {
				continue next
			}
		}
		item.ID = r.id()
		r.entities = append(r.entities, item)
	}
	return nil
}

func (r *memRepo) InsertSentimentScoresTx(ctx context.Context, tx *gorm.DB, items []models.SentimentScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
next:
	for _, item := range items {
		for _, s := range r.scores {
			if s.CommentID == item.CommentID && s.PlayerID == item.PlayerID && s.ModelName == item.ModelName {
				continue next
			}
		}
		item.ID = r.id()
		r.scores = append(r.scores, item)
	}
	return nil
}

func (r *memRepo) ListCommentsByIDs(ctx context.Context, ids []uint64) ([]models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[uint64]struct{}{}
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []models.Comment
	for _, c := range r.comments {
		if _, ok := want[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memRepo) ListScoredComments(ctx context.Context, start, end time.Time, modelName string) ([]repository.ScoredComment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byID := map[uint64]models.Comment{}
	for _, c := range r.comments {
		byID[c.ID] = c
	}
	var out []repository.ScoredComment
	for _, s := range r.scores {
		c, ok := byID[s.CommentID]
		if !ok || s.ModelName != modelName || c.CreatedUTC.Before(start) || !c.CreatedUTC.Before(end) {
			continue
		}
		out = append(out, repository.ScoredComment{
			CommentID:  c.ID,
			PlayerID:   s.PlayerID,
			Compound:   s.Compound,
			Score:      c.Score,
			Body:       c.Body,
			CreatedUTC: c.CreatedUTC,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedUTC.Equal(out[j].CreatedUTC) {
			return out[i].CreatedUTC.Before(out[j].CreatedUTC)
		}
		if out[i].CommentID != out[j].CommentID {
			return out[i].CommentID < out[j].CommentID
		}
		return out[i].PlayerID.String() < out[j].PlayerID.String()
	})
	return out, nil
}

func metricKey(playerID uuid.UUID, date time.Time) string {
	return playerID.String() + "|" + date.Format("2006-01-02")
}

func (r *memRepo) UpsertPlayerDailyMetricsTx(ctx context.Context, tx *gorm.DB, items []models.PlayerDailyMetric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		key := metricKey(item.PlayerID, item.Date)
		if prev, ok := r.metrics[key]; ok {
			if prev.CommentCount == item.CommentCount && prev.AvgCompound.Equal(item.AvgCompound) &&
				prev.PosShare.Equal(item.PosShare) && prev.NegShare.Equal(item.NegShare) &&
				bytes.Equal(prev.TopTerms, item.TopTerms) {
				continue
			}
			item.ID = prev.ID
		} else {
			item.ID = r.id()
		}
		r.metrics[key] = item
	}
	return nil
}

func (r *memRepo) DeleteStaleDailyMetricsTx(ctx context.Context, tx *gorm.DB, date time.Time, keep []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := map[uuid.UUID]struct{}{}
	for _, id := range keep {
		kept[id] = struct{}{}
	}
	var n int64
	for key, m := range r.metrics {
		if !m.Date.Equal(date) {
			continue
		}
		if _, ok := kept[m.PlayerID]; ok {
			continue
		}
		delete(r.metrics, key)
		n++
	}
	return n, nil
}

func (r *memRepo) ListPlayerDailyMetrics(ctx context.Context, params repository.ListDailyMetricsParams) ([]models.PlayerDailyMetric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PlayerDailyMetric
	for _, m := range r.metrics {
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
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *memRepo) GetPlayerDailyMetric(ctx context.Context, playerID uuid.UUID, date time.Time) (*models.PlayerDailyMetric, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metrics[metricKey(playerID, date)]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *memRepo) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[scope]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *memRepo) SaveSyncStateTx(ctx context.Context, tx *gorm.DB, state *models.SyncState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.Scope] = *state
	return nil
}

func (r *memRepo) ListSyncStates(ctx context.Context) ([]models.SyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SyncState, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope < out[j].Scope })
	return out, nil
}

func (r *memRepo) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[item.Key] = *item
	return nil
}

func (r *memRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[key]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *memRepo) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SystemSetting
	for _, s := range r.settings {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *memRepo) CountSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.settings)), nil
}

var _ repository.Repository = (*memRepo)(nil)
