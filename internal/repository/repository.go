package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fansapprove/internal/models"
)

type Transactor interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PlayerRepository covers the roster: players, their aliases and the
// lookups the reconciler needs inside its transaction.
type PlayerRepository interface {
	Transactor
	ListAliases(ctx context.Context) ([]models.PlayerAlias, error)
	ListPlayers(ctx context.Context, params ListPlayersParams) ([]models.Player, error)
	CountPlayers(ctx context.Context, params ListPlayersParams) (int64, error)
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	FindPlayerByQIDTx(ctx context.Context, tx *gorm.DB, qid string) (*models.Player, error)
	FindPlayerByNormalizedNameTx(ctx context.Context, tx *gorm.DB, normalized string) (*models.Player, error)
	CreatePlayerTx(ctx context.Context, tx *gorm.DB, item *models.Player) error
	UpdatePlayerTx(ctx context.Context, tx *gorm.DB, item *models.Player) error
	ListAliasesByPlayerTx(ctx context.Context, tx *gorm.DB, playerID uuid.UUID) ([]models.PlayerAlias, error)
	// InsertPlayerAliasTx reports false when the alias already existed.
	InsertPlayerAliasTx(ctx context.Context, tx *gorm.DB, item *models.PlayerAlias) (bool, error)
}

type IngestRepository interface {
	Transactor
	GetOrCreateSource(ctx context.Context, sourceType, name string) (*models.Source, error)
	ListSources(ctx context.Context) ([]models.Source, error)
	// UpsertThread creates the thread or, on revisit, only advances fetched_at.
	UpsertThread(ctx context.Context, item *models.Thread) (*models.Thread, error)
	CommentExists(ctx context.Context, sourceID uint64, externalID string) (bool, error)
	// InsertCommentTx reports false when (source_id, external_id) already exists.
	InsertCommentTx(ctx context.Context, tx *gorm.DB, item *models.Comment) (bool, error)
	InsertCommentEntitiesTx(ctx context.Context, tx *gorm.DB, items []models.CommentEntity) error
	InsertSentimentScoresTx(ctx context.Context, tx *gorm.DB, items []models.SentimentScore) error
	ListCommentsByIDs(ctx context.Context, ids []uint64) ([]models.Comment, error)
	GetSyncState(ctx context.Context, scope string) (*models.SyncState, error)
	SaveSyncStateTx(ctx context.Context, tx *gorm.DB, state *models.SyncState) error
	ListSyncStates(ctx context.Context) ([]models.SyncState, error)
}

type MetricRepository interface {
	Transactor
	ListScoredComments(ctx context.Context, start, end time.Time, modelName string) ([]ScoredComment, error)
	UpsertPlayerDailyMetricsTx(ctx context.Context, tx *gorm.DB, items []models.PlayerDailyMetric) error
	// DeleteStaleDailyMetricsTx removes rows for date whose player is not in keep.
	DeleteStaleDailyMetricsTx(ctx context.Context, tx *gorm.DB, date time.Time, keep []uuid.UUID) (int64, error)
	ListPlayerDailyMetrics(ctx context.Context, params ListDailyMetricsParams) ([]models.PlayerDailyMetric, error)
	GetPlayerDailyMetric(ctx context.Context, playerID uuid.UUID, date time.Time) (*models.PlayerDailyMetric, error)
}

type SettingsRepository interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
	CountSystemSettings(ctx context.Context, params ListSystemSettingsParams) (int64, error)
}

// Repository is everything the pipeline and the API need from storage.
type Repository interface {
	PlayerRepository
	IngestRepository
	MetricRepository
	SettingsRepository
}

// ScoredComment is one (score, comment) pair inside an aggregation window,
// ordered by comment time then id.
type ScoredComment struct {
	CommentID  uint64
	PlayerID   uuid.UUID
	Compound   float64
	Score      int
	Body       string
	CreatedUTC time.Time
}

type ListPlayersParams struct {
	Limit   int
	Offset  int
	Active  *bool
	Team    *string
	Name    *string
	OrderBy string
	Asc     *bool
}

type ListDailyMetricsParams struct {
	PlayerID uuid.UUID
	From     *time.Time
	To       *time.Time
	Limit    int
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}
