package gormrepository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fansapprove/internal/models"
	"fansapprove/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- players ---------------------------------------------------------------

func (s *Store) ListAliases(ctx context.Context) ([]models.PlayerAlias, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.PlayerAlias
	if err := s.db.WithContext(ctx).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPlayers(ctx context.Context, params repository.ListPlayersParams) ([]models.Player, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := playerFilters(s.db.WithContext(ctx).Model(&models.Player{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "normalized_name")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Player
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPlayers(ctx context.Context, params repository.ListPlayersParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := playerFilters(s.db.WithContext(ctx).Model(&models.Player{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func playerFilters(query *gorm.DB, params repository.ListPlayersParams) *gorm.DB {
	if params.Active != nil {
		query = query.Where("active = ?", *params.Active)
	}
	if params.Team != nil && strings.TrimSpace(*params.Team) != "" {
		query = query.Where("team = ?", strings.TrimSpace(*params.Team))
	}
	if params.Name != nil && strings.TrimSpace(*params.Name) != "" {
		query = query.Where("normalized_name LIKE ?", "%"+strings.TrimSpace(*params.Name)+"%")
	}
	return query
}

func (s *Store) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	if s == nil || s.db == nil || id == uuid.Nil {
		return nil, nil
	}
	var item models.Player
	err := s.db.WithContext(ctx).
		Preload("Aliases", func(db *gorm.DB) *gorm.DB { return db.Order("normalized_alias asc") }).
		First(&item, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) FindPlayerByQIDTx(ctx context.Context, tx *gorm.DB, qid string) (*models.Player, error) {
	qid = strings.TrimSpace(qid)
	if qid == "" {
		return nil, nil
	}
	return firstPlayer(tx.WithContext(ctx).Where("wikidata_qid = ?", qid))
}

func (s *Store) FindPlayerByNormalizedNameTx(ctx context.Context, tx *gorm.DB, normalized string) (*models.Player, error) {
	if normalized == "" {
		return nil, nil
	}
	return firstPlayer(tx.WithContext(ctx).Where("normalized_name = ?", normalized))
}

func firstPlayer(query *gorm.DB) (*models.Player, error) {
	var item models.Player
	err := query.First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreatePlayerTx(ctx context.Context, tx *gorm.DB, item *models.Player) error {
	if item == nil {
		return nil
	}
	return tx.WithContext(ctx).Omit("Aliases").Create(item).Error
}

func (s *Store) UpdatePlayerTx(ctx context.Context, tx *gorm.DB, item *models.Player) error {
	if item == nil || item.ID == uuid.Nil {
		return nil
	}
	return tx.WithContext(ctx).Model(item).
		Select("full_name", "normalized_name", "wikidata_qid", "team", "active", "positions", "birth_date", "debut_year", "updated_at").
		Updates(item).Error
}

func (s *Store) ListAliasesByPlayerTx(ctx context.Context, tx *gorm.DB, playerID uuid.UUID) ([]models.PlayerAlias, error) {
	var items []models.PlayerAlias
	if err := tx.WithContext(ctx).Where("player_id = ?", playerID).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertPlayerAliasTx(ctx context.Context, tx *gorm.DB, item *models.PlayerAlias) (bool, error) {
	if item == nil {
		return false, nil
	}
	res := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "normalized_alias"}},
		DoNothing: true,
	}).Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// --- ingest ----------------------------------------------------------------

func (s *Store) GetOrCreateSource(ctx context.Context, sourceType, name string) (*models.Source, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	item := models.Source{SourceType: sourceType, Name: name}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_type"}, {Name: "name"}},
		DoNothing: true,
	}).Create(&item).Error; err != nil {
		return nil, err
	}
	var out models.Source
	if err := s.db.WithContext(ctx).Where("source_type = ? AND name = ?", sourceType, name).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) ListSources(ctx context.Context) ([]models.Source, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Source
	if err := s.db.WithContext(ctx).Order("source_type asc, name asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertThread(ctx context.Context, item *models.Thread) (*models.Thread, error) {
	if s == nil || s.db == nil || item == nil {
		return item, nil
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"fetched_at"}),
	}).Create(item).Error; err != nil {
		return nil, err
	}
	var out models.Thread
	if err := s.db.WithContext(ctx).Where("source_id = ? AND external_id = ?", item.SourceID, item.ExternalID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) CommentExists(ctx context.Context, sourceID uint64, externalID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("source_id = ? AND external_id = ?", sourceID, externalID).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) InsertCommentTx(ctx context.Context, tx *gorm.DB, item *models.Comment) (bool, error) {
	if item == nil {
		return false, nil
	}
	res := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) InsertCommentEntitiesTx(ctx context.Context, tx *gorm.DB, items []models.CommentEntity) error {
	if len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "comment_id"}, {Name: "player_id"}, {Name: "mention_text"}},
		DoNothing: true,
	}).Create(&items).Error
}

func (s *Store) InsertSentimentScoresTx(ctx context.Context, tx *gorm.DB, items []models.SentimentScore) error {
	if len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "comment_id"}, {Name: "player_id"}, {Name: "model_name"}},
		DoNothing: true,
	}).Create(&items).Error
}

func (s *Store) ListCommentsByIDs(ctx context.Context, ids []uint64) ([]models.Comment, error) {
	if s == nil || s.db == nil || len(ids) == 0 {
		return nil, nil
	}
	var items []models.Comment
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- daily metrics ---------------------------------------------------------

func (s *Store) ListScoredComments(ctx context.Context, start, end time.Time, modelName string) ([]repository.ScoredComment, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.ScoredComment
	err := s.db.WithContext(ctx).
		Table("sentiment_scores AS ss").
		Select("ss.comment_id, ss.player_id, ss.compound, c.score, c.body, c.created_utc").
		Joins("JOIN comments c ON c.id = ss.comment_id").
		Where("ss.model_name = ?", modelName).
		Where("c.created_utc >= ? AND c.created_utc < ?", start, end).
		Order("c.created_utc asc, c.id asc, ss.player_id asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertPlayerDailyMetricsTx overwrites each row, but leaves rows whose values
// are unchanged untouched so a rerun does not bump updated_at.
func (s *Store) UpsertPlayerDailyMetricsTx(ctx context.Context, tx *gorm.DB, items []models.PlayerDailyMetric) error {
	if len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "player_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"comment_count",
			"avg_compound",
			"pos_share",
			"neg_share",
			"top_terms",
			"updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "(player_daily_metrics.comment_count, player_daily_metrics.avg_compound, " +
			"player_daily_metrics.pos_share, player_daily_metrics.neg_share, player_daily_metrics.top_terms::text) IS DISTINCT FROM " +
			"(excluded.comment_count, excluded.avg_compound, excluded.pos_share, excluded.neg_share, excluded.top_terms::text)"}}},
	}).Create(&items).Error
}

func (s *Store) DeleteStaleDailyMetricsTx(ctx context.Context, tx *gorm.DB, date time.Time, keep []uuid.UUID) (int64, error) {
	query := tx.WithContext(ctx).Where("date = ?", date.Format("2006-01-02"))
	if len(keep) > 0 {
		query = query.Where("player_id NOT IN ?", keep)
	}
	res := query.Delete(&models.PlayerDailyMetric{})
	return res.RowsAffected, res.Error
}

func (s *Store) ListPlayerDailyMetrics(ctx context.Context, params repository.ListDailyMetricsParams) ([]models.PlayerDailyMetric, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.PlayerDailyMetric{}).Where("player_id = ?", params.PlayerID)
	if params.From != nil {
		query = query.Where("date >= ?", params.From.Format("2006-01-02"))
	}
	if params.To != nil {
		query = query.Where("date <= ?", params.To.Format("2006-01-02"))
	}
	var items []models.PlayerDailyMetric
	if err := query.Order("date asc").Limit(normalizeLimit(params.Limit, 90)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetPlayerDailyMetric(ctx context.Context, playerID uuid.UUID, date time.Time) (*models.PlayerDailyMetric, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.PlayerDailyMetric
	err := s.db.WithContext(ctx).
		Where("player_id = ? AND date = ?", playerID, date.Format("2006-01-02")).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- settings & sync state -------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := settingFilters(s.db.WithContext(ctx).Model(&models.SystemSetting{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "key")
	limit := normalizeLimit(params.Limit, 500)
	offset := normalizeOffset(params.Offset)
	var items []models.SystemSetting
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := settingFilters(s.db.WithContext(ctx).Model(&models.SystemSetting{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func settingFilters(query *gorm.DB, params repository.ListSystemSettingsParams) *gorm.DB {
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		query = query.Where("key LIKE ?", strings.TrimSpace(*params.Prefix)+"%")
	}
	return query
}

func (s *Store) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var state models.SyncState
	err := s.db.WithContext(ctx).First(&state, "scope = ?", scope).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) SaveSyncStateTx(ctx context.Context, tx *gorm.DB, state *models.SyncState) error {
	if state == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cursor",
			"watermark_ts",
			"last_success_at",
			"last_attempt_at",
			"last_error",
			"stats_json",
		}),
	}).Create(state).Error
}

func (s *Store) ListSyncStates(ctx context.Context) ([]models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var states []models.SyncState
	if err := s.db.WithContext(ctx).Order("scope asc").Find(&states).Error; err != nil {
		return nil, err
	}
	return states, nil
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

var _ repository.Repository = (*Store)(nil)
