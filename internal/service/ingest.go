package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fansapprove/internal/connector"
	"fansapprove/internal/matcher"
	"fansapprove/internal/metrics"
	"fansapprove/internal/models"
	"fansapprove/internal/repository"
	"fansapprove/internal/sentiment"
)

var ErrUnknownSource = errors.New("unknown source")

// IngestService crawls each configured source, stores new comments and
// records player mentions and their sentiment.
type IngestService struct {
	Repo         repository.Repository
	Scorer       sentiment.Scorer
	Logger       *zap.Logger
	Connectors   []connector.Connector
	Denylist     []string
	Lookback     time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	Now          func() time.Time
}

type IngestResult struct {
	Source       string `json:"source"`
	Threads      int    `json:"threads"`
	Posts        int    `json:"posts"`
	NewComments  int    `json:"new_comments"`
	Duplicates   int    `json:"duplicates"`
	Mentions     int    `json:"mentions"`
	Scored       int    `json:"scored"`
	Skipped      int    `json:"skipped"`
	ThreadErrors int    `json:"thread_errors"`
	Attempts     int    `json:"attempts"`
}

type ReprocessResult struct {
	Comments int `json:"comments"`
	Mentions int `json:"mentions"`
	Scored   int `json:"scored"`
}

func (s *IngestService) RunAll(ctx context.Context) ([]IngestResult, error) {
	results := make([]IngestResult, len(s.Connectors))
	errs := make([]error, len(s.Connectors))
	var wg sync.WaitGroup
	for i, conn := range s.Connectors {
		wg.Add(1)
		go func(i int, conn connector.Connector) {
			defer wg.Done()
			results[i], errs[i] = s.RunSource(ctx, conn)
		}(i, conn)
	}
	wg.Wait()
	return results, errors.Join(errs...)
}

func (s *IngestService) RunByName(ctx context.Context, name string) (IngestResult, error) {
	name = strings.TrimSpace(name)
	for _, conn := range s.Connectors {
		if conn.SourceName() == name || sourceKey(conn) == name {
			return s.RunSource(ctx, conn)
		}
	}
	return IngestResult{Source: name}, fmt.Errorf("%w: %s", ErrUnknownSource, name)
}

func (s *IngestService) SourceNames() []string {
	out := make([]string, 0, len(s.Connectors))
	for _, conn := range s.Connectors {
		out = append(out, sourceKey(conn))
	}
	return out
}

// RunSource performs one crawl of conn. Transient failures restart the
// whole crawl after a backoff; comments committed by an earlier attempt are
// skipped as duplicates.
func (s *IngestService) RunSource(ctx context.Context, conn connector.Connector) (IngestResult, error) {
	key := sourceKey(conn)
	result := IngestResult{Source: key}
	if s == nil || s.Repo == nil || conn == nil {
		return result, nil
	}
	started := time.Now()

	aliases, err := s.Repo.ListAliases(ctx)
	if err != nil {
		return result, fmt.Errorf("load aliases: %w", err)
	}
	m := matcher.New(toMatcherAliases(aliases), s.Denylist)
	if m.Size() == 0 && s.Logger != nil {
		s.Logger.Warn("alias table is empty, no mentions will be recorded", zap.String("source", key))
	}

	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, s.backoff(attempt)); err != nil {
				lastErr = err
				break
			}
			if s.Logger != nil {
				s.Logger.Info("retrying crawl", zap.String("source", key), zap.Int("attempt", attempt+1), zap.Error(lastErr))
			}
		}
		result.Attempts = attempt + 1
		lastErr = s.crawl(ctx, conn, m, &result)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil || !connector.IsTransient(lastErr) {
			break
		}
	}

	metrics.RecordCrawl(key, lastErr == nil, time.Since(started))
	if lastErr != nil {
		s.writeSyncError(ctx, ingestScope(conn), lastErr)
		return result, lastErr
	}
	s.writeSyncSuccess(ctx, ingestScope(conn), result)
	if s.Logger != nil {
		s.Logger.Info("crawl done",
			zap.String("source", key),
			zap.Int("threads", result.Threads),
			zap.Int("posts", result.Posts),
			zap.Int("new_comments", result.NewComments),
			zap.Int("mentions", result.Mentions),
			zap.Int("skipped", result.Skipped),
			zap.Int("attempts", result.Attempts),
		)
	}
	return result, nil
}

func (s *IngestService) crawl(ctx context.Context, conn connector.Connector, m *matcher.Matcher, res *IngestResult) error {
	src, err := s.Repo.GetOrCreateSource(ctx, conn.SourceType(), conn.SourceName())
	if err != nil {
		return fmt.Errorf("get source: %w", err)
	}
	if src == nil {
		return fmt.Errorf("get source: %s not found", sourceKey(conn))
	}
	now := s.now()
	cutoff := now.Add(-s.lookback())

	threads, err := conn.ListRecentThreads(ctx, cutoff)
	if err != nil {
		metrics.RecordFetchError(res.Source, connector.IsTransient(err))
		return fmt.Errorf("list threads: %w", err)
	}
	metrics.ItemsFetchedTotal.WithLabelValues(res.Source, "thread").Add(float64(len(threads)))

	for _, item := range threads {
		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.TrimSpace(item.ExternalID) == "" {
			res.Skipped++
			metrics.MalformedTotal.WithLabelValues(res.Source).Inc()
			continue
		}
		thread, err := s.Repo.UpsertThread(ctx, &models.Thread{
			SourceID:   src.ID,
			ExternalID: item.ExternalID,
			Title:      item.Title,
			URL:        strPtr(item.URL),
			CreatedAt:  timePtr(item.CreatedAt),
			FetchedAt:  now,
		})
		if err != nil {
			return fmt.Errorf("save thread %s: %w", item.ExternalID, err)
		}
		res.Threads++

		posts, err := conn.ListPosts(ctx, item, cutoff)
		if err != nil {
			transient := connector.IsTransient(err)
			metrics.RecordFetchError(res.Source, transient)
			if transient || errors.Is(err, context.Canceled) {
				return fmt.Errorf("thread %s: %w", item.ExternalID, err)
			}
			res.ThreadErrors++
			if s.Logger != nil {
				s.Logger.Warn("thread fetch failed, skipping",
					zap.String("source", res.Source),
					zap.String("thread", item.ExternalID),
					zap.Error(err),
				)
			}
			continue
		}
		metrics.ItemsFetchedTotal.WithLabelValues(res.Source, "post").Add(float64(len(posts)))

		for _, post := range posts {
			if err := s.processPost(ctx, src.ID, thread.ID, post, m, res); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *IngestService) processPost(ctx context.Context, sourceID, threadID uint64, post connector.PostItem, m *matcher.Matcher, res *IngestResult) error {
	res.Posts++
	if strings.TrimSpace(post.ExternalID) == "" || post.CreatedAt.IsZero() {
		res.Skipped++
		metrics.MalformedTotal.WithLabelValues(res.Source).Inc()
		if s.Logger != nil {
			s.Logger.Debug("malformed post skipped", zap.String("source", res.Source), zap.String("id", post.ExternalID))
		}
		return nil
	}

	exists, err := s.Repo.CommentExists(ctx, sourceID, post.ExternalID)
	if err != nil {
		return fmt.Errorf("check comment %s: %w", post.ExternalID, err)
	}
	if exists {
		res.Duplicates++
		metrics.CommentsDuplicateTotal.WithLabelValues(res.Source).Inc()
		return nil
	}

	comment := &models.Comment{
		SourceID:         sourceID,
		ThreadID:         threadID,
		ExternalID:       post.ExternalID,
		ParentExternalID: strPtr(post.ParentExternalID),
		AuthorHash:       hashAuthor(post.Author),
		Body:             post.Body,
		CreatedUTC:       post.CreatedAt.UTC(),
		Score:            post.Score,
		URL:              strPtr(post.URL),
	}
	mentions := m.FindMentions(post.Body)

	var inserted bool
	var entities []models.CommentEntity
	var scores []models.SentimentScore
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.Repo.InsertCommentTx(ctx, tx, comment)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		inserted = true
		entities, scores = s.derive(comment.ID, comment.Body, mentions)
		if err := s.Repo.InsertCommentEntitiesTx(ctx, tx, entities); err != nil {
			return err
		}
		return s.Repo.InsertSentimentScoresTx(ctx, tx, scores)
	})
	if err != nil {
		return fmt.Errorf("store comment %s: %w", post.ExternalID, err)
	}
	if !inserted {
		res.Duplicates++
		metrics.CommentsDuplicateTotal.WithLabelValues(res.Source).Inc()
		return nil
	}
	res.NewComments++
	res.Mentions += len(entities)
	res.Scored += len(scores)
	metrics.CommentsInsertedTotal.WithLabelValues(res.Source).Inc()
	metrics.MentionsTotal.WithLabelValues(res.Source).Add(float64(len(entities)))
	if len(scores) > 0 {
		metrics.ScoresTotal.WithLabelValues(res.Source, scores[0].ModelName).Add(float64(len(scores)))
	}
	return nil
}

// derive builds one entity per mention and one score per distinct player.
// The body is scored once however many players it mentions.
func (s *IngestService) derive(commentID uint64, body string, mentions []matcher.Mention) ([]models.CommentEntity, []models.SentimentScore) {
	if len(mentions) == 0 {
		return nil, nil
	}
	entities := make([]models.CommentEntity, 0, len(mentions))
	for _, mention := range mentions {
		entities = append(entities, models.CommentEntity{
			CommentID:   commentID,
			PlayerID:    mention.PlayerID,
			MentionText: mention.Text,
		})
	}
	if s.Scorer == nil {
		return entities, nil
	}
	sc := s.Scorer.Score(body)
	seen := make(map[uuid.UUID]struct{}, len(mentions))
	scores := make([]models.SentimentScore, 0, len(mentions))
	for _, mention := range mentions {
		if _, ok := seen[mention.PlayerID]; ok {
			continue
		}
		seen[mention.PlayerID] = struct{}{}
		scores = append(scores, models.SentimentScore{
			CommentID: commentID,
			PlayerID:  mention.PlayerID,
			ModelName: s.Scorer.Model(),
			Compound:  sc.Compound,
			Pos:       sc.Pos,
			Neu:       sc.Neu,
			Neg:       sc.Neg,
		})
	}
	return entities, scores
}

// Reprocess re-runs matching and scoring for stored comments, for instance
// after new aliases were added. Existing rows are left as they are.
func (s *IngestService) Reprocess(ctx context.Context, commentIDs []uint64) (ReprocessResult, error) {
	var result ReprocessResult
	if s == nil || s.Repo == nil || len(commentIDs) == 0 {
		return result, nil
	}
	aliases, err := s.Repo.ListAliases(ctx)
	if err != nil {
		return result, fmt.Errorf("load aliases: %w", err)
	}
	m := matcher.New(toMatcherAliases(aliases), s.Denylist)
	comments, err := s.Repo.ListCommentsByIDs(ctx, commentIDs)
	if err != nil {
		return result, err
	}
	for _, comment := range comments {
		entities, scores := s.derive(comment.ID, comment.Body, m.FindMentions(comment.Body))
		if len(entities) == 0 {
			continue
		}
		err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			if err := s.Repo.InsertCommentEntitiesTx(ctx, tx, entities); err != nil {
				return err
			}
			return s.Repo.InsertSentimentScoresTx(ctx, tx, scores)
		})
		if err != nil {
			return result, fmt.Errorf("reprocess comment %d: %w", comment.ID, err)
		}
		result.Comments++
		result.Mentions += len(entities)
		result.Scored += len(scores)
	}
	return result, nil
}

func (s *IngestService) writeSyncSuccess(ctx context.Context, scope string, result IngestResult) {
	now := time.Now().UTC()
	_ = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		state := &models.SyncState{
			Scope:         scope,
			WatermarkTS:   &now,
			LastSuccessAt: &now,
			LastAttemptAt: &now,
			StatsJSON: statsJSON(map[string]int{
				"threads":       result.Threads,
				"posts":         result.Posts,
				"new_comments":  result.NewComments,
				"duplicates":    result.Duplicates,
				"mentions":      result.Mentions,
				"scored":        result.Scored,
				"skipped":       result.Skipped,
				"thread_errors": result.ThreadErrors,
				"attempts":      result.Attempts,
			}),
		}
		return s.Repo.SaveSyncStateTx(ctx, tx, state)
	})
}

func (s *IngestService) writeSyncError(ctx context.Context, scope string, err error) {
	if s.Logger != nil {
		s.Logger.Warn("crawl failed", zap.String("scope", scope), zap.Error(err))
	}
	writeSyncError(ctx, s.Repo, scope, err)
}

func (s *IngestService) backoff(attempt int) time.Duration {
	if s.RetryBackoff > 0 {
		return s.RetryBackoff * time.Duration(attempt)
	}
	return time.Duration(400+attempt*400) * time.Millisecond
}

func (s *IngestService) lookback() time.Duration {
	if s.Lookback > 0 {
		return s.Lookback
	}
	return 24 * time.Hour
}

func (s *IngestService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func sourceKey(conn connector.Connector) string {
	return conn.SourceType() + ":" + conn.SourceName()
}

func ingestScope(conn connector.Connector) string {
	return "ingest:" + sourceKey(conn)
}

func toMatcherAliases(items []models.PlayerAlias) []matcher.Alias {
	out := make([]matcher.Alias, 0, len(items))
	for _, item := range items {
		out = append(out, matcher.Alias{
			PlayerID:        item.PlayerID,
			AliasText:       item.AliasText,
			NormalizedAlias: item.NormalizedAlias,
		})
	}
	return out
}

// hashAuthor keeps author handles out of storage while still letting two
// comments by the same author be correlated.
func hashAuthor(author string) *string {
	author = strings.TrimSpace(author)
	if author == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(author))
	out := hex.EncodeToString(sum[:])
	return &out
}
