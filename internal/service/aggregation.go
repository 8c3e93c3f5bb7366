package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"fansapprove/internal/config"
	"fansapprove/internal/metrics"
	"fansapprove/internal/models"
	"fansapprove/internal/repository"
)

const dayLayout = "2006-01-02"

// AggregationService rolls sentiment scores up into one PlayerDailyMetric
// row per player and UTC day.
type AggregationService struct {
	Repo      repository.Repository
	Logger    *zap.Logger
	Config    config.AggregationConfig
	ModelName string
	Now       func() time.Time
}

type AggregateResult struct {
	Date     string `json:"date"`
	Comments int    `json:"comments"`
	Players  int    `json:"players"`
	Deleted  int64  `json:"deleted"`
}

// RecomputeDay rebuilds every metric row for day in one transaction. Rows
// for players with no remaining data that day are removed.
func (s *AggregationService) RecomputeDay(ctx context.Context, day time.Time) (AggregateResult, error) {
	start := truncateDay(day)
	end := start.AddDate(0, 0, 1)
	result := AggregateResult{Date: start.Format(dayLayout)}
	if s == nil || s.Repo == nil {
		return result, nil
	}

	rows, err := s.Repo.ListScoredComments(ctx, start, end, s.modelName())
	if err != nil {
		return result, fmt.Errorf("list scored comments %s: %w", result.Date, err)
	}
	items := BuildDailyMetrics(rows, start, s.Config, s.now())
	keep := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		keep = append(keep, item.PlayerID)
		result.Comments += item.CommentCount
	}

	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.UpsertPlayerDailyMetricsTx(ctx, tx, items); err != nil {
			return err
		}
		deleted, err := s.Repo.DeleteStaleDailyMetricsTx(ctx, tx, start, keep)
		if err != nil {
			return err
		}
		result.Deleted = deleted
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("save daily metrics %s: %w", result.Date, err)
	}
	result.Players = len(items)
	metrics.AggregateRowsTotal.WithLabelValues("upsert").Add(float64(len(items)))
	metrics.AggregateRowsTotal.WithLabelValues("delete").Add(float64(result.Deleted))

	if s.Logger != nil {
		s.Logger.Info("daily metrics recomputed",
			zap.String("date", result.Date),
			zap.Int("players", result.Players),
			zap.Int("comments", result.Comments),
			zap.Int64("deleted", result.Deleted),
		)
	}
	return result, nil
}

// RecomputeRange recomputes every day in [from, to], oldest first.
func (s *AggregationService) RecomputeRange(ctx context.Context, from, to time.Time) ([]AggregateResult, error) {
	from, to = truncateDay(from), truncateDay(to)
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s after %s", from.Format(dayLayout), to.Format(dayLayout))
	}
	var out []AggregateResult
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		res, err := s.RecomputeDay(ctx, day)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// RecomputeRecent recomputes today and the configured number of days
// before it. It is what the scheduler runs.
func (s *AggregationService) RecomputeRecent(ctx context.Context) ([]AggregateResult, error) {
	today := truncateDay(s.now())
	days := s.Config.BackfillDays
	if days < 0 {
		days = 0
	}
	return s.RecomputeRange(ctx, today.AddDate(0, 0, -days), today)
}

func (s *AggregationService) modelName() string {
	if strings.TrimSpace(s.ModelName) != "" {
		return s.ModelName
	}
	return "vader"
}

func (s *AggregationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ParseDay accepts "today", "yesterday" or a YYYY-MM-DD date, relative to now in UTC.
func ParseDay(value string, now time.Time) (time.Time, error) {
	today := truncateDay(now)
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "yesterday":
		return today.AddDate(0, 0, -1), nil
	case "today":
		return today, nil
	}
	day, err := time.Parse(dayLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: want today, yesterday or YYYY-MM-DD", value)
	}
	return day, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type playerBucket struct {
	seen      map[uint64]struct{}
	weightSum decimal.Decimal
	weighted  decimal.Decimal
	pos       int
	neg       int
	terms     *termCounter
}

// BuildDailyMetrics computes one metric row per player from the scored
// comments of a single day. Output is sorted by player id and depends only
// on rows, so equal input gives equal rows.
func BuildDailyMetrics(rows []repository.ScoredComment, day time.Time, cfg config.AggregationConfig, now time.Time) []models.PlayerDailyMetric {
	cfg = aggregationDefaults(cfg)
	buckets := map[uuid.UUID]*playerBucket{}
	for _, row := range rows {
		b := buckets[row.PlayerID]
		if b == nil {
			b = &playerBucket{seen: map[uint64]struct{}{}, terms: newTermCounter()}
			buckets[row.PlayerID] = b
		}
		if _, dup := b.seen[row.CommentID]; dup {
			continue
		}
		b.seen[row.CommentID] = struct{}{}

		w := decimal.NewFromFloat(ClampWeight(row.Score, cfg.WeightMin, cfg.WeightMax))
		b.weightSum = b.weightSum.Add(w)
		b.weighted = b.weighted.Add(decimal.NewFromFloat(row.Compound).Mul(w))
		if row.Compound > cfg.PositiveThreshold {
			b.pos++
		}
		if row.Compound < cfg.NegativeThreshold {
			b.neg++
		}
		for _, token := range strings.Fields(strings.ToLower(row.Body)) {
			if utf8.RuneCountInString(token) >= cfg.MinTermLength {
				b.terms.add(token)
			}
		}
	}

	ids := make([]uuid.UUID, 0, len(buckets))
	for id := range buckets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	date := truncateDay(day)
	out := make([]models.PlayerDailyMetric, 0, len(ids))
	for _, id := range ids {
		b := buckets[id]
		n := decimal.NewFromInt(int64(len(b.seen)))
		avg := decimal.Zero
		if b.weightSum.IsPositive() {
			avg = b.weighted.Div(b.weightSum)
		}
		out = append(out, models.PlayerDailyMetric{
			PlayerID:     id,
			Date:         date,
			CommentCount: len(b.seen),
			AvgCompound:  avg.Round(6),
			PosShare:     decimal.NewFromInt(int64(b.pos)).Div(n).Round(6),
			NegShare:     decimal.NewFromInt(int64(b.neg)).Div(n).Round(6),
			TopTerms:     b.terms.topJSON(cfg.TopTerms),
			UpdatedAt:    now,
		})
	}
	return out
}

// ClampWeight turns an engagement score into an aggregation weight.
func ClampWeight(score int, min, max float64) float64 {
	w := float64(score)
	if w < min {
		return min
	}
	if w > max {
		return max
	}
	return w
}

func aggregationDefaults(cfg config.AggregationConfig) config.AggregationConfig {
	if cfg.WeightMin <= 0 {
		cfg.WeightMin = 1
	}
	if cfg.WeightMax < cfg.WeightMin {
		cfg.WeightMax = 20
	}
	if cfg.PositiveThreshold == 0 && cfg.NegativeThreshold == 0 {
		cfg.PositiveThreshold, cfg.NegativeThreshold = 0.05, -0.05
	}
	if cfg.TopTerms <= 0 {
		cfg.TopTerms = 10
	}
	if cfg.MinTermLength <= 0 {
		cfg.MinTermLength = 5
	}
	return cfg
}

// termCounter counts tokens and remembers first appearance for tie-breaks.
type termCounter struct {
	counts map[string]int
	order  []string
}

func newTermCounter() *termCounter {
	return &termCounter{counts: map[string]int{}}
}

func (c *termCounter) add(term string) {
	if _, ok := c.counts[term]; !ok {
		c.order = append(c.order, term)
	}
	c.counts[term]++
}

func (c *termCounter) top(n int) []string {
	ranked := make([]string, len(c.order))
	copy(ranked, c.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return c.counts[ranked[i]] > c.counts[ranked[j]]
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// topJSON encodes the top terms as an object whose key order is the rank.
func (c *termCounter) topJSON(n int) datatypes.JSON {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, term := range c.top(n) {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(term)
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", c.counts[term])
	}
	buf.WriteByte('}')
	return datatypes.JSON(buf.Bytes())
}

// OrderedTerms decodes a top-terms object and keeps its key order. It walks
// the token stream, which a map decode would lose.
func OrderedTerms(raw []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil
	}
	var out []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		key, ok := tok.(string)
		if !ok {
			return out
		}
		tok, err = dec.Token()
		if err != nil {
			return out
		}
		if _, ok := tok.(float64); !ok {
			return out
		}
		out = append(out, key)
	}
	return out
}
