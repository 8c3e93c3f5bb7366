package cronrunner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"fansapprove/internal/config"
	"fansapprove/internal/connector"
	"fansapprove/internal/service"
)

type Flags interface {
	IsEnabled(ctx context.Context, key string, fallback bool) bool
}

type SourceRunner interface {
	RunSource(ctx context.Context, conn connector.Connector) (service.IngestResult, error)
}

type Aggregator interface {
	RecomputeRecent(ctx context.Context) ([]service.AggregateResult, error)
}

type RosterSyncer interface {
	Sync(ctx context.Context) (service.ReconcileResult, error)
}

// Jobs binds the pipeline services to cron entries. Each job checks its
// feature switch on every tick, so a switch flipped through the settings
// API takes effect without a restart.
type Jobs struct {
	Flags      Flags
	Ingest     SourceRunner
	Connectors []connector.Connector
	Aggregate  Aggregator
	Roster     RosterSyncer
	Logger     *zap.Logger
}

// Register adds one ingest entry per connector plus the aggregate and
// roster entries. An empty spec leaves that job unscheduled.
func (j *Jobs) Register(r *Runner, cfg config.CronConfig) error {
	var errs []error
	if cfg.Ingest != "" && j.Ingest != nil {
		for _, conn := range j.Connectors {
			if _, err := r.Add(cfg.Ingest, j.IngestJob(conn)); err != nil {
				errs = append(errs, fmt.Errorf("ingest %s:%s: %w", conn.SourceType(), conn.SourceName(), err))
			}
		}
	}
	if cfg.Aggregate != "" && j.Aggregate != nil {
		if _, err := r.Add(cfg.Aggregate, j.AggregateJob()); err != nil {
			errs = append(errs, fmt.Errorf("aggregate: %w", err))
		}
	}
	if cfg.RosterSync != "" && j.Roster != nil {
		if _, err := r.Add(cfg.RosterSync, j.RosterJob()); err != nil {
			errs = append(errs, fmt.Errorf("roster sync: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (j *Jobs) IngestJob(conn connector.Connector) func(context.Context) {
	key := service.IngestFeatureKey(conn.SourceType())
	return func(ctx context.Context) {
		if !j.enabled(ctx, key, true) {
			return
		}
		result, err := j.Ingest.RunSource(ctx, conn)
		if err != nil {
			j.warn("cron ingest failed", err, zap.String("source", result.Source), zap.Int("attempts", result.Attempts))
			return
		}
		j.info("cron ingest ok",
			zap.String("source", result.Source),
			zap.Int("threads", result.Threads),
			zap.Int("new_comments", result.NewComments),
			zap.Int("duplicates", result.Duplicates),
			zap.Int("mentions", result.Mentions),
		)
	}
}

func (j *Jobs) AggregateJob() func(context.Context) {
	return func(ctx context.Context) {
		if !j.enabled(ctx, service.FeatureAggregate, true) {
			return
		}
		results, err := j.Aggregate.RecomputeRecent(ctx)
		if err != nil {
			j.warn("cron aggregate failed", err)
			return
		}
		for _, res := range results {
			j.info("cron aggregate ok",
				zap.String("date", res.Date),
				zap.Int("players", res.Players),
				zap.Int("comments", res.Comments),
				zap.Int64("deleted", res.Deleted),
			)
		}
	}
}

func (j *Jobs) RosterJob() func(context.Context) {
	return func(ctx context.Context) {
		if !j.enabled(ctx, service.FeatureRosterSync, false) {
			return
		}
		result, err := j.Roster.Sync(ctx)
		if err != nil {
			j.warn("cron roster sync failed", err)
			return
		}
		j.info("cron roster sync ok",
			zap.Int("players", result.Players),
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
			zap.Int("aliases_added", result.AliasesAdded),
		)
	}
}

func (j *Jobs) enabled(ctx context.Context, key string, fallback bool) bool {
	if j.Flags == nil {
		return fallback
	}
	return j.Flags.IsEnabled(ctx, key, fallback)
}

func (j *Jobs) info(msg string, fields ...zap.Field) {
	if j.Logger != nil {
		j.Logger.Info(msg, fields...)
	}
}

func (j *Jobs) warn(msg string, err error, fields ...zap.Field) {
	if j.Logger != nil {
		j.Logger.Warn(msg, append(fields, zap.Error(err))...)
	}
}
