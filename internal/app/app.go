// Package app wires configuration into the pipeline services shared by the
// server and the command-line tool.
package app

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"fansapprove/internal/client/forum"
	"fansapprove/internal/client/reddit"
	"fansapprove/internal/client/wikidata"
	"fansapprove/internal/config"
	"fansapprove/internal/connector"
	"fansapprove/internal/db"
	"fansapprove/internal/ratelimit"
	gormrepository "fansapprove/internal/repository/gorm"
	"fansapprove/internal/roster"
	"fansapprove/internal/sentiment"
	"fansapprove/internal/service"
)

type App struct {
	DB         *db.DB
	Store      *gormrepository.Store
	Settings   *service.SystemSettingsService
	Connectors []connector.Connector
	Ingest     *service.IngestService
	Aggregate  *service.AggregationService
	Roster     *service.RosterSyncService
}

// Open connects to the database, migrates it and builds every service.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		_ = db.Close(dbConn)
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	a, err := Build(cfg, dbConn, logger)
	if err != nil {
		_ = db.Close(dbConn)
		return nil, err
	}
	if err := a.Settings.EnsureDefaultSwitches(ctx); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}
	return a, nil
}

// Build assembles the services on top of an open connection.
func Build(cfg config.Config, dbConn *db.DB, logger *zap.Logger) (*App, error) {
	var gdb *gorm.DB
	if dbConn != nil {
		gdb = dbConn.Gorm
	}
	a := &App{DB: dbConn, Store: gormrepository.New(gdb)}
	a.Settings = &service.SystemSettingsService{Repo: a.Store}
	a.Connectors = Connectors(cfg, logger)

	scorer := sentiment.NewVader()
	if cfg.Sentiment.ModelName != "" && cfg.Sentiment.ModelName != scorer.Model() {
		return nil, fmt.Errorf("unsupported sentiment model %q (available: %s)", cfg.Sentiment.ModelName, scorer.Model())
	}

	denylist, err := matchDenylist(cfg)
	if err != nil {
		return nil, err
	}

	a.Ingest = &service.IngestService{
		Repo:         a.Store,
		Scorer:       scorer,
		Logger:       logger,
		Connectors:   a.Connectors,
		Denylist:     denylist,
		Lookback:     cfg.Ingest.Lookback,
		MaxAttempts:  cfg.Ingest.MaxAttempts,
		RetryBackoff: cfg.Ingest.RetryBackoff,
	}
	a.Aggregate = &service.AggregationService{
		Repo:      a.Store,
		Logger:    logger,
		Config:    cfg.Aggregation,
		ModelName: scorer.Model(),
	}
	a.Roster = &service.RosterSyncService{
		Repo: a.Store,
		Fetcher: wikidata.NewClient(wikidata.Options{
			Endpoint:    cfg.Roster.Endpoint,
			UserAgent:   cfg.Roster.UserAgent,
			MaxAttempts: cfg.Roster.MaxAttempts,
			Timeout:     cfg.Roster.Timeout,
			Logger:      logger,
		}),
		Logger: logger,
		Fetch: wikidata.FetchOptions{
			PageSize:  cfg.Roster.PageSize,
			MaxRows:   cfg.Roster.MaxRows,
			PageSleep: cfg.Roster.PageSleep,
		},
		SnapshotPath: cfg.Roster.SnapshotPath,
		DenylistPath: cfg.Roster.DenylistPath,
		SeedPath:     cfg.Roster.SeedPath,
		ActiveOnly:   cfg.Roster.ActiveOnly,
	}
	return a, nil
}

// Connectors builds one guarded connector per configured subreddit and
// forum feed. Each source gets its own limiter and breaker.
func Connectors(cfg config.Config, logger *zap.Logger) []connector.Connector {
	breaker := connector.BreakerConfig{
		FailureThreshold: cfg.Ingest.BreakerTrips,
		Timeout:          cfg.Ingest.BreakerTimeout,
	}
	var out []connector.Connector
	if cfg.Reddit.Enabled {
		for _, sub := range cfg.Reddit.Subreddits {
			if sub == "" {
				continue
			}
			c := reddit.NewClient(reddit.Options{
				BaseURL:              cfg.Reddit.BaseURL,
				OAuthBaseURL:         cfg.Reddit.OAuthBaseURL,
				TokenURL:             cfg.Reddit.TokenURL,
				ClientID:             cfg.Reddit.ClientID,
				ClientSecret:         cfg.Reddit.ClientSecret,
				UserAgent:            cfg.Reddit.UserAgent,
				Subreddit:            sub,
				MaxThreads:           cfg.Reddit.MaxThreads,
				MaxCommentsPerThread: cfg.Reddit.MaxCommentsPerThread,
				Timeout:              cfg.Reddit.Timeout,
			}, ratelimit.New(cfg.Reddit.MinInterval))
			out = append(out, connector.Guard(c, breaker, logger))
		}
	}
	if cfg.Forum.Enabled {
		for _, feed := range cfg.Forum.Feeds {
			if feed.URL == "" {
				continue
			}
			c := forum.NewClient(forum.Options{
				FeedURL:    feed.URL,
				Name:       feed.Name,
				UserAgent:  cfg.Forum.UserAgent,
				MaxPages:   cfg.Forum.MaxPages,
				MaxThreads: cfg.Forum.MaxThreads,
				Timeout:    cfg.Forum.Timeout,
			}, ratelimit.New(cfg.Forum.MinInterval))
			out = append(out, connector.Guard(c, breaker, logger))
		}
	}
	return out
}

// matchDenylist merges the configured list with the alias denylist file.
func matchDenylist(cfg config.Config) ([]string, error) {
	fromFile, err := roster.LoadDenylist(cfg.Roster.DenylistPath)
	if err != nil {
		return nil, fmt.Errorf("load alias denylist: %w", err)
	}
	set := roster.DenylistSet(cfg.Match.Denylist)
	for k := range fromFile {
		set[k] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return db.Close(a.DB)
}
