package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fansapprove/internal/app"
	"fansapprove/internal/config"
	cronrunner "fansapprove/internal/cron"
	"fansapprove/internal/handler"
	"fansapprove/internal/logger"
)

func main() {
	cfgPath := os.Getenv("FA_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("FA_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log, cfg.App.Name)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("pipeline init failed", zap.Error(err))
	}
	defer pipeline.Close()

	logger.Info("pipeline ready",
		zap.Strings("sources", pipeline.Ingest.SourceNames()),
		zap.String("model", pipeline.Aggregate.ModelName),
	)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(handler.RequireAdminToken(cfg.Admin.Token))
	if cfg.Admin.Token == "" {
		logger.Warn("admin token not set, admin routes are open")
	}

	healthHandler := &handler.HealthHandler{DB: pipeline.DB.Gorm}
	healthHandler.Register(engine)
	playersHandler := &handler.PlayersHandler{Repo: pipeline.Store, Logger: logger}
	playersHandler.Register(engine)
	sourcesHandler := &handler.SourcesHandler{Repo: pipeline.Store, Connectors: pipeline.Connectors}
	sourcesHandler.Register(engine)
	adminHandler := &handler.AdminHandler{
		Repo:      pipeline.Store,
		Ingest:    pipeline.Ingest,
		Aggregate: pipeline.Aggregate,
		Roster:    pipeline.Roster,
		Logger:    logger,
	}
	adminHandler.Register(engine)
	settingsHandler := &handler.SettingsHandler{Repo: pipeline.Store, Settings: pipeline.Settings}
	settingsHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		jobs := &cronrunner.Jobs{
			Flags:      pipeline.Settings,
			Ingest:     pipeline.Ingest,
			Connectors: pipeline.Connectors,
			Aggregate:  pipeline.Aggregate,
			Roster:     pipeline.Roster,
			Logger:     logger,
		}
		if err := jobs.Register(cronRunner, cfg.Cron); err != nil {
			logger.Warn("cron register failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
