package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsEnvOnly(t *testing.T) {
	t.Setenv("FA_DB_DSN", "postgres://localhost/fans")
	t.Setenv("FA_REDDIT_MAX_THREADS", "5")
	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DB.DSN != "postgres://localhost/fans" {
		t.Fatalf("dsn=%q", cfg.DB.DSN)
	}
	if cfg.Reddit.MaxThreads != 5 {
		t.Fatalf("max_threads=%d want=5", cfg.Reddit.MaxThreads)
	}
	if cfg.Aggregation.WeightMin != 1 || cfg.Aggregation.WeightMax != 20 {
		t.Fatalf("clamp=%v..%v", cfg.Aggregation.WeightMin, cfg.Aggregation.WeightMax)
	}
	if cfg.Aggregation.PositiveThreshold != 0.05 || cfg.Aggregation.NegativeThreshold != -0.05 {
		t.Fatalf("thresholds=%v/%v", cfg.Aggregation.PositiveThreshold, cfg.Aggregation.NegativeThreshold)
	}
	if cfg.Ingest.Lookback != 24*time.Hour || cfg.Reddit.MinInterval != time.Second {
		t.Fatalf("lookback=%v interval=%v", cfg.Ingest.Lookback, cfg.Reddit.MinInterval)
	}
	if len(cfg.Match.Denylist) != 1 || cfg.Match.Denylist[0] != "king" {
		t.Fatalf("denylist=%v", cfg.Match.Denylist)
	}
	if cfg.Sentiment.ModelName != "vader" {
		t.Fatalf("model=%s", cfg.Sentiment.ModelName)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  http_addr: ":9090"
aggregation:
  weight_max: 50
forum:
  enabled: true
  feeds:
    - name: clutchfans-rockets
      url: https://bbs.clutchfans.net/forums/the-game/index.rss
reddit:
  subreddits: [rockets, nba]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":9090" || cfg.Aggregation.WeightMax != 50 {
		t.Fatalf("addr=%s weight_max=%v", cfg.Server.HTTPAddr, cfg.Aggregation.WeightMax)
	}
	if !cfg.Forum.Enabled || len(cfg.Forum.Feeds) != 1 || cfg.Forum.Feeds[0].Name != "clutchfans-rockets" {
		t.Fatalf("forum=%+v", cfg.Forum)
	}
	if len(cfg.Reddit.Subreddits) != 2 || cfg.Reddit.Subreddits[0] != "rockets" {
		t.Fatalf("subreddits=%v", cfg.Reddit.Subreddits)
	}
	if cfg.Aggregation.WeightMin != 1 {
		t.Fatalf("weight_min default lost: %v", cfg.Aggregation.WeightMin)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
