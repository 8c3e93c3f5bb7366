package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Cron        CronConfig        `mapstructure:"cron"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Match       MatchConfig       `mapstructure:"match"`
	Sentiment   SentimentConfig   `mapstructure:"sentiment"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	Ingest      IngestConfig      `mapstructure:"ingest"`
	Reddit      RedditConfig      `mapstructure:"reddit"`
	Forum       ForumConfig       `mapstructure:"forum"`
	Roster      RosterConfig      `mapstructure:"roster"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Ingest     string `mapstructure:"ingest"`
	Aggregate  string `mapstructure:"aggregate"`
	RosterSync string `mapstructure:"roster_sync"`
}

type AdminConfig struct {
	Token string `mapstructure:"token"`
}

// MatchConfig holds the global alias denylist. The list applies to every
// player; a per-player exclusion list is not supported.
type MatchConfig struct {
	Denylist []string `mapstructure:"denylist"`
}

type SentimentConfig struct {
	ModelName string `mapstructure:"model_name"`
}

type AggregationConfig struct {
	WeightMin         float64 `mapstructure:"weight_min"`
	WeightMax         float64 `mapstructure:"weight_max"`
	PositiveThreshold float64 `mapstructure:"positive_threshold"`
	NegativeThreshold float64 `mapstructure:"negative_threshold"`
	TopTerms          int     `mapstructure:"top_terms"`
	MinTermLength     int     `mapstructure:"min_term_length"`
	BackfillDays      int     `mapstructure:"backfill_days"`
}

type IngestConfig struct {
	Lookback       time.Duration `mapstructure:"lookback"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`
	BreakerTrips   uint32        `mapstructure:"breaker_trips"`
}

type RedditConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	BaseURL              string        `mapstructure:"base_url"`
	OAuthBaseURL         string        `mapstructure:"oauth_base_url"`
	TokenURL             string        `mapstructure:"token_url"`
	ClientID             string        `mapstructure:"client_id"`
	ClientSecret         string        `mapstructure:"client_secret"`
	UserAgent            string        `mapstructure:"user_agent"`
	Subreddits           []string      `mapstructure:"subreddits"`
	MaxThreads           int           `mapstructure:"max_threads"`
	MaxCommentsPerThread int           `mapstructure:"max_comments_per_thread"`
	MinInterval          time.Duration `mapstructure:"min_interval"`
	Timeout              time.Duration `mapstructure:"timeout"`
}

type ForumConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Feeds       []ForumFeed   `mapstructure:"feeds"`
	UserAgent   string        `mapstructure:"user_agent"`
	MaxPages    int           `mapstructure:"max_pages"`
	MaxThreads  int           `mapstructure:"max_threads"`
	MinInterval time.Duration `mapstructure:"min_interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type ForumFeed struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type RosterConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	UserAgent    string        `mapstructure:"user_agent"`
	PageSize     int           `mapstructure:"page_size"`
	MaxRows      int           `mapstructure:"max_rows"`
	PageSleep    time.Duration `mapstructure:"page_sleep"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SnapshotPath string        `mapstructure:"snapshot_path"`
	DenylistPath string        `mapstructure:"denylist_path"`
	SeedPath     string        `mapstructure:"seed_path"`
	ActiveOnly   bool          `mapstructure:"active_only"`
}

func Load(path string, envOnly bool) (Config, error) {
	// .env is optional; values already exported in the environment win.
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	v := viper.New()
	v.SetEnvPrefix("FA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.name", "fansapprove-pipeline")
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.ingest", "0 */15 * * * *")
	v.SetDefault("cron.aggregate", "0 10 * * * *")
	v.SetDefault("cron.roster_sync", "0 0 6 * * *")
	v.SetDefault("admin.token", "")

	v.SetDefault("match.denylist", []string{"king"})
	v.SetDefault("sentiment.model_name", "vader")

	v.SetDefault("aggregation.weight_min", 1.0)
	v.SetDefault("aggregation.weight_max", 20.0)
	v.SetDefault("aggregation.positive_threshold", 0.05)
	v.SetDefault("aggregation.negative_threshold", -0.05)
	v.SetDefault("aggregation.top_terms", 10)
	v.SetDefault("aggregation.min_term_length", 5)
	v.SetDefault("aggregation.backfill_days", 1)

	v.SetDefault("ingest.lookback", "24h")
	v.SetDefault("ingest.max_attempts", 3)
	v.SetDefault("ingest.retry_backoff", "2s")
	v.SetDefault("ingest.breaker_timeout", "5m")
	v.SetDefault("ingest.breaker_trips", 5)

	v.SetDefault("reddit.enabled", true)
	v.SetDefault("reddit.base_url", "https://www.reddit.com")
	v.SetDefault("reddit.oauth_base_url", "https://oauth.reddit.com")
	v.SetDefault("reddit.token_url", "https://www.reddit.com/api/v1/access_token")
	v.SetDefault("reddit.client_id", "")
	v.SetDefault("reddit.client_secret", "")
	v.SetDefault("reddit.user_agent", "fansapprove-pipeline/0.1")
	v.SetDefault("reddit.subreddits", []string{"nba"})
	v.SetDefault("reddit.max_threads", 20)
	v.SetDefault("reddit.max_comments_per_thread", 100)
	v.SetDefault("reddit.min_interval", "1s")
	v.SetDefault("reddit.timeout", "20s")

	v.SetDefault("forum.enabled", false)
	v.SetDefault("forum.user_agent", "fansapprove-pipeline/0.1")
	v.SetDefault("forum.max_pages", 5)
	v.SetDefault("forum.max_threads", 25)
	v.SetDefault("forum.min_interval", "2s")
	v.SetDefault("forum.timeout", "20s")

	v.SetDefault("roster.endpoint", "https://query.wikidata.org/sparql")
	v.SetDefault("roster.user_agent", "fansapprove-pipeline/0.1 (roster sync)")
	v.SetDefault("roster.page_size", 500)
	v.SetDefault("roster.max_rows", 20000)
	v.SetDefault("roster.page_sleep", "1s")
	v.SetDefault("roster.max_attempts", 3)
	v.SetDefault("roster.timeout", "60s")
	v.SetDefault("roster.snapshot_path", "data/nba_players.json")
	v.SetDefault("roster.denylist_path", "data/alias_denylist.txt")
	v.SetDefault("roster.seed_path", "data/players_seed.json")
	v.SetDefault("roster.active_only", false)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
