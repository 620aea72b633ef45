// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Session  SessionConfig  `mapstructure:"session"`
	Store    StoreConfig    `mapstructure:"store"`
	Dedup    DedupConfig    `mapstructure:"dedup"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Publish  PublishConfig  `mapstructure:"publish"`
	Hub      HubConfig      `mapstructure:"hub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ScraperConfig governs the monitor loop and the fetcher.
type ScraperConfig struct {
	URL             string `mapstructure:"url"`
	Provider        string `mapstructure:"provider"` // static | http | headless
	IntervalSeconds int    `mapstructure:"interval_seconds"`
	PageStart       int    `mapstructure:"page_start"`
	PageEnd         int    `mapstructure:"page_end"`
	MaxItemsPerPage int    `mapstructure:"max_items_per_page"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	NavTimeoutSec   int    `mapstructure:"nav_timeout_seconds"`
	StatsEveryCycle int    `mapstructure:"stats_every_cycles"`
	FixtureDir      string `mapstructure:"fixture_dir"`
}

// SessionConfig tunes identity rotation and adaptive pacing. The observed
// marketplace thresholds vary, so every value is configurable.
type SessionConfig struct {
	MaxRequests      int      `mapstructure:"max_requests"`
	BlockThreshold   int      `mapstructure:"block_threshold"`
	RecoverySeconds  int      `mapstructure:"recovery_seconds"`
	RecoveryJitterMs int      `mapstructure:"recovery_jitter_ms"`
	DelayInitialMs   int      `mapstructure:"delay_initial_ms"`
	DelayMinMs       int      `mapstructure:"delay_min_ms"`
	DelayMaxMs       int      `mapstructure:"delay_max_ms"`
	UserAgents       []string `mapstructure:"user_agents"`
	BlockMarkers     []string `mapstructure:"block_markers"`
}

// StoreConfig bounds the in-memory listing store.
type StoreConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// DedupConfig selects the seen-id set backing.
type DedupConfig struct {
	Provider string `mapstructure:"provider"` // memory | redis
	RedisURL string `mapstructure:"redis_url"`
}

// SnapshotConfig controls raw page dumps for debugging/reprocessing.
type SnapshotConfig struct {
	Provider  string `mapstructure:"provider"` // none | local | gcs
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// ArchiveConfig controls the optional Postgres listing archive.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
	Table   string `mapstructure:"table"`
}

// PublishConfig controls the optional external new-listing publisher.
type PublishConfig struct {
	Provider  string `mapstructure:"provider"` // none | memory | pubsub
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// HubConfig sizes per-client broadcast buffers.
type HubConfig struct {
	ClientBuffer int `mapstructure:"client_buffer"`
}

// Load builds a Config from disk and environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUTOTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8001)
	v.SetDefault("logging.development", true)

	v.SetDefault("scraper.url", "https://www.leboncoin.fr/voitures/offres")
	v.SetDefault("scraper.provider", "http")
	v.SetDefault("scraper.interval_seconds", 10)
	v.SetDefault("scraper.page_start", 1)
	v.SetDefault("scraper.page_end", 1)
	v.SetDefault("scraper.max_items_per_page", 20)
	v.SetDefault("scraper.timeout_seconds", 15)
	v.SetDefault("scraper.nav_timeout_seconds", 25)
	v.SetDefault("scraper.stats_every_cycles", 10)

	v.SetDefault("session.max_requests", 50)
	v.SetDefault("session.block_threshold", 2)
	v.SetDefault("session.recovery_seconds", 30)
	v.SetDefault("session.recovery_jitter_ms", 5000)
	v.SetDefault("session.delay_initial_ms", 2000)
	v.SetDefault("session.delay_min_ms", 500)
	v.SetDefault("session.delay_max_ms", 60000)
	v.SetDefault("session.user_agents", defaultUserAgents)
	v.SetDefault("session.block_markers", defaultBlockMarkers)

	v.SetDefault("store.capacity", 1000)
	v.SetDefault("dedup.provider", "memory")
	v.SetDefault("snapshot.provider", "none")
	v.SetDefault("snapshot.prefix", "pages")
	v.SetDefault("archive.table", "listings")
	v.SetDefault("publish.provider", "none")
	v.SetDefault("hub.client_buffer", 32)
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0",
}

var defaultBlockMarkers = []string{
	"captcha",
	"datadome",
	"vous êtes humain",
	"verification required",
	"access denied",
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.URL == "" {
		return fmt.Errorf("scraper.url must be set")
	}
	switch c.Scraper.Provider {
	case "http", "headless":
	case "static":
		if c.Scraper.FixtureDir == "" {
			return fmt.Errorf("scraper.fixture_dir must be set when scraper.provider is static")
		}
	default:
		return fmt.Errorf("unknown scraper.provider %q", c.Scraper.Provider)
	}
	if c.Scraper.IntervalSeconds <= 0 {
		return fmt.Errorf("scraper.interval_seconds must be > 0")
	}
	if c.Scraper.PageStart <= 0 || c.Scraper.PageEnd < c.Scraper.PageStart {
		return fmt.Errorf("scraper.page_start/page_end must describe a non-empty range")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if c.Session.BlockThreshold <= 0 {
		return fmt.Errorf("session.block_threshold must be > 0")
	}
	if c.Session.MaxRequests <= 0 {
		return fmt.Errorf("session.max_requests must be > 0")
	}
	if c.Session.DelayMinMs <= 0 || c.Session.DelayMaxMs < c.Session.DelayMinMs {
		return fmt.Errorf("session delay bounds must satisfy 0 < min <= max")
	}
	if c.Session.DelayInitialMs < c.Session.DelayMinMs || c.Session.DelayInitialMs > c.Session.DelayMaxMs {
		return fmt.Errorf("session.delay_initial_ms must lie within [min, max]")
	}
	if len(c.Session.UserAgents) == 0 {
		return fmt.Errorf("session.user_agents must include at least one entry")
	}
	if c.Store.Capacity <= 0 {
		return fmt.Errorf("store.capacity must be > 0")
	}
	switch c.Dedup.Provider {
	case "memory":
	case "redis":
		if c.Dedup.RedisURL == "" {
			return fmt.Errorf("dedup.redis_url must be set when dedup.provider is redis")
		}
	default:
		return fmt.Errorf("unknown dedup.provider %q", c.Dedup.Provider)
	}
	switch c.Snapshot.Provider {
	case "none":
	case "local":
		if c.Snapshot.BaseDir == "" {
			return fmt.Errorf("snapshot.base_dir must be set when snapshot.provider is local")
		}
	case "gcs":
		if c.Snapshot.GCSBucket == "" {
			return fmt.Errorf("snapshot.gcs_bucket must be set when snapshot.provider is gcs")
		}
	default:
		return fmt.Errorf("unknown snapshot.provider %q", c.Snapshot.Provider)
	}
	if c.Archive.Enabled && c.Archive.DSN == "" {
		return fmt.Errorf("archive.dsn must be set when archive is enabled")
	}
	switch c.Publish.Provider {
	case "none", "memory":
	case "pubsub":
		if c.Publish.ProjectID == "" || c.Publish.Topic == "" {
			return fmt.Errorf("publish.project_id and publish.topic must be set for pubsub")
		}
	default:
		return fmt.Errorf("unknown publish.provider %q", c.Publish.Provider)
	}
	if c.Hub.ClientBuffer <= 0 {
		return fmt.Errorf("hub.client_buffer must be > 0")
	}
	return nil
}

// Interval returns the scheduler tick as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Scraper.IntervalSeconds) * time.Second
}

// FetchTimeout returns the per-request fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}
