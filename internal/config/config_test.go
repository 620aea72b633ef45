package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8001, cfg.Server.Port)
	require.Equal(t, "http", cfg.Scraper.Provider)
	require.Equal(t, 10, cfg.Scraper.IntervalSeconds)
	require.Equal(t, 1000, cfg.Store.Capacity)
	require.Equal(t, 2, cfg.Session.BlockThreshold)
	require.NotEmpty(t, cfg.Session.UserAgents)
	require.NotEmpty(t, cfg.Session.BlockMarkers)
	require.Equal(t, "memory", cfg.Dedup.Provider)
	require.Equal(t, "none", cfg.Snapshot.Provider)
	require.Equal(t, "none", cfg.Publish.Provider)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"missing url", func(c *Config) { c.Scraper.URL = "" }},
		{"unknown provider", func(c *Config) { c.Scraper.Provider = "ftp" }},
		{"empty page range", func(c *Config) { c.Scraper.PageEnd = 0 }},
		{"zero block threshold", func(c *Config) { c.Session.BlockThreshold = 0 }},
		{"inverted delay bounds", func(c *Config) { c.Session.DelayMaxMs = c.Session.DelayMinMs - 1 }},
		{"initial delay out of bounds", func(c *Config) { c.Session.DelayInitialMs = c.Session.DelayMaxMs + 1 }},
		{"no user agents", func(c *Config) { c.Session.UserAgents = nil }},
		{"redis without url", func(c *Config) { c.Dedup.Provider = "redis" }},
		{"local snapshot without dir", func(c *Config) { c.Snapshot.Provider = "local" }},
		{"archive without dsn", func(c *Config) { c.Archive.Enabled = true }},
		{"pubsub without topic", func(c *Config) { c.Publish.Provider = "pubsub" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
