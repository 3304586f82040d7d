// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.APIToken = "token"
	return cfg
}

func TestDefaultConfigValidatesWithToken(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("defaults plus a token should validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"empty db path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"zero interval", func(c *Config) { c.Freshness.Interval = 0 }, "freshness.interval"},
		{"zero batch", func(c *Config) { c.Freshness.ShowBatchSize = 0 }, "batch sizes"},
		{"zero workers", func(c *Config) { c.Queue.Workers = 0 }, "queue.workers"},
		{"zero attempts", func(c *Config) { c.Queue.MaxAttempts = 0 }, "queue.max_attempts"},
		{"zero backoff", func(c *Config) { c.Queue.RetryBackoff = 0 }, "queue.retry_backoff"},
		{"zero fetch timeout", func(c *Config) { c.Sources.FetchTimeout = 0 }, "fetch_timeout"},
		{"missing token", func(c *Config) { c.Security.APIToken = "" }, "api_token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation failure")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	cases := []struct {
		env  string
		want string
	}{
		{"SERVER_PORT", "server.port"},
		{"DATABASE_PATH", "database.path"},
		{"FRESHNESS_ARTIST_BATCH_SIZE", "freshness.artist_batch_size"},
		{"QUEUE_MAX_ATTEMPTS", "queue.max_attempts"},
		{"RATE_LIMIT_WINDOW_JITTER", "rate_limit.window_jitter"},
		{"SOURCES_TICKETING_API_KEY", "sources.ticketing.api_key"},
		{"SOURCES_MUSICMETA_CLIENT_SECRET", "sources.musicmeta.client_secret"},
		{"SOURCES_SETLISTS_URL", "sources.setlists.url"},
		{"SOURCES_FETCH_TIMEOUT", "sources.fetch_timeout"},
		{"SECURITY_API_TOKEN", "security.api_token"},
		{"LOG_LEVEL", "logging.level"},
		// Unrelated process env must not leak into config.
		{"PATH", ""},
		{"HOME", ""},
		{"GOPROXY", ""},
	}
	for _, tc := range cases {
		if got := envTransformFunc(tc.env); got != tc.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tc.env, got, tc.want)
		}
	}
}
