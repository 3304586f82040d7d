// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

// Package config defines the application configuration and its layered
// loading (defaults, optional YAML file, environment variables).
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Freshness FreshnessConfig `koanf:"freshness"`
	Queue     QueueConfig     `koanf:"queue"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Sources   SourcesConfig   `koanf:"sources"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig configures the SQLite entity store.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// FreshnessConfig configures the freshness evaluator and pass schedule.
type FreshnessConfig struct {
	// Interval between automatic freshness passes.
	Interval time.Duration `koanf:"interval"`
	// Per-pass batch caps keep a staleness storm from flooding the queue.
	ArtistBatchSize int `koanf:"artist_batch_size"`
	ShowBatchSize   int `koanf:"show_batch_size"`
	VenueBatchSize  int `koanf:"venue_batch_size"`
	// ReportTTL is how long the last pass report is served from cache.
	ReportTTL time.Duration `koanf:"report_ttl"`
}

// QueueConfig configures the priority queue and executor workers.
type QueueConfig struct {
	Workers           int           `koanf:"workers"`
	MaxAttempts       int           `koanf:"max_attempts"`
	RetryBackoff      time.Duration `koanf:"retry_backoff"`
	PromotionInterval time.Duration `koanf:"promotion_interval"`
}

// RateLimitConfig configures the fixed-window limiter for upstream calls.
type RateLimitConfig struct {
	TicketingPerMinute int `koanf:"ticketing_per_minute"`
	MusicMetaPerMinute int `koanf:"musicmeta_per_minute"`
	SetlistsPerMinute  int `koanf:"setlists_per_minute"`
	// WindowJitter spreads the window reset boundary by a small random
	// offset to avoid thundering herds. Off by default so observable
	// throttling matches the documented fixed-window behavior.
	WindowJitter bool `koanf:"window_jitter"`
	// WaitInterval is how long a denied caller sleeps before rechecking.
	WaitInterval time.Duration `koanf:"wait_interval"`
	// WaitAttempts bounds rechecks before the job's own retry path takes over.
	WaitAttempts int `koanf:"wait_attempts"`
}

// SourcesConfig configures the upstream fetch clients.
type SourcesConfig struct {
	FetchTimeout time.Duration   `koanf:"fetch_timeout"`
	Ticketing    TicketingConfig `koanf:"ticketing"`
	MusicMeta    MusicMetaConfig `koanf:"musicmeta"`
	Setlists     SetlistsConfig  `koanf:"setlists"`
}

// TicketingConfig configures the events/attractions catalog client.
type TicketingConfig struct {
	URL    string `koanf:"url"`
	APIKey string `koanf:"api_key"`
}

// MusicMetaConfig configures the artist metadata catalog client.
// Authentication is OAuth client-credentials; the client refreshes its
// token transparently.
type MusicMetaConfig struct {
	URL          string `koanf:"url"`
	TokenURL     string `koanf:"token_url"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	// RequestsPerSecond paces outbound calls client-side, under the
	// coarser fixed-window budget.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// SetlistsConfig configures the setlist archive client.
type SetlistsConfig struct {
	URL    string `koanf:"url"`
	APIKey string `koanf:"api_key"`
}

// SecurityConfig configures API authentication and HTTP-side rate limiting.
type SecurityConfig struct {
	// APIToken is the shared-secret bearer token for the trigger endpoints.
	APIToken        string        `koanf:"api_token"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values that would break the engine
// at runtime. It returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Freshness.Interval <= 0 {
		return fmt.Errorf("freshness.interval must be positive, got %s", c.Freshness.Interval)
	}
	if c.Freshness.ArtistBatchSize <= 0 || c.Freshness.ShowBatchSize <= 0 || c.Freshness.VenueBatchSize <= 0 {
		return fmt.Errorf("freshness batch sizes must be positive")
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("queue.workers must be positive, got %d", c.Queue.Workers)
	}
	if c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue.max_attempts must be positive, got %d", c.Queue.MaxAttempts)
	}
	if c.Queue.RetryBackoff <= 0 {
		return fmt.Errorf("queue.retry_backoff must be positive, got %s", c.Queue.RetryBackoff)
	}
	if c.Sources.FetchTimeout <= 0 {
		return fmt.Errorf("sources.fetch_timeout must be positive, got %s", c.Sources.FetchTimeout)
	}
	if c.Security.APIToken == "" {
		return fmt.Errorf("security.api_token must be set")
	}
	return nil
}
