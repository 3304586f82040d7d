// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/mysetlist/config.yaml",
	"/etc/mysetlist/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. These are
// layered first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8090,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "/data/mysetlist.db",
		},
		Freshness: FreshnessConfig{
			Interval:        15 * time.Minute,
			ArtistBatchSize: 100,
			ShowBatchSize:   50,
			VenueBatchSize:  30,
			ReportTTL:       5 * time.Minute,
		},
		Queue: QueueConfig{
			Workers:           4,
			MaxAttempts:       4,
			RetryBackoff:      2 * time.Second,
			PromotionInterval: time.Second,
		},
		RateLimit: RateLimitConfig{
			TicketingPerMinute: 60,
			MusicMetaPerMinute: 90,
			SetlistsPerMinute:  30,
			WindowJitter:       false,
			WaitInterval:       time.Second,
			WaitAttempts:       5,
		},
		Sources: SourcesConfig{
			FetchTimeout: 8 * time.Second,
			Ticketing: TicketingConfig{
				URL: "https://app.ticketmaster.com/discovery/v2",
			},
			MusicMeta: MusicMetaConfig{
				URL:               "https://api.spotify.com/v1",
				TokenURL:          "https://accounts.spotify.com/api/token",
				RequestsPerSecond: 5,
			},
			Setlists: SetlistsConfig{
				URL: "https://api.setlist.fm/rest/1.0",
			},
		},
		Security: SecurityConfig{
			APIToken:        "",
			RateLimitReqs:   60,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
//
// Precedence is ENV > file > defaults. Environment variable names map to
// koanf paths by lowercasing and splitting on the first underscore group:
//
//	SERVER_PORT          -> server.port
//	SOURCES_MUSICMETA_CLIENT_ID -> sources.musicmeta.client_id
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the first file found, or empty string if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envPrefixes maps the leading segment of an environment variable to its
// koanf section. Variables without a known prefix are ignored so unrelated
// process env vars cannot leak into the configuration.
var envPrefixes = map[string]string{
	"SERVER":     "server",
	"DATABASE":   "database",
	"FRESHNESS":  "freshness",
	"QUEUE":      "queue",
	"RATE_LIMIT": "rate_limit",
	"SOURCES":    "sources",
	"SECURITY":   "security",
	"LOG":        "logging",
}

// subSections are nested config groups under sources.
var subSections = map[string]bool{
	"ticketing": true,
	"musicmeta": true,
	"setlists":  true,
}

// envTransformFunc transforms environment variable names to koanf paths.
//
//	SERVER_PORT                  -> server.port
//	RATE_LIMIT_WINDOW_JITTER     -> rate_limit.window_jitter
//	SOURCES_TICKETING_API_KEY    -> sources.ticketing.api_key
//	LOG_LEVEL                    -> logging.level
func envTransformFunc(key string) string {
	for prefix, section := range envPrefixes {
		if !strings.HasPrefix(key, prefix+"_") {
			continue
		}
		rest := strings.ToLower(strings.TrimPrefix(key, prefix+"_"))

		// One more level of nesting for per-source settings.
		if section == "sources" {
			if idx := strings.Index(rest, "_"); idx > 0 && subSections[rest[:idx]] {
				return section + "." + rest[:idx] + "." + rest[idx+1:]
			}
		}
		return section + "." + rest
	}
	return "" // unknown prefix: drop
}
