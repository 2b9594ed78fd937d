// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	if cfg.Server.Port != 3858 {
		t.Errorf("expected default port 3858, got %d", cfg.Server.Port)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("expected default cache backend memory, got %q", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("expected default cache TTL 5m, got %s", cfg.Cache.TTL)
	}
	if cfg.NATS.Enabled {
		t.Error("expected NATS disabled by default")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("WATCHDEX_SERVER_PORT", "9000")
	t.Setenv("WATCHDEX_LOGGING_LEVEL", "debug")
	t.Setenv("WATCHDEX_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected env-overridden port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env-overridden level debug, got %q", cfg.Logging.Level)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != "https://a.example" {
		t.Errorf("expected comma-split CORS origins, got %v", cfg.Server.CORSOrigins)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"WATCHDEX_SERVER_PORT", "server.port"},
		{"WATCHDEX_SERVER_RATE_LIMIT_REQS", "server.rate_limit_reqs"},
		{"WATCHDEX_CACHE_TTL", "cache.ttl"},
		{"WATCHDEX_NATS_URL", "nats.url"},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "redis" }},
		{"badger without path", func(c *Config) { c.Cache.Backend = "badger"; c.Cache.Path = "" }},
		{"zero cache ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"nats enabled without url", func(c *Config) { c.NATS.Enabled = true; c.NATS.URL = "" }},
		{"sweeper interval too small", func(c *Config) { c.Sweeper.Interval = time.Millisecond }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
