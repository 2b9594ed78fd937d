// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

// Package main is the entry point for the Watchdex server.
//
// Watchdex tracks, per viewer profile, the watch status of episodic
// content organized Show -> Season -> Episode. Status changes cascade:
// explicit sets push down the hierarchy, derived statuses bubble up,
// and new aired episodes demote fully watched seasons.
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered sources (defaults, YAML, env)
//  2. Database: DuckDB status store and catalog tables
//  3. Derived-data cache: in-memory TTL or Badger, per config
//  4. NATS publisher (optional): status.changed events over JetStream
//  5. Supervision tree: HTTP server and catalog sweeper under suture
//
// Graceful shutdown on SIGINT/SIGTERM: the HTTP server drains in-flight
// requests (10s timeout), then the cache, publisher and database close.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/watchdex/internal/api"
	"github.com/tomtom215/watchdex/internal/cache"
	"github.com/tomtom215/watchdex/internal/config"
	"github.com/tomtom215/watchdex/internal/database"
	"github.com/tomtom215/watchdex/internal/events"
	"github.com/tomtom215/watchdex/internal/logging"
	"github.com/tomtom215/watchdex/internal/supervisor"
	"github.com/tomtom215/watchdex/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("cache_backend", cfg.Cache.Backend).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Bool("sweeper_enabled", cfg.Sweeper.Enabled).
		Msg("Starting Watchdex")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	derivedCache, err := newCache(&cfg.Cache)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize cache")
	}
	defer func() {
		if err := derivedCache.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing cache")
		}
	}()

	publisher, err := events.NewNATSPublisher(&cfg.NATS)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing publisher")
		}
	}()

	service := tracker.NewService(db, derivedCache, publisher, cfg.Cache.TTL)
	handler := api.NewHandler(service, db)
	router := api.NewRouter(&cfg.Server, handler)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second))
	if cfg.Sweeper.Enabled {
		tree.AddBackgroundService(tracker.NewSweeper(db, service, cfg.Sweeper.Interval))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Serving")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited")
		os.Exit(1)
	}
	logging.Info().Msg("Shutdown complete")
}

// newCache selects the cache backend from configuration.
func newCache(cfg *config.CacheConfig) (cache.Cacher, error) {
	if cfg.Backend == "badger" {
		return cache.NewBadger(cfg.Path, cfg.TTL)
	}
	return cache.NewMemory(cfg.TTL), nil
}
