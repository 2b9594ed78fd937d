// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

package tracker

import (
	"context"
	"time"

	"github.com/tomtom215/watchdex/internal/database"
	"github.com/tomtom215/watchdex/internal/logging"
	"github.com/tomtom215/watchdex/internal/metrics"
)

// Sweeper periodically scans for tracked WATCHED seasons that gained
// aired episodes without status rows and runs the new-content reaction
// for each. It runs as a supervised service.
type Sweeper struct {
	db       *database.DB
	service  *Service
	interval time.Duration
}

func NewSweeper(db *database.DB, service *Service, interval time.Duration) *Sweeper {
	return &Sweeper{db: db, service: service, interval: interval}
}

// Serve runs the sweep loop until the context is canceled. Implements
// suture.Service.
func (s *Sweeper) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", s.interval).Msg("catalog sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("catalog sweeper stopping")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one pass. Per-season failures are logged and the pass
// continues; a broken season must not starve the rest.
func (s *Sweeper) sweep(ctx context.Context) {
	metrics.SweeperRuns.Inc()

	refs, err := s.db.WatchedSeasonsWithNewEpisodes(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("sweeper scan failed")
		return
	}
	if len(refs) == 0 {
		return
	}

	var demoted int
	for _, ref := range refs {
		result, err := s.service.ReactToNewEpisodes(ctx, ref.ProfileID, ref.SeasonID)
		if err != nil {
			logging.Error().Err(err).
				Int64("profile_id", ref.ProfileID).
				Int64("season_id", ref.SeasonID).
				Msg("new-episode reaction failed")
			continue
		}
		if result.AffectedRows > 0 {
			demoted++
		}
	}

	metrics.SweeperDemotions.Add(float64(demoted))
	logging.Info().
		Int("candidates", len(refs)).
		Int("demoted", demoted).
		Msg("sweep completed")
}

func (s *Sweeper) String() string { return "catalog-sweeper" }
