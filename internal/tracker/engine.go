// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

// Package tracker implements the watch-status engine: top-down force
// sets, bottom-up status derivation and the service facade that ties
// the two to transactions, caching and event publishing.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/watchdex/internal/database"
	"github.com/tomtom215/watchdex/internal/metrics"
	"github.com/tomtom215/watchdex/internal/models"
)

// DeriveShowStatus computes a show's status from its season tally.
// First matching rule wins. Rules 4 and 5 are ordered so an
// all-NOT_WATCHED season set derives NOT_WATCHED, not WATCHING.
func DeriveShowStatus(t models.SeasonTally, hasUnairedSeasons bool) models.Status {
	derived := func() models.Status {
		switch {
		case t.Total == 0:
			return models.StatusNotWatched
		case t.Watched == t.Total:
			return models.StatusWatched
		case t.UpToDate > 0:
			return models.StatusUpToDate
		case t.Watched == 0 && t.Watching == 0:
			return models.StatusNotWatched
		default:
			return models.StatusWatching
		}
	}()

	// Fully watched but the catalog promises more: caught up, not done.
	if derived == models.StatusWatched && hasUnairedSeasons {
		return models.StatusUpToDate
	}
	return derived
}

// DeriveSeasonStatus computes a season's status from its episode tally.
// Only aired episodes decide between WATCHED and WATCHING; a season
// with no aired episodes is UNAIRED regardless of stored rows.
func DeriveSeasonStatus(t database.EpisodeTally) models.Status {
	switch {
	case t.AiredTotal == 0:
		return models.StatusUnaired
	case t.WatchedAired == t.AiredTotal:
		return models.StatusWatched
	case t.Watched > 0:
		return models.StatusWatching
	default:
		return models.StatusNotWatched
	}
}

// Engine runs cascade operations against the status store. Every method
// expects to be called inside a transaction owned by the caller.
type Engine struct {
	db *database.DB
}

func NewEngine(db *database.DB) *Engine {
	return &Engine{db: db}
}

// RecomputeShow rederives and stores the show's status from its current
// season tally. Returns the node ref when the stored value changed.
func (e *Engine) RecomputeShow(ctx context.Context, tx database.Queryer, profileID, showID int64) ([]models.NodeRef, error) {
	defer func(start time.Time) {
		metrics.CascadeDuration.WithLabelValues("recompute_show").Observe(time.Since(start).Seconds())
	}(time.Now())

	tally, err := e.db.SeasonTally(ctx, tx, profileID, showID)
	if err != nil {
		return nil, fmt.Errorf("season tally for show %d: %w", showID, err)
	}
	hasUnaired, err := e.db.HasUnairedSeasons(ctx, tx, profileID, showID)
	if err != nil {
		return nil, fmt.Errorf("unaired seasons for show %d: %w", showID, err)
	}

	derived := DeriveShowStatus(tally, hasUnaired)

	current, tracked, err := e.db.GetStatus(ctx, tx, models.LevelShow, profileID, showID)
	if err != nil {
		return nil, err
	}
	if !tracked || current == derived {
		return nil, nil
	}

	if _, err := e.db.UpdateStatus(ctx, tx, models.LevelShow, profileID, showID, derived); err != nil {
		return nil, fmt.Errorf("store derived show status: %w", err)
	}
	return []models.NodeRef{{Level: models.LevelShow, ID: showID}}, nil
}

// RecomputeSeason rederives the season from its episode tally, stores
// the result when it changed, then rederives the owning show.
func (e *Engine) RecomputeSeason(ctx context.Context, tx database.Queryer, profileID, seasonID int64) ([]models.NodeRef, error) {
	defer func(start time.Time) {
		metrics.CascadeDuration.WithLabelValues("recompute_season").Observe(time.Since(start).Seconds())
	}(time.Now())

	tally, err := e.db.EpisodeTallyForSeason(ctx, tx, profileID, seasonID)
	if err != nil {
		return nil, fmt.Errorf("episode tally for season %d: %w", seasonID, err)
	}

	var changed []models.NodeRef

	current, tracked, err := e.db.GetStatus(ctx, tx, models.LevelSeason, profileID, seasonID)
	if err != nil {
		return nil, err
	}
	if tracked {
		derived := DeriveSeasonStatus(tally)
		if current != derived {
			if _, err := e.db.UpdateStatus(ctx, tx, models.LevelSeason, profileID, seasonID, derived); err != nil {
				return nil, fmt.Errorf("store derived season status: %w", err)
			}
			changed = append(changed, models.NodeRef{Level: models.LevelSeason, ID: seasonID})
		}
	}

	showID, err := e.db.OwningShowOfSeason(ctx, tx, seasonID)
	if err != nil {
		return nil, err
	}
	showChanged, err := e.RecomputeShow(ctx, tx, profileID, showID)
	if err != nil {
		return nil, err
	}
	return append(changed, showChanged...), nil
}

// ForceSetShow applies a show-level force set. When recursive, every
// tracked season and episode row under the show is bulk-updated, then
// the show is rederived so the stored ancestor stays recompute-stable.
func (e *Engine) ForceSetShow(ctx context.Context, tx database.Queryer, profileID, showID int64, status models.Status, recursive bool) (int64, []models.NodeRef, error) {
	defer func(start time.Time) {
		metrics.CascadeDuration.WithLabelValues("force_set_show").Observe(time.Since(start).Seconds())
	}(time.Now())

	rows, err := e.db.UpdateStatus(ctx, tx, models.LevelShow, profileID, showID, status)
	if err != nil {
		return 0, nil, err
	}
	if rows == 0 {
		return 0, nil, nil
	}
	changed := []models.NodeRef{{Level: models.LevelShow, ID: showID}}

	if !recursive {
		metrics.CascadeRowsAffected.WithLabelValues("force_set_show").Add(float64(rows))
		return rows, changed, nil
	}

	seasonRows, err := e.db.UpdateSeasonStatusesByShow(ctx, tx, profileID, showID, status)
	if err != nil {
		return 0, nil, fmt.Errorf("cascade to seasons: %w", err)
	}
	episodeRows, err := e.db.UpdateEpisodeStatusesByShow(ctx, tx, profileID, showID, status)
	if err != nil {
		return 0, nil, fmt.Errorf("cascade to episodes: %w", err)
	}
	rows += seasonRows + episodeRows

	// Rederive so the stored show value matches what a recompute over
	// the forced descendants would produce (unaired seasons pull a
	// forced WATCHED back to UP_TO_DATE).
	if _, err := e.RecomputeShow(ctx, tx, profileID, showID); err != nil {
		return 0, nil, err
	}

	metrics.CascadeRowsAffected.WithLabelValues("force_set_show").Add(float64(rows))
	return rows, changed, nil
}

// ForceSetSeason applies a season-level force set, cascading to episode
// rows when recursive, then rederives the owning show.
func (e *Engine) ForceSetSeason(ctx context.Context, tx database.Queryer, profileID, seasonID int64, status models.Status, recursive bool) (int64, []models.NodeRef, error) {
	defer func(start time.Time) {
		metrics.CascadeDuration.WithLabelValues("force_set_season").Observe(time.Since(start).Seconds())
	}(time.Now())

	rows, err := e.db.UpdateStatus(ctx, tx, models.LevelSeason, profileID, seasonID, status)
	if err != nil {
		return 0, nil, err
	}
	if rows == 0 {
		return 0, nil, nil
	}
	changed := []models.NodeRef{{Level: models.LevelSeason, ID: seasonID}}

	if recursive {
		episodeRows, err := e.db.UpdateEpisodeStatusesBySeason(ctx, tx, profileID, seasonID, status)
		if err != nil {
			return 0, nil, fmt.Errorf("cascade to episodes: %w", err)
		}
		rows += episodeRows
	}

	showID, err := e.db.OwningShowOfSeason(ctx, tx, seasonID)
	if err != nil {
		return 0, nil, err
	}
	showChanged, err := e.RecomputeShow(ctx, tx, profileID, showID)
	if err != nil {
		return 0, nil, err
	}

	metrics.CascadeRowsAffected.WithLabelValues("force_set_season").Add(float64(rows))
	return rows, append(changed, showChanged...), nil
}

// ForceSetEpisode applies an episode-level set, then rederives the
// owning season and show bottom-up.
func (e *Engine) ForceSetEpisode(ctx context.Context, tx database.Queryer, profileID, episodeID int64, status models.Status) (int64, []models.NodeRef, error) {
	defer func(start time.Time) {
		metrics.CascadeDuration.WithLabelValues("force_set_episode").Observe(time.Since(start).Seconds())
	}(time.Now())

	rows, err := e.db.UpdateStatus(ctx, tx, models.LevelEpisode, profileID, episodeID, status)
	if err != nil {
		return 0, nil, err
	}
	if rows == 0 {
		return 0, nil, nil
	}
	changed := []models.NodeRef{{Level: models.LevelEpisode, ID: episodeID}}

	seasonID, err := e.db.OwningSeasonOfEpisode(ctx, tx, episodeID)
	if err != nil {
		return 0, nil, err
	}
	upward, err := e.RecomputeSeason(ctx, tx, profileID, seasonID)
	if err != nil {
		return 0, nil, err
	}

	metrics.CascadeRowsAffected.WithLabelValues("force_set_episode").Add(float64(rows))
	return rows, append(changed, upward...), nil
}

// ReactToNewEpisodes handles new aired content under a tracked season:
// missing episode rows are seeded NOT_WATCHED, a WATCHED season demotes
// to WATCHING, and a WATCHED owning show demotes to WATCHING. Seasons
// that are untracked or not WATCHED are left alone.
func (e *Engine) ReactToNewEpisodes(ctx context.Context, tx database.Queryer, profileID, seasonID int64) (int64, []models.NodeRef, error) {
	defer func(start time.Time) {
		metrics.CascadeDuration.WithLabelValues("react_new_episodes").Observe(time.Since(start).Seconds())
	}(time.Now())

	current, tracked, err := e.db.GetStatus(ctx, tx, models.LevelSeason, profileID, seasonID)
	if err != nil {
		return 0, nil, err
	}
	if !tracked {
		return 0, nil, nil
	}

	seeded, err := e.db.InsertMissingEpisodeStatuses(ctx, tx, profileID, seasonID)
	if err != nil {
		return 0, nil, fmt.Errorf("seed new episode rows: %w", err)
	}

	if current != models.StatusWatched {
		return seeded, nil, nil
	}

	rows, err := e.db.UpdateStatus(ctx, tx, models.LevelSeason, profileID, seasonID, models.StatusWatching)
	if err != nil {
		return 0, nil, err
	}
	changed := []models.NodeRef{{Level: models.LevelSeason, ID: seasonID}}

	showID, err := e.db.OwningShowOfSeason(ctx, tx, seasonID)
	if err != nil {
		return 0, nil, err
	}
	showStatus, showTracked, err := e.db.GetStatus(ctx, tx, models.LevelShow, profileID, showID)
	if err != nil {
		return 0, nil, err
	}
	// Demotion is deliberately narrow: only a WATCHED show moves, and
	// only to WATCHING. UP_TO_DATE, WATCHING and NOT_WATCHED stand.
	if showTracked && showStatus == models.StatusWatched {
		showRows, err := e.db.UpdateStatus(ctx, tx, models.LevelShow, profileID, showID, models.StatusWatching)
		if err != nil {
			return 0, nil, err
		}
		rows += showRows
		changed = append(changed, models.NodeRef{Level: models.LevelShow, ID: showID})
	}

	return seeded + rows, changed, nil
}
