// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/watchdex/internal/cache"
	"github.com/tomtom215/watchdex/internal/database"
	"github.com/tomtom215/watchdex/internal/events"
	"github.com/tomtom215/watchdex/internal/logging"
	"github.com/tomtom215/watchdex/internal/models"
)

// ErrInvalidStatus is returned when a status is not valid for the
// targeted level, or a recursive set uses a level-specific status.
var ErrInvalidStatus = errors.New("status not valid for target")

// EventPublisher is the slice of events.Publisher the facade needs.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, event events.StatusChanged) error
}

// Service is the status service facade. Every mutating operation runs
// inside one transaction; cache invalidation and event publishing
// happen only after a successful commit and are advisory.
type Service struct {
	db        *database.DB
	engine    *Engine
	cache     cache.Cacher
	publisher EventPublisher
	cacheTTL  time.Duration
}

// NewService wires the facade. cacheDerived and publisher may be nil;
// the facade then skips invalidation and events respectively.
func NewService(db *database.DB, cacheDerived cache.Cacher, publisher EventPublisher, cacheTTL time.Duration) *Service {
	return &Service{
		db:        db,
		engine:    NewEngine(db),
		cache:     cacheDerived,
		publisher: publisher,
		cacheTTL:  cacheTTL,
	}
}

// AddToFavorites starts tracking a show for a profile. The show row is
// seeded NOT_WATCHED; with includeDescendants the season and episode
// rows are seeded too, set-based. Favoriting an already-tracked show is
// a no-op.
func (s *Service) AddToFavorites(ctx context.Context, profileID, showID int64, includeDescendants bool) (models.StatusChange, error) {
	var result models.StatusChange

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx database.Queryer) error {
		rows, err := s.db.InsertShowStatus(ctx, tx, profileID, showID, models.StatusNotWatched)
		if err != nil {
			return err
		}
		if rows == 0 {
			result = models.StatusChange{Success: true, Message: "show already tracked"}
			return nil
		}
		total := rows
		changed := []models.NodeRef{{Level: models.LevelShow, ID: showID}}

		if includeDescendants {
			seasonIDs, err := s.db.SeasonIDsForShow(ctx, tx, showID)
			if err != nil {
				return err
			}
			// Shows without seasons skip the descendant inserts entirely.
			if len(seasonIDs) > 0 {
				seasonRows, err := s.db.InsertSeasonStatusesForShow(ctx, tx, profileID, showID, models.StatusNotWatched)
				if err != nil {
					return err
				}
				episodeRows, err := s.db.InsertEpisodeStatusesForSeasons(ctx, tx, profileID, seasonIDs, models.StatusNotWatched)
				if err != nil {
					return err
				}
				total += seasonRows + episodeRows
			}
		}

		result = models.StatusChange{Success: true, AffectedRows: total, ChangedNodes: changed}
		return nil
	})
	if err != nil {
		return models.StatusChange{}, err
	}

	if result.AffectedRows > 0 {
		s.afterCommit(ctx, profileID, events.StatusChanged{
			ProfileID: profileID,
			Nodes:     result.ChangedNodes,
			Status:    models.StatusNotWatched,
			Recursive: includeDescendants,
		})
	}
	return result, nil
}

// RemoveFromFavorites stops tracking a show: episode rows, season rows,
// then the show row, all in one transaction.
func (s *Service) RemoveFromFavorites(ctx context.Context, profileID, showID int64) (models.StatusChange, error) {
	var result models.StatusChange

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx database.Queryer) error {
		seasonIDs, err := s.db.SeasonIDsForShow(ctx, tx, showID)
		if err != nil {
			return err
		}
		episodeRows, err := s.db.DeleteEpisodeStatusesBySeasons(ctx, tx, profileID, seasonIDs)
		if err != nil {
			return err
		}
		seasonRows, err := s.db.DeleteSeasonStatusesByShow(ctx, tx, profileID, showID)
		if err != nil {
			return err
		}
		showRows, err := s.db.DeleteShowStatus(ctx, tx, profileID, showID)
		if err != nil {
			return err
		}

		total := episodeRows + seasonRows + showRows
		result = models.StatusChange{Success: true, AffectedRows: total}
		if showRows == 0 {
			result.Message = "show was not tracked"
		} else {
			result.ChangedNodes = []models.NodeRef{{Level: models.LevelShow, ID: showID}}
		}
		return nil
	})
	if err != nil {
		return models.StatusChange{}, err
	}

	if result.AffectedRows > 0 {
		s.afterCommit(ctx, profileID, events.StatusChanged{
			ProfileID: profileID,
			Nodes:     result.ChangedNodes,
			Status:    models.StatusNotWatched,
			Recursive: true,
		})
	}
	return result, nil
}

// SetStatus force-sets a node's status. Season and episode targets
// rederive their ancestors in the same transaction. Zero affected rows
// (untracked node) is reported as a no-op, not an error.
func (s *Service) SetStatus(ctx context.Context, profileID int64, node models.NodeRef, status models.Status, recursive bool) (models.StatusChange, error) {
	if !status.ValidFor(node.Level) {
		return models.StatusChange{}, fmt.Errorf("%w: %s at %s level", ErrInvalidStatus, status, node.Level)
	}
	if recursive && !status.ValidForAllLevels() {
		return models.StatusChange{}, fmt.Errorf("%w: recursive set requires a status valid at every level, got %s", ErrInvalidStatus, status)
	}

	var result models.StatusChange

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx database.Queryer) error {
		var (
			rows    int64
			changed []models.NodeRef
			err     error
		)
		switch node.Level {
		case models.LevelShow:
			rows, changed, err = s.engine.ForceSetShow(ctx, tx, profileID, node.ID, status, recursive)
		case models.LevelSeason:
			rows, changed, err = s.engine.ForceSetSeason(ctx, tx, profileID, node.ID, status, recursive)
		case models.LevelEpisode:
			rows, changed, err = s.engine.ForceSetEpisode(ctx, tx, profileID, node.ID, status)
		default:
			return fmt.Errorf("unknown level %q", node.Level)
		}
		if err != nil {
			return err
		}

		result = models.StatusChange{Success: true, AffectedRows: rows, ChangedNodes: changed}
		if rows == 0 {
			result.Message = fmt.Sprintf("%s is not tracked by profile %d", node, profileID)
		}
		return nil
	})
	if err != nil {
		return models.StatusChange{}, err
	}

	if result.AffectedRows > 0 {
		s.afterCommit(ctx, profileID, events.StatusChanged{
			ProfileID: profileID,
			Nodes:     result.ChangedNodes,
			Status:    status,
			Recursive: recursive,
		})
	}
	return result, nil
}

// ReactToNewEpisodes applies the new-content reaction to one tracked
// season: seeds missing episode rows and demotes WATCHED season/show.
func (s *Service) ReactToNewEpisodes(ctx context.Context, profileID, seasonID int64) (models.StatusChange, error) {
	var result models.StatusChange

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx database.Queryer) error {
		rows, changed, err := s.engine.ReactToNewEpisodes(ctx, tx, profileID, seasonID)
		if err != nil {
			return err
		}
		result = models.StatusChange{Success: true, AffectedRows: rows, ChangedNodes: changed}
		if rows == 0 {
			result.Message = fmt.Sprintf("season/%d is not tracked by profile %d", seasonID, profileID)
		}
		return nil
	})
	if err != nil {
		return models.StatusChange{}, err
	}

	if result.AffectedRows > 0 {
		s.afterCommit(ctx, profileID, events.StatusChanged{
			ProfileID: profileID,
			Nodes:     result.ChangedNodes,
			Status:    models.StatusWatching,
		})
	}
	return result, nil
}

// TrackedShows returns the profile's watchlist, served through the
// derived-data cache under profile_<id>_shows. The bool reports a
// cache hit.
func (s *Service) TrackedShows(ctx context.Context, profileID int64) ([]models.TrackedShow, bool, error) {
	populate := func() ([]byte, error) {
		tracked, err := s.db.TrackedShows(ctx, profileID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(tracked)
	}

	var (
		payload []byte
		hit     bool
		err     error
	)
	if s.cache != nil {
		payload, hit, err = s.cache.GetOrSet(cache.ProfileKey(profileID, "shows"), s.cacheTTL, populate)
	} else {
		payload, err = populate()
	}
	if err != nil {
		return nil, false, err
	}

	var tracked []models.TrackedShow
	if err := json.Unmarshal(payload, &tracked); err != nil {
		return nil, false, fmt.Errorf("decode cached watchlist: %w", err)
	}
	return tracked, hit, nil
}

// afterCommit runs the post-commit side effects: cache invalidation for
// the profile scope (and the owning account scope when known) and the
// status.changed event. Both are advisory; failures are logged only.
func (s *Service) afterCommit(ctx context.Context, profileID int64, event events.StatusChanged) {
	if s.cache != nil {
		s.cache.Invalidate(cache.ProfilePattern(profileID))

		accountID, err := s.db.AccountIDForProfile(ctx, s.db.Conn(), profileID)
		if err != nil {
			logging.Warn().Err(err).Int64("profile_id", profileID).
				Msg("account lookup for cache invalidation failed")
		} else if accountID != 0 {
			s.cache.Invalidate(cache.AccountPattern(accountID))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishStatusChanged(ctx, event); err != nil {
			logging.Warn().Err(err).Int64("profile_id", profileID).
				Msg("status.changed publish failed")
		}
	}
}
