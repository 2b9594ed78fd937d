// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/watchdex/internal/metrics"
	"github.com/tomtom215/watchdex/internal/models"
)

// statusTable maps a hierarchy level to its status table and id column.
var statusTable = map[models.Level]struct {
	name     string
	idColumn string
}{
	models.LevelShow:    {"show_status", "show_id"},
	models.LevelSeason:  {"season_status", "season_id"},
	models.LevelEpisode: {"episode_status", "episode_id"},
}

// observe records a query duration metric.
func observe(operation, table string, start time.Time) {
	metrics.DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// InsertShowStatus creates the show's tracking row seeded with the given
// status. Favoriting an already-favorited show is a no-op (zero rows).
func (db *DB) InsertShowStatus(ctx context.Context, q Queryer, profileID, showID int64, status models.Status) (int64, error) {
	defer observe("insert", "show_status", time.Now())

	result, err := q.ExecContext(ctx,
		`INSERT INTO show_status (profile_id, show_id, status) VALUES (?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		profileID, showID, string(status))
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("insert", "show_status").Inc()
		return 0, err
	}
	return result.RowsAffected()
}

// InsertSeasonStatusesForShow bulk-inserts season rows for every season
// of the show, seeded with the given status. Set-based: one statement
// regardless of season count.
func (db *DB) InsertSeasonStatusesForShow(ctx context.Context, q Queryer, profileID, showID int64, status models.Status) (int64, error) {
	defer observe("insert", "season_status", time.Now())

	result, err := q.ExecContext(ctx,
		`INSERT INTO season_status (profile_id, season_id, status)
		 SELECT ?, s.id, ? FROM seasons s WHERE s.show_id = ?
		 ON CONFLICT DO NOTHING`,
		profileID, string(status), showID)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("insert", "season_status").Inc()
		return 0, err
	}
	return result.RowsAffected()
}

// InsertEpisodeStatusesForSeasons bulk-inserts episode rows for every
// episode belonging to the given seasons, seeded with the given status.
// One set-based insert keyed off the season identifiers.
func (db *DB) InsertEpisodeStatusesForSeasons(ctx context.Context, q Queryer, profileID int64, seasonIDs []int64, status models.Status) (int64, error) {
	if len(seasonIDs) == 0 {
		return 0, nil
	}
	defer observe("insert", "episode_status", time.Now())

	query := fmt.Sprintf(
		`INSERT INTO episode_status (profile_id, episode_id, status)
		 SELECT ?, e.id, ? FROM episodes e WHERE e.season_id IN (%s)
		 ON CONFLICT DO NOTHING`,
		placeholders(len(seasonIDs)))

	args := make([]any, 0, len(seasonIDs)+2)
	args = append(args, profileID, string(status))
	for _, id := range seasonIDs {
		args = append(args, id)
	}

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("insert", "episode_status").Inc()
		return 0, err
	}
	return result.RowsAffected()
}

// InsertMissingEpisodeStatuses creates NOT_WATCHED rows for episodes the
// catalog added to a season after the profile started tracking it.
func (db *DB) InsertMissingEpisodeStatuses(ctx context.Context, q Queryer, profileID, seasonID int64) (int64, error) {
	defer observe("insert", "episode_status", time.Now())

	result, err := q.ExecContext(ctx,
		`INSERT INTO episode_status (profile_id, episode_id, status)
		 SELECT ?, e.id, ? FROM episodes e
		 WHERE e.season_id = ?
		   AND NOT EXISTS (
		     SELECT 1 FROM episode_status es
		     WHERE es.profile_id = ? AND es.episode_id = e.id
		   )
		 ON CONFLICT DO NOTHING`,
		profileID, string(models.StatusNotWatched), seasonID, profileID)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("insert", "episode_status").Inc()
		return 0, err
	}
	return result.RowsAffected()
}

// UpdateStatus sets one node's status row and reports how many rows were
// touched (zero means the node is untracked for this profile).
func (db *DB) UpdateStatus(ctx context.Context, q Queryer, level models.Level, profileID, nodeID int64, status models.Status) (int64, error) {
	table := statusTable[level]
	defer observe("update", table.name, time.Now())

	query := fmt.Sprintf(
		`UPDATE %s SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE profile_id = ? AND %s = ?`,
		table.name, table.idColumn)

	result, err := q.ExecContext(ctx, query, string(status), profileID, nodeID)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("update", table.name).Inc()
		return 0, err
	}
	return result.RowsAffected()
}

// UpdateSeasonStatusesByShow bulk-updates every tracked season row under
// a show to the same status.
func (db *DB) UpdateSeasonStatusesByShow(ctx context.Context, q Queryer, profileID, showID int64, status models.Status) (int64, error) {
	defer observe("update", "season_status", time.Now())

	result, err := q.ExecContext(ctx,
		`UPDATE season_status SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE profile_id = ?
		   AND season_id IN (SELECT id FROM seasons WHERE show_id = ?)`,
		string(status), profileID, showID)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("update", "season_status").Inc()
		return 0, err
	}
	return result.RowsAffected()
}

// UpdateEpisodeStatusesByShow bulk-updates every tracked episode row
// under a show to the same status.
func (db *DB) UpdateEpisodeStatusesByShow(ctx context.Context, q Queryer, profileID, showID int64, status models.Status) (int64, error) {
	defer observe("update", "episode_status", time.Now())

	result, err := q.ExecContext(ctx,
		`UPDATE episode_status SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE profile_id = ?
		   AND episode_id IN (
		     SELECT e.id FROM episodes e
		     JOIN seasons s ON s.id = e.season_id
		     WHERE s.show_id = ?
		   )`,
		string(status), profileID, showID)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("update", "episode_status").Inc()
		return 0, err
	}
	return result.RowsAffected()
}

// UpdateEpisodeStatusesBySeason bulk-updates every tracked episode row
// under a season to the same status.
func (db *DB) UpdateEpisodeStatusesBySeason(ctx context.Context, q Queryer, profileID, seasonID int64, status models.Status) (int64, error) {
	defer observe("update", "episode_status", time.Now())

	result, err := q.ExecContext(ctx,
		`UPDATE episode_status SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE profile_id = ?
		   AND episode_id IN (SELECT id FROM episodes WHERE season_id = ?)`,
		string(status), profileID, seasonID)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("update", "episode_status").Inc()
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteEpisodeStatusesBySeasons removes episode rows scoped to the given
// seasons. Part of the child-first unfavorite ordering.
func (db *DB) DeleteEpisodeStatusesBySeasons(ctx context.Context, q Queryer, profileID int64, seasonIDs []int64) (int64, error) {
	if len(seasonIDs) == 0 {
		return 0, nil
	}
	defer observe("delete", "episode_status", time.Now())

	query := fmt.Sprintf(
		`DELETE FROM episode_status
		 WHERE profile_id = ?
		   AND episode_id IN (SELECT id FROM episodes WHERE season_id IN (%s))`,
		placeholders(len(seasonIDs)))

	args := make([]any, 0, len(seasonIDs)+1)
	args = append(args, profileID)
	for _, id := range seasonIDs {
		args = append(args, id)
	}

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("delete", "episode_status").Inc()
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteSeasonStatusesByShow removes season rows for a show.
func (db *DB) DeleteSeasonStatusesByShow(ctx context.Context, q Queryer, profileID, showID int64) (int64, error) {
	defer observe("delete", "season_status", time.Now())

	result, err := q.ExecContext(ctx,
		`DELETE FROM season_status
		 WHERE profile_id = ?
		   AND season_id IN (SELECT id FROM seasons WHERE show_id = ?)`,
		profileID, showID)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("delete", "season_status").Inc()
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteShowStatus removes the show's tracking row.
func (db *DB) DeleteShowStatus(ctx context.Context, q Queryer, profileID, showID int64) (int64, error) {
	defer observe("delete", "show_status", time.Now())

	result, err := q.ExecContext(ctx,
		`DELETE FROM show_status WHERE profile_id = ? AND show_id = ?`,
		profileID, showID)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("delete", "show_status").Inc()
		return 0, err
	}
	return result.RowsAffected()
}

// GetStatus returns one node's tracked status. The bool reports whether
// the node is tracked at all.
func (db *DB) GetStatus(ctx context.Context, q Queryer, level models.Level, profileID, nodeID int64) (models.Status, bool, error) {
	table := statusTable[level]
	defer observe("select", table.name, time.Now())

	query := fmt.Sprintf(
		`SELECT status FROM %s WHERE profile_id = ? AND %s = ?`,
		table.name, table.idColumn)

	var raw string
	err := q.QueryRowContext(ctx, query, profileID, nodeID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", table.name).Inc()
		return "", false, err
	}
	return models.Status(raw), true, nil
}

// SeasonTally counts the show's tracked seasons by aggregation bucket.
//
// Wholly UNAIRED seasons are excluded. A WATCHED season still waiting on
// unaired episodes counts as up_to_date rather than watched, which is
// what lets the show derive UP_TO_DATE while a season is mid-air.
func (db *DB) SeasonTally(ctx context.Context, q Queryer, profileID, showID int64) (models.SeasonTally, error) {
	defer observe("select", "season_status", time.Now())

	var tally models.SeasonTally
	err := q.QueryRowContext(ctx,
		`WITH tracked AS (
		   SELECT st.status,
		          EXISTS (
		            SELECT 1 FROM episodes e
		            WHERE e.season_id = st.season_id
		              AND (e.air_date IS NULL OR e.air_date > CURRENT_TIMESTAMP)
		          ) AS pending
		   FROM season_status st
		   JOIN seasons s ON s.id = st.season_id
		   WHERE st.profile_id = ? AND s.show_id = ? AND st.status <> 'unaired'
		 )
		 SELECT
		   COUNT(*) FILTER (WHERE status = 'watched' AND NOT pending),
		   COUNT(*) FILTER (WHERE status = 'watched' AND pending),
		   COUNT(*) FILTER (WHERE status = 'watching'),
		   COUNT(*) FILTER (WHERE status = 'not_watched'),
		   COUNT(*)
		 FROM tracked`,
		profileID, showID).
		Scan(&tally.Watched, &tally.UpToDate, &tally.Watching, &tally.NotWatched, &tally.Total)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "season_status").Inc()
		return models.SeasonTally{}, err
	}
	return tally, nil
}

// HasUnairedSeasons reports whether the profile tracks any UNAIRED season
// under the show.
func (db *DB) HasUnairedSeasons(ctx context.Context, q Queryer, profileID, showID int64) (bool, error) {
	defer observe("select", "season_status", time.Now())

	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM season_status st
		   JOIN seasons s ON s.id = st.season_id
		   WHERE st.profile_id = ? AND s.show_id = ? AND st.status = 'unaired'
		 )`,
		profileID, showID).Scan(&exists)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "season_status").Inc()
		return false, err
	}
	return exists, nil
}

// EpisodeTally holds the per-bucket counts of a season's tracked episodes.
type EpisodeTally struct {
	WatchedAired int
	AiredTotal   int
	Watched      int
	Total        int
}

// EpisodeTallyForSeason counts the season's tracked episodes, split by
// whether the episode has aired.
func (db *DB) EpisodeTallyForSeason(ctx context.Context, q Queryer, profileID, seasonID int64) (EpisodeTally, error) {
	defer observe("select", "episode_status", time.Now())

	var tally EpisodeTally
	err := q.QueryRowContext(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE es.status = 'watched'
		     AND e.air_date IS NOT NULL AND e.air_date <= CURRENT_TIMESTAMP),
		   COUNT(*) FILTER (WHERE e.air_date IS NOT NULL AND e.air_date <= CURRENT_TIMESTAMP),
		   COUNT(*) FILTER (WHERE es.status = 'watched'),
		   COUNT(*)
		 FROM episode_status es
		 JOIN episodes e ON e.id = es.episode_id
		 WHERE es.profile_id = ? AND e.season_id = ?`,
		profileID, seasonID).
		Scan(&tally.WatchedAired, &tally.AiredTotal, &tally.Watched, &tally.Total)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "episode_status").Inc()
		return EpisodeTally{}, err
	}
	return tally, nil
}

// SeasonIDsForShow returns the catalog season identifiers of a show.
func (db *DB) SeasonIDsForShow(ctx context.Context, q Queryer, showID int64) ([]int64, error) {
	defer observe("select", "seasons", time.Now())

	rows, err := q.QueryContext(ctx,
		`SELECT id FROM seasons WHERE show_id = ? ORDER BY number`, showID)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "seasons").Inc()
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// OwningShowOfSeason resolves a season's parent show through the catalog.
func (db *DB) OwningShowOfSeason(ctx context.Context, q Queryer, seasonID int64) (int64, error) {
	defer observe("select", "seasons", time.Now())

	var showID int64
	err := q.QueryRowContext(ctx,
		`SELECT show_id FROM seasons WHERE id = ?`, seasonID).Scan(&showID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("season %d not found in catalog", seasonID)
	}
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "seasons").Inc()
		return 0, err
	}
	return showID, nil
}

// OwningSeasonOfEpisode resolves an episode's parent season through the catalog.
func (db *DB) OwningSeasonOfEpisode(ctx context.Context, q Queryer, episodeID int64) (int64, error) {
	defer observe("select", "episodes", time.Now())

	var seasonID int64
	err := q.QueryRowContext(ctx,
		`SELECT season_id FROM episodes WHERE id = ?`, episodeID).Scan(&seasonID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("episode %d not found in catalog", episodeID)
	}
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "episodes").Inc()
		return 0, err
	}
	return seasonID, nil
}

// AccountIDForProfile resolves the owning account for account-scoped
// cache invalidation. Returns 0 when the profile is unknown.
func (db *DB) AccountIDForProfile(ctx context.Context, q Queryer, profileID int64) (int64, error) {
	defer observe("select", "profiles", time.Now())

	var accountID int64
	err := q.QueryRowContext(ctx,
		`SELECT account_id FROM profiles WHERE id = ?`, profileID).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "profiles").Inc()
		return 0, err
	}
	return accountID, nil
}

// TrackedShows returns the profile's watchlist: every tracked show joined
// with its current status. Read path; runs outside a transaction.
func (db *DB) TrackedShows(ctx context.Context, profileID int64) ([]models.TrackedShow, error) {
	defer observe("select", "show_status", time.Now())

	rows, err := db.conn.QueryContext(ctx,
		`SELECT st.show_id, sh.title, st.status
		 FROM show_status st
		 JOIN shows sh ON sh.id = st.show_id
		 WHERE st.profile_id = ?
		 ORDER BY sh.title`,
		profileID)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "show_status").Inc()
		return nil, err
	}
	defer rows.Close()

	var tracked []models.TrackedShow
	for rows.Next() {
		var t models.TrackedShow
		var raw string
		if err := rows.Scan(&t.ShowID, &t.Title, &raw); err != nil {
			return nil, err
		}
		t.Status = models.Status(raw)
		tracked = append(tracked, t)
	}
	return tracked, rows.Err()
}

// TrackedSeasonRef pairs a profile with one of its tracked seasons.
type TrackedSeasonRef struct {
	ProfileID int64
	SeasonID  int64
}

// WatchedSeasonsWithNewEpisodes finds (profile, season) pairs where the
// season is tracked as WATCHED but the catalog has aired episodes the
// profile has no status row for. These are the seasons the sweeper must
// demote.
func (db *DB) WatchedSeasonsWithNewEpisodes(ctx context.Context) ([]TrackedSeasonRef, error) {
	defer observe("select", "season_status", time.Now())

	rows, err := db.conn.QueryContext(ctx,
		`SELECT st.profile_id, st.season_id
		 FROM season_status st
		 WHERE st.status = 'watched'
		   AND EXISTS (
		     SELECT 1 FROM episodes e
		     WHERE e.season_id = st.season_id
		       AND e.air_date IS NOT NULL AND e.air_date <= CURRENT_TIMESTAMP
		       AND NOT EXISTS (
		         SELECT 1 FROM episode_status es
		         WHERE es.profile_id = st.profile_id AND es.episode_id = e.id
		       )
		   )`)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "season_status").Inc()
		return nil, err
	}
	defer rows.Close()

	var refs []TrackedSeasonRef
	for rows.Next() {
		var ref TrackedSeasonRef
		if err := rows.Scan(&ref.ProfileID, &ref.SeasonID); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// placeholders builds a "?, ?, ?" list of the given length.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
