// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tomtom215/watchdex/internal/metrics"
	"github.com/tomtom215/watchdex/internal/models"
)

// Catalog writes. These back the catalog sync surface and test fixtures;
// they upsert on id so repeated syncs converge.

func (db *DB) UpsertProfile(ctx context.Context, p models.Profile) error {
	defer observe("insert", "profiles", time.Now())

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO profiles (id, account_id, name) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET account_id = excluded.account_id, name = excluded.name`,
		p.ID, p.AccountID, p.Name)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("insert", "profiles").Inc()
	}
	return err
}

func (db *DB) UpsertShow(ctx context.Context, s models.Show) error {
	defer observe("insert", "shows", time.Now())

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO shows (id, title, ended) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET title = excluded.title, ended = excluded.ended`,
		s.ID, s.Title, s.Ended)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("insert", "shows").Inc()
	}
	return err
}

func (db *DB) UpsertSeason(ctx context.Context, s models.Season) error {
	defer observe("insert", "seasons", time.Now())

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO seasons (id, show_id, number, air_date) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET show_id = excluded.show_id,
		   number = excluded.number, air_date = excluded.air_date`,
		s.ID, s.ShowID, s.Number, s.AirDate)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("insert", "seasons").Inc()
	}
	return err
}

func (db *DB) UpsertEpisode(ctx context.Context, e models.Episode) error {
	defer observe("insert", "episodes", time.Now())

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO episodes (id, season_id, number, air_date) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET season_id = excluded.season_id,
		   number = excluded.number, air_date = excluded.air_date`,
		e.ID, e.SeasonID, e.Number, e.AirDate)
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("insert", "episodes").Inc()
	}
	return err
}

// GetShow fetches one catalog show. The bool reports existence.
func (db *DB) GetShow(ctx context.Context, showID int64) (models.Show, bool, error) {
	defer observe("select", "shows", time.Now())

	var s models.Show
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, ended FROM shows WHERE id = ?`, showID).
		Scan(&s.ID, &s.Title, &s.Ended)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Show{}, false, nil
	}
	if err != nil {
		metrics.DBQueryErrors.WithLabelValues("select", "shows").Inc()
		return models.Show{}, false, err
	}
	return s, true, nil
}
