// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

package database

import (
	"context"
	"fmt"
	"time"
)

// Schema notes:
//
//   - Catalog tables (profiles, shows, seasons, episodes) are read-mostly
//     and owned by the metadata sync, not by this engine. They are created
//     here so foreign-key lookups and aired checks work standalone.
//   - Status tables are keyed (profile_id, node_id); absence of a row
//     means "untracked", never "not watched".
//   - The status column is constrained to the per-level enumeration with
//     a CHECK so an invalid value can never be persisted, even by a bug
//     above the model-layer validation.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id BIGINT PRIMARY KEY,
		account_id BIGINT NOT NULL,
		name VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS shows (
		id BIGINT PRIMARY KEY,
		title VARCHAR NOT NULL,
		ended BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE TABLE IF NOT EXISTS seasons (
		id BIGINT PRIMARY KEY,
		show_id BIGINT NOT NULL,
		number INTEGER NOT NULL,
		air_date TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS episodes (
		id BIGINT PRIMARY KEY,
		season_id BIGINT NOT NULL,
		number INTEGER NOT NULL,
		air_date TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS show_status (
		profile_id BIGINT NOT NULL,
		show_id BIGINT NOT NULL,
		status VARCHAR NOT NULL CHECK (status IN ('not_watched', 'watching', 'up_to_date', 'watched')),
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (profile_id, show_id)
	)`,
	`CREATE TABLE IF NOT EXISTS season_status (
		profile_id BIGINT NOT NULL,
		season_id BIGINT NOT NULL,
		status VARCHAR NOT NULL CHECK (status IN ('not_watched', 'watching', 'watched', 'unaired')),
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (profile_id, season_id)
	)`,
	`CREATE TABLE IF NOT EXISTS episode_status (
		profile_id BIGINT NOT NULL,
		episode_id BIGINT NOT NULL,
		status VARCHAR NOT NULL CHECK (status IN ('not_watched', 'watched')),
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (profile_id, episode_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_seasons_show ON seasons (show_id)`,
	`CREATE INDEX IF NOT EXISTS idx_episodes_season ON episodes (season_id)`,
	`CREATE INDEX IF NOT EXISTS idx_season_status_profile ON season_status (profile_id)`,
	`CREATE INDEX IF NOT EXISTS idx_episode_status_profile ON episode_status (profile_id)`,
}

// createSchema creates tables and indexes if they do not exist.
func (db *DB) createSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
