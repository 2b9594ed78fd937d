// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

package models

import "time"

// Profile is a viewer profile. Watch status is tracked per profile;
// several profiles may belong to one account, and account-scoped cache
// facets are invalidated alongside profile ones.
type Profile struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Show is a series in the read-only content catalog.
type Show struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Ended bool   `json:"ended"`
}

// Season belongs to exactly one show.
type Season struct {
	ID       int64      `json:"id"`
	ShowID   int64      `json:"show_id"`
	Number   int        `json:"number"`
	AirDate  *time.Time `json:"air_date,omitempty"`
	Episodes int        `json:"episodes,omitempty"`
}

// Episode belongs to exactly one season.
type Episode struct {
	ID       int64      `json:"id"`
	SeasonID int64      `json:"season_id"`
	Number   int        `json:"number"`
	AirDate  *time.Time `json:"air_date,omitempty"`
}

// TrackedShow is one row of a profile's watchlist read path: the catalog
// show joined with the profile's current status.
type TrackedShow struct {
	ShowID int64  `json:"show_id"`
	Title  string `json:"title"`
	Status Status `json:"status"`
}
