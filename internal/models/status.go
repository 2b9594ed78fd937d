// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

// Package models defines the domain types shared across Watchdex:
// watch statuses and their per-level validity, content hierarchy nodes,
// and the API response envelope.
package models

import "fmt"

// Status is a watch status value. Not every status is valid at every
// level of the hierarchy; validity is enforced with ValidFor before any
// write is attempted.
type Status string

const (
	// StatusNotWatched means the node is tracked but nothing has been watched.
	StatusNotWatched Status = "not_watched"

	// StatusWatching means the node is partially watched. Valid for shows
	// and seasons only; episodes are leaves and are either watched or not.
	StatusWatching Status = "watching"

	// StatusUpToDate means every aired season is watched but the catalog
	// still has seasons pending release. Show level only.
	StatusUpToDate Status = "up_to_date"

	// StatusWatched means the node and all tracked descendants are watched.
	StatusWatched Status = "watched"

	// StatusUnaired marks content not yet released. Season and episode
	// level only; a show with nothing aired derives NOT_WATCHED instead.
	StatusUnaired Status = "unaired"
)

// Level identifies a tier of the content hierarchy.
type Level string

const (
	LevelShow    Level = "show"
	LevelSeason  Level = "season"
	LevelEpisode Level = "episode"
)

// validStatuses maps each level to its closed set of allowed statuses.
var validStatuses = map[Level][]Status{
	LevelShow:    {StatusNotWatched, StatusWatching, StatusUpToDate, StatusWatched},
	LevelSeason:  {StatusNotWatched, StatusWatching, StatusWatched, StatusUnaired},
	LevelEpisode: {StatusNotWatched, StatusWatched},
}

// ValidFor reports whether the status is a member of the closed set for
// the given level.
func (s Status) ValidFor(level Level) bool {
	for _, v := range validStatuses[level] {
		if s == v {
			return true
		}
	}
	return false
}

// ValidForAllLevels reports whether the status may be applied uniformly
// to a node and every descendant below it. Only statuses shared by all
// three level sets qualify, which restricts recursive force-sets to
// WATCHED and NOT_WATCHED.
func (s Status) ValidForAllLevels() bool {
	return s == StatusWatched || s == StatusNotWatched
}

// ParseStatus converts a wire string into a Status, rejecting unknown values.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusNotWatched, StatusWatching, StatusUpToDate, StatusWatched, StatusUnaired:
		return Status(raw), nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// ParseLevel converts a wire string into a Level, rejecting unknown values.
func ParseLevel(raw string) (Level, error) {
	switch Level(raw) {
	case LevelShow, LevelSeason, LevelEpisode:
		return Level(raw), nil
	}
	return "", fmt.Errorf("unknown level %q", raw)
}

// NodeRef identifies one node of the content hierarchy.
type NodeRef struct {
	Level Level `json:"level"`
	ID    int64 `json:"id"`
}

func (n NodeRef) String() string {
	return fmt.Sprintf("%s/%d", n.Level, n.ID)
}

// SeasonTally holds the per-status counts of a show's tracked seasons.
// It is the input to the bottom-up show status recompute. Wholly unaired
// seasons are excluded; a season that is watched but still has unaired
// episodes is counted as UpToDate rather than Watched.
type SeasonTally struct {
	Watched    int
	UpToDate   int
	Watching   int
	NotWatched int
	Total      int
}

// StatusChange is the structured result of a facade operation.
type StatusChange struct {
	Success      bool      `json:"success"`
	AffectedRows int64     `json:"affected_rows"`
	Message      string    `json:"message,omitempty"`
	ChangedNodes []NodeRef `json:"changed_nodes,omitempty"`
}
