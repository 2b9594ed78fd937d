// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

// Package cache provides the derived-data cache that sits in front of
// expensive read aggregations.
//
// The cache is a best-effort accelerator: it can always be dropped and
// rebuilt, so every failure is advisory. Writers never populate it
// directly; they only invalidate the key namespaces a committed write
// could have staled. Read services populate entries through GetOrSet.
//
// Keys follow the shape <scope>_<id>_<facet>, e.g. profile_42_shows or
// account_7_stats. Invalidate accepts either an exact key or a glob
// pattern such as profile_42_*.
package cache

import (
	"fmt"
	"time"
)

// Cacher is implemented by both cache backends: the in-memory TTL cache
// and the Badger-backed persistent cache. Values are opaque byte slices;
// callers typically store marshaled JSON.
type Cacher interface {
	// Get retrieves a value. Returns the value and true if found and
	// not expired.
	Get(key string) ([]byte, bool)

	// Set stores a value with the backend's default TTL.
	Set(key string, value []byte)

	// SetWithTTL stores a value with a custom TTL.
	SetWithTTL(key string, value []byte, ttl time.Duration)

	// GetOrSet returns the cached value for key, or runs populate,
	// stores its result with the given TTL, and returns it. The bool
	// reports whether the value came from the cache. A populate error
	// is returned unchanged and nothing is stored.
	GetOrSet(key string, ttl time.Duration, populate func() ([]byte, error)) ([]byte, bool, error)

	// Delete removes a single key.
	Delete(key string)

	// Invalidate removes every key matching the glob pattern and
	// returns the number of keys removed. An exact key is a valid
	// pattern.
	Invalidate(pattern string) int

	// Clear removes all entries.
	Clear()

	// GetStats returns cache statistics.
	GetStats() Stats

	// HitRate returns the cache hit rate as a percentage.
	HitRate() float64

	// Close releases backend resources.
	Close() error
}

// Stats tracks cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// ProfileKey builds the cache key for one facet of a profile's derived data.
func ProfileKey(profileID int64, facet string) string {
	return fmt.Sprintf("profile_%d_%s", profileID, facet)
}

// AccountKey builds the cache key for one facet of an account's derived data.
func AccountKey(accountID int64, facet string) string {
	return fmt.Sprintf("account_%d_%s", accountID, facet)
}

// ProfilePattern matches every facet cached for a profile.
func ProfilePattern(profileID int64) string {
	return fmt.Sprintf("profile_%d_*", profileID)
}

// AccountPattern matches every facet cached for an account.
func AccountPattern(accountID int64) string {
	return fmt.Sprintf("account_%d_*", accountID)
}
