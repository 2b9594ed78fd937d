// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

package cache

import (
	"path"
	"sync"
	"time"

	"github.com/tomtom215/watchdex/internal/metrics"
)

// Entry represents a cached item with expiration.
type Entry struct {
	Data      []byte
	ExpiresAt time.Time
}

// Memory is a thread-safe in-memory cache with TTL support. A background
// janitor removes expired entries every cleanupInterval.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	stop    chan struct{}

	statsMu sync.RWMutex
	stats   Stats
}

const cleanupInterval = 5 * time.Minute

// NewMemory creates an in-memory cache with the given default TTL and
// starts the cleanup janitor. Call Close to stop the janitor.
func NewMemory(ttl time.Duration) *Memory {
	c := &Memory{
		entries: make(map[string]Entry),
		ttl:     ttl,
		stop:    make(chan struct{}),
		stats:   Stats{LastCleanup: time.Now()},
	}
	go c.cleanupLoop()
	return c
}

// Get retrieves a value, removing and miss-counting expired entries.
func (c *Memory) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.recordMiss()
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		c.recordMiss()
		c.recordEvictions(1)
		return nil, false
	}

	c.recordHit()
	return entry.Data, true
}

// Set stores a value with the default TTL.
func (c *Memory) Set(key string, value []byte) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Memory) SetWithTTL(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = Entry{
		Data:      value,
		ExpiresAt: time.Now().Add(ttl),
	}
	total := int64(len(c.entries))
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats.TotalKeys = total
	c.statsMu.Unlock()
}

// GetOrSet returns the cached value or populates it. Concurrent callers
// for the same missing key may each run populate; the last write wins,
// which is acceptable for idempotent read aggregations.
func (c *Memory) GetOrSet(key string, ttl time.Duration, populate func() ([]byte, error)) ([]byte, bool, error) {
	if value, ok := c.Get(key); ok {
		return value, true, nil
	}

	value, err := populate()
	if err != nil {
		return nil, false, err
	}

	if ttl <= 0 {
		ttl = c.ttl
	}
	c.SetWithTTL(key, value, ttl)
	return value, false, nil
}

// Delete removes a single entry. Safe to call for missing keys.
func (c *Memory) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.recordEvictions(1)
}

// Invalidate removes every entry whose key matches the glob pattern and
// returns the number removed.
func (c *Memory) Invalidate(pattern string) int {
	c.mu.Lock()
	removed := 0
	for key := range c.entries {
		if matched, _ := path.Match(pattern, key); matched {
			delete(c.entries, key)
			removed++
		}
	}
	total := int64(len(c.entries))
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats.Evictions += int64(removed)
	c.stats.TotalKeys = total
	c.statsMu.Unlock()

	metrics.CacheInvalidations.WithLabelValues("memory").Add(float64(removed))
	return removed
}

// Clear removes all entries in one map replacement.
func (c *Memory) Clear() {
	c.mu.Lock()
	evictions := int64(len(c.entries))
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats.Evictions += evictions
	c.stats.TotalKeys = 0
	c.statsMu.Unlock()
}

// GetStats returns a copy of the current statistics.
func (c *Memory) GetStats() Stats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

// HitRate returns the cache hit rate as a percentage.
func (c *Memory) HitRate() float64 {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

// Close stops the cleanup janitor.
func (c *Memory) Close() error {
	close(c.stop)
	return nil
}

// cleanupLoop periodically removes expired entries until Close is called.
func (c *Memory) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stop:
			return
		}
	}
}

// cleanup removes all expired entries.
func (c *Memory) cleanup() {
	now := time.Now()
	c.mu.Lock()
	evictions := int64(0)
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			evictions++
		}
	}
	total := int64(len(c.entries))
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats.Evictions += evictions
	c.stats.TotalKeys = total
	c.stats.LastCleanup = now
	c.statsMu.Unlock()
}

func (c *Memory) recordHit() {
	c.statsMu.Lock()
	c.stats.Hits++
	c.statsMu.Unlock()
	metrics.CacheHits.WithLabelValues("memory").Inc()
}

func (c *Memory) recordMiss() {
	c.statsMu.Lock()
	c.stats.Misses++
	c.statsMu.Unlock()
	metrics.CacheMisses.WithLabelValues("memory").Inc()
}

func (c *Memory) recordEvictions(n int64) {
	c.statsMu.Lock()
	c.stats.Evictions += n
	c.statsMu.Unlock()
}
