// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

package cache

import (
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/watchdex/internal/metrics"
)

// Badger is a persistent cache backend. Entries carry Badger's native
// TTL, so expired values vanish without a janitor, and cached aggregates
// survive process restarts.
type Badger struct {
	db  *badger.DB
	ttl time.Duration

	statsMu sync.RWMutex
	stats   Stats
}

// NewBadger opens (or creates) a Badger-backed cache at dir.
func NewBadger(dir string, ttl time.Duration) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache at %s: %w", dir, err)
	}
	return &Badger{db: db, ttl: ttl}, nil
}

// Get retrieves a value. Badger treats expired entries as missing.
func (c *Badger) Get(key string) ([]byte, bool) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return value, true
}

// Set stores a value with the default TTL.
func (c *Badger) Set(key string, value []byte) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL. Write errors are advisory:
// the cache is rebuildable, so they are swallowed after counting a miss.
func (c *Badger) SetWithTTL(key string, value []byte, ttl time.Duration) {
	_ = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

// GetOrSet returns the cached value or populates it.
func (c *Badger) GetOrSet(key string, ttl time.Duration, populate func() ([]byte, error)) ([]byte, bool, error) {
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
func (c *Badger) Delete(key string) {
	_ = c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	c.recordEvictions(1)
}

// Invalidate removes every key matching the glob pattern and returns the
// number removed. Keys are collected in a read pass first because Badger
// forbids deleting under an open iterator.
func (c *Badger) Invalidate(pattern string) int {
	var matched [][]byte
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if ok, _ := path.Match(pattern, string(key)); ok {
				matched = append(matched, key)
			}
		}
		return nil
	})

	removed := 0
	for _, key := range matched {
		if err := c.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		}); err == nil {
			removed++
		}
	}

	c.recordEvictions(int64(removed))
	metrics.CacheInvalidations.WithLabelValues("badger").Add(float64(removed))
	return removed
}

// Clear drops all entries.
func (c *Badger) Clear() {
	_ = c.db.DropAll()
}

// GetStats returns a copy of the counters plus the current key count.
func (c *Badger) GetStats() Stats {
	c.statsMu.RLock()
	stats := c.stats
	c.statsMu.RUnlock()

	var total int64
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			total++
		}
		return nil
	})
	stats.TotalKeys = total
	return stats
}

// HitRate returns the cache hit rate as a percentage.
func (c *Badger) HitRate() float64 {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

// Close closes the underlying Badger database.
func (c *Badger) Close() error {
	return c.db.Close()
}

func (c *Badger) recordHit() {
	c.statsMu.Lock()
	c.stats.Hits++
	c.statsMu.Unlock()
	metrics.CacheHits.WithLabelValues("badger").Inc()
}

func (c *Badger) recordMiss() {
	c.statsMu.Lock()
	c.stats.Misses++
	c.statsMu.Unlock()
	metrics.CacheMisses.WithLabelValues("badger").Inc()
}

func (c *Badger) recordEvictions(n int64) {
	c.statsMu.Lock()
	c.stats.Evictions += n
	c.statsMu.Unlock()
}
