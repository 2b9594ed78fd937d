// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

package cache

import (
	"errors"
	"testing"
	"time"
)

func TestMemoryBasicOperations(t *testing.T) {
	c := NewMemory(1 * time.Minute)
	defer c.Close()

	c.Set("key1", []byte("value1"))
	value, exists := c.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist")
	}
	if string(value) != "value1" {
		t.Errorf("Expected value1, got %s", value)
	}

	_, exists = c.Get("key2")
	if exists {
		t.Error("Expected key2 to not exist")
	}
}

func TestMemoryExpiration(t *testing.T) {
	c := NewMemory(50 * time.Millisecond)
	defer c.Close()

	c.Set("key1", []byte("value1"))

	_, exists := c.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist immediately after set")
	}

	time.Sleep(80 * time.Millisecond)

	_, exists = c.Get("key1")
	if exists {
		t.Error("Expected key1 to be expired")
	}
}

func TestMemoryGetOrSetPopulatesOnce(t *testing.T) {
	c := NewMemory(1 * time.Minute)
	defer c.Close()

	calls := 0
	populate := func() ([]byte, error) {
		calls++
		return []byte("computed"), nil
	}

	value, cached, err := c.GetOrSet("key", 0, populate)
	if err != nil {
		t.Fatalf("GetOrSet failed: %v", err)
	}
	if cached {
		t.Error("first GetOrSet should not report cached")
	}
	if string(value) != "computed" {
		t.Errorf("expected computed, got %s", value)
	}

	value, cached, err = c.GetOrSet("key", 0, populate)
	if err != nil {
		t.Fatalf("GetOrSet failed: %v", err)
	}
	if !cached {
		t.Error("second GetOrSet should report cached")
	}
	if string(value) != "computed" {
		t.Errorf("expected computed, got %s", value)
	}
	if calls != 1 {
		t.Errorf("expected populate to run once, ran %d times", calls)
	}
}

func TestMemoryGetOrSetPopulateError(t *testing.T) {
	c := NewMemory(1 * time.Minute)
	defer c.Close()

	wantErr := errors.New("query failed")
	_, _, err := c.GetOrSet("key", 0, func() ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected populate error to pass through, got %v", err)
	}

	// Nothing must be stored after a populate failure.
	if _, exists := c.Get("key"); exists {
		t.Error("expected no entry after populate error")
	}
}

func TestMemoryInvalidatePattern(t *testing.T) {
	c := NewMemory(1 * time.Minute)
	defer c.Close()

	c.Set(ProfileKey(42, "shows"), []byte("a"))
	c.Set(ProfileKey(42, "stats"), []byte("b"))
	c.Set(ProfileKey(7, "shows"), []byte("c"))
	c.Set(AccountKey(1, "stats"), []byte("d"))

	removed := c.Invalidate(ProfilePattern(42))
	if removed != 2 {
		t.Errorf("expected 2 keys removed, got %d", removed)
	}

	if _, exists := c.Get(ProfileKey(42, "shows")); exists {
		t.Error("expected profile_42_shows to be invalidated")
	}
	if _, exists := c.Get(ProfileKey(42, "stats")); exists {
		t.Error("expected profile_42_stats to be invalidated")
	}
	if _, exists := c.Get(ProfileKey(7, "shows")); !exists {
		t.Error("expected profile_7_shows to survive")
	}
	if _, exists := c.Get(AccountKey(1, "stats")); !exists {
		t.Error("expected account_1_stats to survive")
	}
}

func TestMemoryInvalidateExactKey(t *testing.T) {
	c := NewMemory(1 * time.Minute)
	defer c.Close()

	c.Set("profile_42_shows", []byte("a"))
	if removed := c.Invalidate("profile_42_shows"); removed != 1 {
		t.Errorf("expected exact-key invalidation to remove 1, got %d", removed)
	}
}

func TestMemoryClear(t *testing.T) {
	c := NewMemory(1 * time.Minute)
	defer c.Close()

	c.Set("key1", []byte("a"))
	c.Set("key2", []byte("b"))
	c.Clear()

	for _, key := range []string{"key1", "key2"} {
		if _, exists := c.Get(key); exists {
			t.Errorf("Expected %s to be cleared", key)
		}
	}
}

func TestMemoryStats(t *testing.T) {
	c := NewMemory(1 * time.Minute)
	defer c.Close()

	c.Set("key1", []byte("a"))
	c.Get("key1") // hit
	c.Get("key2") // miss
	c.Get("key1") // hit

	stats := c.GetStats()
	if stats.Hits != 2 {
		t.Errorf("Expected 2 hits, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", stats.Misses)
	}

	if rate := c.HitRate(); rate < 66.0 || rate > 67.0 {
		t.Errorf("Expected hit rate around 66.7, got %.2f", rate)
	}
}

func TestKeyShapes(t *testing.T) {
	if got := ProfileKey(42, "shows"); got != "profile_42_shows" {
		t.Errorf("ProfileKey = %q", got)
	}
	if got := AccountKey(7, "stats"); got != "account_7_stats" {
		t.Errorf("AccountKey = %q", got)
	}
	if got := ProfilePattern(42); got != "profile_42_*" {
		t.Errorf("ProfilePattern = %q", got)
	}
	if got := AccountPattern(7); got != "account_7_*" {
		t.Errorf("AccountPattern = %q", got)
	}
}
