// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

package cache

import (
	"testing"
	"time"
)

func newTestBadger(t *testing.T) *Badger {
	t.Helper()
	c, err := NewBadger(t.TempDir(), time.Minute)
	if err != nil {
		t.Fatalf("failed to open badger cache: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("failed to close badger cache: %v", err)
		}
	})
	return c
}

func TestBadgerBasicOperations(t *testing.T) {
	c := newTestBadger(t)

	c.Set("key1", []byte("value1"))
	value, exists := c.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist")
	}
	if string(value) != "value1" {
		t.Errorf("Expected value1, got %s", value)
	}

	_, exists = c.Get("missing")
	if exists {
		t.Error("Expected missing key to not exist")
	}
}

func TestBadgerTTLExpiration(t *testing.T) {
	c := newTestBadger(t)

	c.SetWithTTL("key1", []byte("value1"), 100*time.Millisecond)

	if _, exists := c.Get("key1"); !exists {
		t.Error("Expected key1 to exist before TTL elapsed")
	}

	time.Sleep(150 * time.Millisecond)

	if _, exists := c.Get("key1"); exists {
		t.Error("Expected key1 to be expired by badger TTL")
	}
}

func TestBadgerGetOrSet(t *testing.T) {
	c := newTestBadger(t)

	calls := 0
	populate := func() ([]byte, error) {
		calls++
		return []byte("computed"), nil
	}

	if _, cached, err := c.GetOrSet("key", 0, populate); err != nil || cached {
		t.Fatalf("first GetOrSet: cached=%v err=%v", cached, err)
	}
	if _, cached, err := c.GetOrSet("key", 0, populate); err != nil || !cached {
		t.Fatalf("second GetOrSet: cached=%v err=%v", cached, err)
	}
	if calls != 1 {
		t.Errorf("expected populate to run once, ran %d times", calls)
	}
}

func TestBadgerInvalidatePattern(t *testing.T) {
	c := newTestBadger(t)

	c.Set(ProfileKey(42, "shows"), []byte("a"))
	c.Set(ProfileKey(42, "stats"), []byte("b"))
	c.Set(ProfileKey(9, "shows"), []byte("c"))

	if removed := c.Invalidate(ProfilePattern(42)); removed != 2 {
		t.Errorf("expected 2 keys removed, got %d", removed)
	}
	if _, exists := c.Get(ProfileKey(9, "shows")); !exists {
		t.Error("expected unrelated profile key to survive")
	}
}

func TestBadgerSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	c, err := NewBadger(dir, time.Minute)
	if err != nil {
		t.Fatalf("failed to open badger cache: %v", err)
	}
	c.Set("persistent", []byte("value"))
	if err := c.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	c, err = NewBadger(dir, time.Minute)
	if err != nil {
		t.Fatalf("failed to reopen badger cache: %v", err)
	}
	defer c.Close()

	value, exists := c.Get("persistent")
	if !exists || string(value) != "value" {
		t.Errorf("expected persistent entry after reopen, got %q exists=%v", value, exists)
	}
}
