// Watchdex - Watch Status Tracking for Episodic Media
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchdex

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/watchdex/internal/config"
	"github.com/tomtom215/watchdex/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(&config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func timePtr(t time.Time) *time.Time { return &t }

// seedCatalog installs a small fixture:
//
//	profile 1 (account 10)
//	show 1 "Slow Horses"
//	  season 101: episodes 1001, 1002 (both aired)
//	  season 102: episodes 1003 (aired), 1004 (unaired)
//	  season 103: episode  1005 (unaired)
func seedCatalog(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()

	past := timePtr(time.Now().Add(-30 * 24 * time.Hour))
	future := timePtr(time.Now().Add(30 * 24 * time.Hour))

	fixtures := []func() error{
		func() error {
			return db.UpsertProfile(ctx, models.Profile{ID: 1, AccountID: 10, Name: "river"})
		},
		func() error {
			return db.UpsertShow(ctx, models.Show{ID: 1, Title: "Slow Horses"})
		},
		func() error {
			return db.UpsertSeason(ctx, models.Season{ID: 101, ShowID: 1, Number: 1, AirDate: past})
		},
		func() error {
			return db.UpsertSeason(ctx, models.Season{ID: 102, ShowID: 1, Number: 2, AirDate: past})
		},
		func() error {
			return db.UpsertSeason(ctx, models.Season{ID: 103, ShowID: 1, Number: 3, AirDate: future})
		},
		func() error {
			return db.UpsertEpisode(ctx, models.Episode{ID: 1001, SeasonID: 101, Number: 1, AirDate: past})
		},
		func() error {
			return db.UpsertEpisode(ctx, models.Episode{ID: 1002, SeasonID: 101, Number: 2, AirDate: past})
		},
		func() error {
			return db.UpsertEpisode(ctx, models.Episode{ID: 1003, SeasonID: 102, Number: 1, AirDate: past})
		},
		func() error {
			return db.UpsertEpisode(ctx, models.Episode{ID: 1004, SeasonID: 102, Number: 2, AirDate: future})
		},
		func() error {
			return db.UpsertEpisode(ctx, models.Episode{ID: 1005, SeasonID: 103, Number: 1, AirDate: future})
		},
	}
	for _, fn := range fixtures {
		if err := fn(); err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
	}
}

// favorite seeds the full status subtree for profile 1 / show 1 inside a
// transaction, the way the tracking engine does it.
func favorite(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(ctx context.Context, tx Queryer) error {
		if _, err := db.InsertShowStatus(ctx, tx, 1, 1, models.StatusNotWatched); err != nil {
			return err
		}
		if _, err := db.InsertSeasonStatusesForShow(ctx, tx, 1, 1, models.StatusNotWatched); err != nil {
			return err
		}
		seasonIDs, err := db.SeasonIDsForShow(ctx, tx, 1)
		if err != nil {
			return err
		}
		_, err = db.InsertEpisodeStatusesForSeasons(ctx, tx, 1, seasonIDs, models.StatusNotWatched)
		return err
	})
	if err != nil {
		t.Fatalf("favorite transaction: %v", err)
	}
}

func TestNewAndPing(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTransaction(ctx, func(ctx context.Context, tx Queryer) error {
		if _, err := db.InsertShowStatus(ctx, tx, 1, 1, models.StatusNotWatched); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTransaction() error = %v, want %v", err, boom)
	}

	_, tracked, err := db.GetStatus(ctx, db.Conn(), models.LevelShow, 1, 1)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if tracked {
		t.Error("show status row survived a rolled-back transaction")
	}
}

func TestFavoriteSeedsWholeSubtree(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	favorite(t, db)
	ctx := context.Background()
	conn := db.Conn()

	status, tracked, err := db.GetStatus(ctx, conn, models.LevelShow, 1, 1)
	if err != nil || !tracked {
		t.Fatalf("GetStatus(show) = %v, tracked=%v", err, tracked)
	}
	if status != models.StatusNotWatched {
		t.Errorf("show status = %s, want %s", status, models.StatusNotWatched)
	}

	for _, seasonID := range []int64{101, 102, 103} {
		if _, tracked, err := db.GetStatus(ctx, conn, models.LevelSeason, 1, seasonID); err != nil || !tracked {
			t.Errorf("season %d not tracked after favorite (err=%v)", seasonID, err)
		}
	}
	for _, episodeID := range []int64{1001, 1002, 1003, 1004, 1005} {
		if _, tracked, err := db.GetStatus(ctx, conn, models.LevelEpisode, 1, episodeID); err != nil || !tracked {
			t.Errorf("episode %d not tracked after favorite (err=%v)", episodeID, err)
		}
	}
}

func TestFavoriteIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	favorite(t, db)

	ctx := context.Background()
	var rows int64
	err := db.WithTransaction(ctx, func(ctx context.Context, tx Queryer) error {
		n, err := db.InsertShowStatus(ctx, tx, 1, 1, models.StatusNotWatched)
		rows = n
		return err
	})
	if err != nil {
		t.Fatalf("second favorite: %v", err)
	}
	if rows != 0 {
		t.Errorf("re-favorite inserted %d rows, want 0", rows)
	}
}

func TestSeasonTallyBuckets(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	favorite(t, db)
	ctx := context.Background()
	conn := db.Conn()

	// Season 101 fully aired and watched; season 102 watched but still
	// airing; season 103 unaired and excluded from the tally.
	mustUpdate := func(level models.Level, nodeID int64, status models.Status) {
		t.Helper()
		if _, err := db.UpdateStatus(ctx, conn, level, 1, nodeID, status); err != nil {
			t.Fatalf("UpdateStatus(%s, %d): %v", level, nodeID, err)
		}
	}
	mustUpdate(models.LevelSeason, 101, models.StatusWatched)
	mustUpdate(models.LevelSeason, 102, models.StatusWatched)
	mustUpdate(models.LevelSeason, 103, models.StatusUnaired)

	tally, err := db.SeasonTally(ctx, conn, 1, 1)
	if err != nil {
		t.Fatalf("SeasonTally() error = %v", err)
	}
	want := models.SeasonTally{Watched: 1, UpToDate: 1, Total: 2}
	if tally != want {
		t.Errorf("SeasonTally() = %+v, want %+v", tally, want)
	}

	unaired, err := db.HasUnairedSeasons(ctx, conn, 1, 1)
	if err != nil {
		t.Fatalf("HasUnairedSeasons() error = %v", err)
	}
	if !unaired {
		t.Error("HasUnairedSeasons() = false, want true")
	}
}

func TestEpisodeTallyForSeason(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	favorite(t, db)
	ctx := context.Background()
	conn := db.Conn()

	// Season 102: episode 1003 aired+watched, 1004 unaired.
	if _, err := db.UpdateStatus(ctx, conn, models.LevelEpisode, 1, 1003, models.StatusWatched); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	tally, err := db.EpisodeTallyForSeason(ctx, conn, 1, 102)
	if err != nil {
		t.Fatalf("EpisodeTallyForSeason() error = %v", err)
	}
	want := EpisodeTally{WatchedAired: 1, AiredTotal: 1, Watched: 1, Total: 2}
	if tally != want {
		t.Errorf("EpisodeTallyForSeason() = %+v, want %+v", tally, want)
	}
}

func TestBulkUpdatesScopeToShow(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	favorite(t, db)
	ctx := context.Background()

	// Second show tracked by the same profile must not be touched.
	if err := db.UpsertShow(ctx, models.Show{ID: 2, Title: "Severance"}); err != nil {
		t.Fatal(err)
	}
	past := timePtr(time.Now().Add(-time.Hour))
	if err := db.UpsertSeason(ctx, models.Season{ID: 201, ShowID: 2, Number: 1, AirDate: past}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertEpisode(ctx, models.Episode{ID: 2001, SeasonID: 201, Number: 1, AirDate: past}); err != nil {
		t.Fatal(err)
	}
	conn := db.Conn()
	if _, err := db.InsertShowStatus(ctx, conn, 1, 2, models.StatusNotWatched); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertSeasonStatusesForShow(ctx, conn, 1, 2, models.StatusNotWatched); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertEpisodeStatusesForSeasons(ctx, conn, 1, []int64{201}, models.StatusNotWatched); err != nil {
		t.Fatal(err)
	}

	n, err := db.UpdateSeasonStatusesByShow(ctx, conn, 1, 1, models.StatusWatched)
	if err != nil {
		t.Fatalf("UpdateSeasonStatusesByShow() error = %v", err)
	}
	if n != 3 {
		t.Errorf("season rows updated = %d, want 3", n)
	}
	n, err = db.UpdateEpisodeStatusesByShow(ctx, conn, 1, 1, models.StatusWatched)
	if err != nil {
		t.Fatalf("UpdateEpisodeStatusesByShow() error = %v", err)
	}
	if n != 5 {
		t.Errorf("episode rows updated = %d, want 5", n)
	}

	status, _, err := db.GetStatus(ctx, conn, models.LevelSeason, 1, 201)
	if err != nil {
		t.Fatal(err)
	}
	if status != models.StatusNotWatched {
		t.Errorf("other show's season status = %s, want %s", status, models.StatusNotWatched)
	}
}

func TestUnfavoriteRemovesChildFirst(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	favorite(t, db)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(ctx context.Context, tx Queryer) error {
		seasonIDs, err := db.SeasonIDsForShow(ctx, tx, 1)
		if err != nil {
			return err
		}
		if _, err := db.DeleteEpisodeStatusesBySeasons(ctx, tx, 1, seasonIDs); err != nil {
			return err
		}
		if _, err := db.DeleteSeasonStatusesByShow(ctx, tx, 1, 1); err != nil {
			return err
		}
		_, err = db.DeleteShowStatus(ctx, tx, 1, 1)
		return err
	})
	if err != nil {
		t.Fatalf("unfavorite transaction: %v", err)
	}

	conn := db.Conn()
	for _, check := range []struct {
		level  models.Level
		nodeID int64
	}{
		{models.LevelShow, 1},
		{models.LevelSeason, 101},
		{models.LevelEpisode, 1001},
	} {
		if _, tracked, err := db.GetStatus(ctx, conn, check.level, 1, check.nodeID); err != nil || tracked {
			t.Errorf("%s %d still tracked after unfavorite (err=%v)", check.level, check.nodeID, err)
		}
	}
}

func TestInsertMissingEpisodeStatuses(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	favorite(t, db)
	ctx := context.Background()
	conn := db.Conn()

	// New episode lands in season 101 after the profile favorited.
	aired := timePtr(time.Now().Add(-time.Hour))
	if err := db.UpsertEpisode(ctx, models.Episode{ID: 1006, SeasonID: 101, Number: 3, AirDate: aired}); err != nil {
		t.Fatal(err)
	}

	n, err := db.InsertMissingEpisodeStatuses(ctx, conn, 1, 101)
	if err != nil {
		t.Fatalf("InsertMissingEpisodeStatuses() error = %v", err)
	}
	if n != 1 {
		t.Errorf("rows inserted = %d, want 1", n)
	}

	status, tracked, err := db.GetStatus(ctx, conn, models.LevelEpisode, 1, 1006)
	if err != nil || !tracked {
		t.Fatalf("new episode untracked (err=%v)", err)
	}
	if status != models.StatusNotWatched {
		t.Errorf("seeded status = %s, want %s", status, models.StatusNotWatched)
	}
}

func TestWatchedSeasonsWithNewEpisodes(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	favorite(t, db)
	ctx := context.Background()
	conn := db.Conn()

	if _, err := db.UpdateStatus(ctx, conn, models.LevelSeason, 1, 101, models.StatusWatched); err != nil {
		t.Fatal(err)
	}

	refs, err := db.WatchedSeasonsWithNewEpisodes(ctx)
	if err != nil {
		t.Fatalf("WatchedSeasonsWithNewEpisodes() error = %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("found %d demotion candidates before new episode, want 0", len(refs))
	}

	aired := timePtr(time.Now().Add(-time.Hour))
	if err := db.UpsertEpisode(ctx, models.Episode{ID: 1006, SeasonID: 101, Number: 3, AirDate: aired}); err != nil {
		t.Fatal(err)
	}

	refs, err = db.WatchedSeasonsWithNewEpisodes(ctx)
	if err != nil {
		t.Fatalf("WatchedSeasonsWithNewEpisodes() error = %v", err)
	}
	if len(refs) != 1 || refs[0] != (TrackedSeasonRef{ProfileID: 1, SeasonID: 101}) {
		t.Errorf("demotion candidates = %+v, want [{1 101}]", refs)
	}
}

func TestOwnershipLookups(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	ctx := context.Background()
	conn := db.Conn()

	showID, err := db.OwningShowOfSeason(ctx, conn, 102)
	if err != nil {
		t.Fatalf("OwningShowOfSeason() error = %v", err)
	}
	if showID != 1 {
		t.Errorf("OwningShowOfSeason(102) = %d, want 1", showID)
	}

	seasonID, err := db.OwningSeasonOfEpisode(ctx, conn, 1004)
	if err != nil {
		t.Fatalf("OwningSeasonOfEpisode() error = %v", err)
	}
	if seasonID != 102 {
		t.Errorf("OwningSeasonOfEpisode(1004) = %d, want 102", seasonID)
	}

	if _, err := db.OwningShowOfSeason(ctx, conn, 999); err == nil {
		t.Error("OwningShowOfSeason(999) returned nil error for unknown season")
	}

	accountID, err := db.AccountIDForProfile(ctx, conn, 1)
	if err != nil {
		t.Fatalf("AccountIDForProfile() error = %v", err)
	}
	if accountID != 10 {
		t.Errorf("AccountIDForProfile(1) = %d, want 10", accountID)
	}
}

func TestTrackedShows(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	favorite(t, db)
	ctx := context.Background()

	tracked, err := db.TrackedShows(ctx, 1)
	if err != nil {
		t.Fatalf("TrackedShows() error = %v", err)
	}
	if len(tracked) != 1 {
		t.Fatalf("TrackedShows() returned %d shows, want 1", len(tracked))
	}
	if tracked[0].Title != "Slow Horses" || tracked[0].Status != models.StatusNotWatched {
		t.Errorf("TrackedShows()[0] = %+v", tracked[0])
	}
}
