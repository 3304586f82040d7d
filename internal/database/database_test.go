// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/swbam/mysetlist-s4-sub007/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertArtist(t *testing.T, db *DB, name string) int64 {
	t.Helper()
	res, err := db.conn.Exec(`
		INSERT INTO artists (name, ticketing_id, musicmeta_id, trending_score, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		name, "tk-"+name, "mm-"+name, 0, time.Now().Unix())
	if err != nil {
		t.Fatalf("insert artist: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func insertShow(t *testing.T, db *DB, artistID int64, status string, date time.Time) int64 {
	t.Helper()
	res, err := db.conn.Exec(`
		INSERT INTO shows (artist_id, ticketing_id, date, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		artistID, "ev-1", date.Unix(), status, time.Now().Unix())
	if err != nil {
		t.Fatalf("insert show: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func TestApplySyncResultUpdatesFields(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	id := insertArtist(t, db, "band")

	name := "Updated Band"
	pop := 88
	rec := &models.Record{Name: &name, Popularity: &pop, Genres: []string{"rock", "indie"}}
	syncedAt := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	if err := db.ApplySyncResult(ctx, models.KindArtist, id, rec, syncedAt); err != nil {
		t.Fatalf("ApplySyncResult: %v", err)
	}

	var (
		gotName    string
		gotPop     int
		gotGenres  string
		lastSynced int64
	)
	err := db.conn.QueryRow(`SELECT name, popularity, genres, last_synced_at FROM artists WHERE id = ?`, id).
		Scan(&gotName, &gotPop, &gotGenres, &lastSynced)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if gotName != "Updated Band" || gotPop != 88 || gotGenres != "rock,indie" {
		t.Errorf("row = %q/%d/%q", gotName, gotPop, gotGenres)
	}
	if lastSynced != syncedAt.Unix() {
		t.Errorf("last_synced_at = %d, want %d", lastSynced, syncedAt.Unix())
	}
}

func TestApplySyncResultMonotonicTimestamp(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	id := insertArtist(t, db, "band")

	later := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	if err := db.ApplySyncResult(ctx, models.KindArtist, id, &models.Record{}, later); err != nil {
		t.Fatal(err)
	}
	// Out-of-order completion from a retried earlier request.
	if err := db.ApplySyncResult(ctx, models.KindArtist, id, &models.Record{}, earlier); err != nil {
		t.Fatal(err)
	}

	var lastSynced int64
	if err := db.conn.QueryRow(`SELECT last_synced_at FROM artists WHERE id = ?`, id).Scan(&lastSynced); err != nil {
		t.Fatal(err)
	}
	if lastSynced != later.Unix() {
		t.Errorf("last_synced_at = %d, want the newer %d to survive", lastSynced, later.Unix())
	}
}

func TestApplySyncResultMissingRow(t *testing.T) {
	db := testDB(t)
	err := db.ApplySyncResult(context.Background(), models.KindArtist, 9999, &models.Record{}, time.Now())
	if err == nil {
		t.Error("applying to a nonexistent row must fail")
	}
}

func TestApplyShowSyncStatusMapping(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	artistID := insertArtist(t, db, "band")
	showID := insertShow(t, db, artistID, "upcoming", time.Now().Add(48*time.Hour))

	status := "cancelled"
	if err := db.ApplySyncResult(ctx, models.KindShow, showID, &models.Record{Status: &status}, time.Now()); err != nil {
		t.Fatal(err)
	}

	var got string
	if err := db.conn.QueryRow(`SELECT status FROM shows WHERE id = ?`, showID).Scan(&got); err != nil {
		t.Fatal(err)
	}
	if got != string(models.ShowCanceled) {
		t.Errorf("status = %q, want %q", got, models.ShowCanceled)
	}
}

func TestArtistCandidatesUpcomingShowCount(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	withShows := insertArtist(t, db, "busy")
	insertShow(t, db, withShows, "upcoming", time.Now().Add(24*time.Hour))
	insertShow(t, db, withShows, "ongoing", time.Now())
	insertShow(t, db, withShows, "completed", time.Now().Add(-24*time.Hour))
	insertArtist(t, db, "idle")

	rows, err := db.ArtistCandidates(ctx)
	if err != nil {
		t.Fatalf("ArtistCandidates: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	byName := map[string]models.ArtistRow{}
	for _, r := range rows {
		byName[r.Name] = r
	}
	if got := byName["busy"].UpcomingShows; got != 2 {
		t.Errorf("busy upcoming shows = %d, want 2 (completed excluded)", got)
	}
	if got := byName["idle"].UpcomingShows; got != 0 {
		t.Errorf("idle upcoming shows = %d, want 0", got)
	}
	if byName["busy"].LastSyncedAt != nil {
		t.Error("never-synced artist should have nil LastSyncedAt")
	}
}

func TestShowCandidatesFiltersTerminalStatuses(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	artistID := insertArtist(t, db, "band")

	insertShow(t, db, artistID, "upcoming", time.Now().Add(24*time.Hour))
	insertShow(t, db, artistID, "ongoing", time.Now())
	insertShow(t, db, artistID, "completed", time.Now().Add(-24*time.Hour))
	insertShow(t, db, artistID, "canceled", time.Now().Add(24*time.Hour))

	rows, err := db.ShowCandidates(ctx)
	if err != nil {
		t.Fatalf("ShowCandidates: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d candidates, want only upcoming and ongoing", len(rows))
	}
}

func TestExternalIDPerSyncType(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	id := insertArtist(t, db, "band")

	cases := []struct {
		syncType models.SyncType
		want     string
	}{
		{models.SyncTicketing, "tk-band"},
		{models.SyncMusicMeta, "mm-band"},
		{models.SyncSetlists, "band"},
	}
	for _, tc := range cases {
		got, err := db.ExternalID(ctx, models.KindArtist, id, tc.syncType)
		if err != nil {
			t.Fatalf("ExternalID(%s): %v", tc.syncType, err)
		}
		if got != tc.want {
			t.Errorf("ExternalID(%s) = %q, want %q", tc.syncType, got, tc.want)
		}
	}

	if _, err := db.ExternalID(ctx, models.KindArtist, 9999, models.SyncMusicMeta); err == nil {
		t.Error("missing entity should error")
	}
}
