// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

// Package database provides SQLite storage for the sync engine's read and
// write models. Timestamps are stored as unix epoch seconds so the
// set-only-if-newer comparison on last_synced_at is a plain integer
// comparison inside one UPDATE.
package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// WAL mode for better concurrency between the evaluator's reads and
	// the executor's write-backs.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		ticketing_id TEXT DEFAULT '',
		musicmeta_id TEXT DEFAULT '',
		trending_score REAL DEFAULT 0,
		popularity INTEGER DEFAULT 0,
		followers INTEGER DEFAULT 0,
		image_url TEXT DEFAULT '',
		genres TEXT DEFAULT '',
		setlist_count INTEGER DEFAULT 0,
		last_setlist_at INTEGER,
		last_synced_at INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS venues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		city TEXT DEFAULT '',
		ticketing_id TEXT DEFAULT '',
		last_synced_at INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS shows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		artist_id INTEGER NOT NULL REFERENCES artists(id) ON DELETE CASCADE,
		venue_id INTEGER REFERENCES venues(id),
		ticketing_id TEXT DEFAULT '',
		title TEXT DEFAULT '',
		date INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'upcoming',
		ticket_url TEXT DEFAULT '',
		last_synced_at INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_shows_status_date ON shows(status, date);
	CREATE INDEX IF NOT EXISTS idx_shows_venue ON shows(venue_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// unixUTC converts epoch seconds to time.Time in UTC.
func unixUTC(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}

// nullableTime converts an epoch-seconds column to *time.Time.
func nullableTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
