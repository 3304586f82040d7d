// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/swbam/mysetlist-s4-sub007/internal/models"
)

// ArtistCandidates returns every tracked artist with an upcoming-show
// count joined in, implementing the freshness read model.
func (db *DB) ArtistCandidates(ctx context.Context) ([]models.ArtistRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT a.id, a.name, a.ticketing_id, a.musicmeta_id,
		       a.trending_score, a.popularity, a.followers,
		       COUNT(s.id) AS upcoming_shows,
		       a.last_synced_at, a.created_at
		  FROM artists a
		  LEFT JOIN shows s ON s.artist_id = a.id AND s.status IN ('upcoming', 'ongoing')
		 GROUP BY a.id
		 ORDER BY a.id`)
	if err != nil {
		return nil, fmt.Errorf("query artist candidates: %w", err)
	}
	defer rows.Close()

	var out []models.ArtistRow
	for rows.Next() {
		var (
			a          models.ArtistRow
			lastSynced sql.NullInt64
			createdAt  int64
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.TicketingID, &a.MusicMetaID,
			&a.TrendingScore, &a.Popularity, &a.Followers,
			&a.UpcomingShows, &lastSynced, &createdAt); err != nil {
			return nil, fmt.Errorf("scan artist row: %w", err)
		}
		a.LastSyncedAt = nullableTime(lastSynced)
		a.CreatedAt = unixUTC(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ShowCandidates returns upcoming and ongoing shows.
func (db *DB) ShowCandidates(ctx context.Context) ([]models.ShowRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, artist_id, COALESCE(venue_id, 0), ticketing_id,
		       date, status, last_synced_at, created_at
		  FROM shows
		 WHERE status IN ('upcoming', 'ongoing')
		 ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("query show candidates: %w", err)
	}
	defer rows.Close()

	var out []models.ShowRow
	for rows.Next() {
		var (
			s          models.ShowRow
			date       int64
			lastSynced sql.NullInt64
			createdAt  int64
		)
		if err := rows.Scan(&s.ID, &s.ArtistID, &s.VenueID, &s.TicketingID,
			&date, &s.Status, &lastSynced, &createdAt); err != nil {
			return nil, fmt.Errorf("scan show row: %w", err)
		}
		s.Date = unixUTC(date)
		s.LastSyncedAt = nullableTime(lastSynced)
		s.CreatedAt = unixUTC(createdAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

// VenueCandidates returns venues with at least one show on record.
func (db *DB) VenueCandidates(ctx context.Context) ([]models.VenueRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT v.id, v.name, v.city, v.ticketing_id,
		       SUM(CASE WHEN s.status IN ('upcoming', 'ongoing') THEN 1 ELSE 0 END),
		       v.last_synced_at, v.created_at
		  FROM venues v
		  JOIN shows s ON s.venue_id = v.id
		 GROUP BY v.id
		 ORDER BY v.id`)
	if err != nil {
		return nil, fmt.Errorf("query venue candidates: %w", err)
	}
	defer rows.Close()

	var out []models.VenueRow
	for rows.Next() {
		var (
			v          models.VenueRow
			lastSynced sql.NullInt64
			createdAt  int64
		)
		if err := rows.Scan(&v.ID, &v.Name, &v.City, &v.TicketingID,
			&v.UpcomingShows, &lastSynced, &createdAt); err != nil {
			return nil, fmt.Errorf("scan venue row: %w", err)
		}
		v.LastSyncedAt = nullableTime(lastSynced)
		v.CreatedAt = unixUTC(createdAt)
		out = append(out, v)
	}
	return out, rows.Err()
}

// ExternalID resolves the external identifier and display name for a
// single entity, for force-refresh requests that bypass the evaluator.
func (db *DB) ExternalID(ctx context.Context, kind models.EntityKind, entityID int64, syncType models.SyncType) (string, error) {
	var (
		query string
		args  = []interface{}{entityID}
	)
	switch kind {
	case models.KindArtist:
		switch syncType {
		case models.SyncMusicMeta:
			query = `SELECT musicmeta_id FROM artists WHERE id = ?`
		case models.SyncSetlists:
			query = `SELECT name FROM artists WHERE id = ?`
		default:
			query = `SELECT ticketing_id FROM artists WHERE id = ?`
		}
	case models.KindShow:
		query = `SELECT ticketing_id FROM shows WHERE id = ?`
	case models.KindVenue:
		query = `SELECT ticketing_id FROM venues WHERE id = ?`
	default:
		return "", fmt.Errorf("unknown entity kind %q", kind)
	}

	var externalID string
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(&externalID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%s %d not found", kind, entityID)
	}
	if err != nil {
		return "", fmt.Errorf("resolve external id: %w", err)
	}
	return externalID, nil
}
