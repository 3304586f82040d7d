// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/swbam/mysetlist-s4-sub007/internal/models"
)

// ApplySyncResult maps a normalized fetch record onto the entity's row and
// advances last_synced_at, implementing the store write model.
//
// last_synced_at only moves forward: the UPDATE takes MAX(existing, new),
// so an out-of-order completion from a retried earlier request cannot
// clobber a newer timestamp.
func (db *DB) ApplySyncResult(ctx context.Context, kind models.EntityKind, entityID int64, rec *models.Record, syncedAt time.Time) error {
	switch kind {
	case models.KindArtist:
		return db.applyArtistSync(ctx, entityID, rec, syncedAt)
	case models.KindShow:
		return db.applyShowSync(ctx, entityID, rec, syncedAt)
	case models.KindVenue:
		return db.applyVenueSync(ctx, entityID, rec, syncedAt)
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}
}

func (db *DB) applyArtistSync(ctx context.Context, entityID int64, rec *models.Record, syncedAt time.Time) error {
	sets := []string{"last_synced_at = MAX(COALESCE(last_synced_at, 0), ?)"}
	args := []interface{}{syncedAt.Unix()}

	addSet := func(col string, val interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	if rec.Name != nil {
		addSet("name", *rec.Name)
	}
	if rec.Popularity != nil {
		addSet("popularity", *rec.Popularity)
	}
	if rec.Followers != nil {
		addSet("followers", *rec.Followers)
	}
	if len(rec.Genres) > 0 {
		addSet("genres", strings.Join(rec.Genres, ","))
	}
	if rec.ImageURL != nil {
		addSet("image_url", *rec.ImageURL)
	}
	if rec.SongCount != nil {
		addSet("setlist_count", *rec.SongCount)
	}
	if rec.LastSetlist != nil {
		addSet("last_setlist_at", rec.LastSetlist.Unix())
	}

	args = append(args, entityID)
	return db.exec(ctx, "artists", sets, args)
}

func (db *DB) applyShowSync(ctx context.Context, entityID int64, rec *models.Record, syncedAt time.Time) error {
	sets := []string{"last_synced_at = MAX(COALESCE(last_synced_at, 0), ?)"}
	args := []interface{}{syncedAt.Unix()}

	addSet := func(col string, val interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	if rec.Name != nil {
		addSet("title", *rec.Name)
	}
	if rec.Date != nil {
		addSet("date", rec.Date.Unix())
	}
	if rec.Status != nil {
		addSet("status", mapShowStatus(*rec.Status))
	}
	if rec.TicketURL != nil {
		addSet("ticket_url", *rec.TicketURL)
	}

	args = append(args, entityID)
	return db.exec(ctx, "shows", sets, args)
}

func (db *DB) applyVenueSync(ctx context.Context, entityID int64, rec *models.Record, syncedAt time.Time) error {
	sets := []string{"last_synced_at = MAX(COALESCE(last_synced_at, 0), ?)"}
	args := []interface{}{syncedAt.Unix()}

	addSet := func(col string, val interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	if rec.Name != nil {
		addSet("name", *rec.Name)
	}
	if rec.City != nil {
		addSet("city", *rec.City)
	}

	args = append(args, entityID)
	return db.exec(ctx, "venues", sets, args)
}

// exec runs the assembled UPDATE and verifies the row existed.
func (db *DB) exec(ctx context.Context, table string, sets []string, args []interface{}) error {
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s row %v not found", table, args[len(args)-1])
	}
	return nil
}

// mapShowStatus normalizes the ticketing catalog's status codes onto the
// show lifecycle.
func mapShowStatus(code string) string {
	switch strings.ToLower(code) {
	case "onsale", "offsale", "rescheduled":
		return string(models.ShowUpcoming)
	case "cancelled", "canceled":
		return string(models.ShowCanceled)
	default:
		return string(models.ShowUpcoming)
	}
}
