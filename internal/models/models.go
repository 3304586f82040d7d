// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

// Package models defines the entity rows the sync engine reads from the
// store and the normalized records it receives from upstream sources.
package models

import "time"

// EntityKind identifies a tracked entity type.
type EntityKind string

const (
	KindArtist EntityKind = "artist"
	KindShow   EntityKind = "show"
	KindVenue  EntityKind = "venue"
)

// SyncType identifies which upstream source a sync job targets.
type SyncType string

const (
	SyncTicketing SyncType = "ticketing" // events/attractions catalog
	SyncMusicMeta SyncType = "musicmeta" // artist metadata catalog
	SyncSetlists  SyncType = "setlists"  // setlist archive
)

// ShowStatus is the lifecycle state of a show.
type ShowStatus string

const (
	ShowUpcoming  ShowStatus = "upcoming"
	ShowOngoing   ShowStatus = "ongoing"
	ShowCompleted ShowStatus = "completed"
	ShowCanceled  ShowStatus = "canceled"
)

// ArtistRow is the freshness read model for an artist.
type ArtistRow struct {
	ID            int64
	Name          string
	TicketingID   string // external attraction id
	MusicMetaID   string // external catalog artist id
	TrendingScore float64
	Popularity    int
	Followers     int
	UpcomingShows int
	LastSyncedAt  *time.Time
	CreatedAt     time.Time
}

// ShowRow is the freshness read model for a show.
type ShowRow struct {
	ID           int64
	ArtistID     int64
	VenueID      int64
	TicketingID  string // external event id
	Date         time.Time
	Status       ShowStatus
	LastSyncedAt *time.Time
	CreatedAt    time.Time
}

// DaysUntil returns the number of days from now until the show date.
// Negative for past shows.
func (s ShowRow) DaysUntil(now time.Time) float64 {
	return s.Date.Sub(now).Hours() / 24
}

// VenueRow is the freshness read model for a venue.
type VenueRow struct {
	ID            int64
	Name          string
	City          string
	TicketingID   string // external venue id
	UpcomingShows int
	LastSyncedAt  *time.Time
	CreatedAt     time.Time
}

// Record is the normalized result of one upstream fetch. Fields are
// pointers so the store write model can distinguish "absent from response"
// from zero values; each source populates the subset it knows about.
type Record struct {
	Source      SyncType
	ExternalID  string
	Name        *string
	Popularity  *int
	Followers   *int
	Genres      []string
	ImageURL    *string
	Date        *time.Time
	Status      *string
	TicketURL   *string
	VenueName   *string
	City        *string
	SetlistID   *string
	SongCount   *int
	LastSetlist *time.Time
	FetchedAt   time.Time
}
