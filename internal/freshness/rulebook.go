// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package freshness

import (
	"time"

	"github.com/swbam/mysetlist-s4-sub007/internal/models"
)

// ShowView is the evaluation snapshot for a show. The evaluator computes
// the derived fields with its own clock so rule conditions stay pure.
type ShowView struct {
	models.ShowRow

	// DaysUntilShow is the number of days from the evaluation instant to
	// the show date; negative for past shows.
	DaysUntilShow float64
}

// RuleBook holds the configured rule sets for all entity kinds. Rule order
// within a set is significant only for tie-breaking between equal
// priorities.
type RuleBook struct {
	Artists []Rule[models.ArtistRow]
	Shows   []Rule[ShowView]
	Venues  []Rule[models.VenueRow]
}

// DefaultRuleBook returns the production rule sets.
//
// Every set ends with a catch-all rule (condition always true, lowest
// priority) guaranteeing eventual resync regardless of other matches.
func DefaultRuleBook() *RuleBook {
	return &RuleBook{
		Artists: []Rule[models.ArtistRow]{
			{
				Description: "Trending artists need frequent updates",
				Condition:   func(a models.ArtistRow) bool { return a.TrendingScore > 50 },
				MaxAge:      6 * time.Hour,
				Priority:    9,
				SyncType:    models.SyncMusicMeta,
			},
			{
				Description: "Popular artists need regular updates",
				Condition:   func(a models.ArtistRow) bool { return a.Popularity > 75 || a.Followers > 1_000_000 },
				MaxAge:      12 * time.Hour,
				Priority:    7,
				SyncType:    models.SyncMusicMeta,
			},
			{
				Description: "Artists with upcoming shows need current data",
				Condition:   func(a models.ArtistRow) bool { return a.UpcomingShows > 0 },
				MaxAge:      24 * time.Hour,
				Priority:    6,
				SyncType:    models.SyncTicketing,
			},
			{
				Description: "Setlist archive refresh",
				Condition:   func(models.ArtistRow) bool { return true },
				MaxAge:      72 * time.Hour,
				Priority:    3,
				SyncType:    models.SyncSetlists,
			},
			{
				Description: "Regular refresh for all artists",
				Condition:   func(models.ArtistRow) bool { return true },
				MaxAge:      7 * 24 * time.Hour,
				Priority:    1,
				SyncType:    models.SyncMusicMeta,
			},
		},
		Shows: []Rule[ShowView]{
			{
				Description: "Shows happening today need live updates",
				Condition: func(s ShowView) bool {
					return s.Status == models.ShowOngoing
				},
				MaxAge:   time.Hour,
				Priority: 9,
				SyncType: models.SyncTicketing,
			},
			{
				Description: "Shows within a week need fresh data",
				Condition: func(s ShowView) bool {
					return s.DaysUntilShow >= 0 && s.DaysUntilShow <= 7
				},
				MaxAge:   4 * time.Hour,
				Priority: 8,
				SyncType: models.SyncTicketing,
			},
			{
				Description: "Shows within a month need periodic checks",
				Condition: func(s ShowView) bool {
					return s.DaysUntilShow > 7 && s.DaysUntilShow <= 30
				},
				MaxAge:   24 * time.Hour,
				Priority: 5,
				SyncType: models.SyncTicketing,
			},
			{
				Description: "Regular refresh for tracked shows",
				Condition:   func(ShowView) bool { return true },
				MaxAge:      48 * time.Hour,
				Priority:    1,
				SyncType:    models.SyncTicketing,
			},
		},
		Venues: []Rule[models.VenueRow]{
			{
				Description: "Venues with upcoming shows need current data",
				Condition:   func(v models.VenueRow) bool { return v.UpcomingShows > 0 },
				MaxAge:      48 * time.Hour,
				Priority:    4,
				SyncType:    models.SyncTicketing,
			},
			{
				Description: "Regular refresh for all venues",
				Condition:   func(models.VenueRow) bool { return true },
				MaxAge:      14 * 24 * time.Hour,
				Priority:    1,
				SyncType:    models.SyncTicketing,
			},
		},
	}
}
