// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package freshness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/swbam/mysetlist-s4-sub007/internal/models"
	"github.com/swbam/mysetlist-s4-sub007/internal/queue"
)

type fakeStore struct {
	artists    []models.ArtistRow
	shows      []models.ShowRow
	venues     []models.VenueRow
	artistsErr error
	showsErr   error
	venuesErr  error
}

func (s *fakeStore) ArtistCandidates(ctx context.Context) ([]models.ArtistRow, error) {
	return s.artists, s.artistsErr
}

func (s *fakeStore) ShowCandidates(ctx context.Context) ([]models.ShowRow, error) {
	return s.shows, s.showsErr
}

func (s *fakeStore) VenueCandidates(ctx context.Context) ([]models.VenueRow, error) {
	return s.venues, s.venuesErr
}

type fakeScheduler struct {
	jobs   []queue.SyncJob
	reject bool
}

func (s *fakeScheduler) Enqueue(job queue.SyncJob) bool {
	if s.reject {
		return false
	}
	s.jobs = append(s.jobs, job)
	return true
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCheckAndScheduleSyncsSchedulesStaleEntities(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-time.Hour)

	store := &fakeStore{
		artists: []models.ArtistRow{
			{ID: 1, Name: "Stale Trending", MusicMetaID: "mm-1", TrendingScore: 80, LastSyncedAt: nil},
			{ID: 2, Name: "Fresh", MusicMetaID: "mm-2", TrendingScore: 80, LastSyncedAt: &fresh},
		},
	}
	sched := &fakeScheduler{}
	e := NewEvaluator(store, sched, DefaultRuleBook(),
		BatchLimits{Artists: 10, Shows: 10, Venues: 10},
		time.Minute, WithEvaluatorClock(fixedClock(now)))

	report := e.CheckAndScheduleSyncs(context.Background())

	if report.TotalEntities != 2 {
		t.Errorf("total = %d, want 2", report.TotalEntities)
	}
	if report.StaleEntities != 1 || report.ScheduledSyncs != 1 {
		t.Errorf("stale/scheduled = %d/%d, want 1/1", report.StaleEntities, report.ScheduledSyncs)
	}
	if len(sched.jobs) != 1 {
		t.Fatalf("enqueued %d jobs, want 1", len(sched.jobs))
	}
	job := sched.jobs[0]
	if job.Kind != models.KindArtist || job.EntityID != 1 {
		t.Errorf("scheduled wrong entity: %+v", job)
	}
	if job.ExternalID != "mm-1" || job.SyncType != models.SyncMusicMeta || job.Priority != 9 {
		t.Errorf("job fields: %+v", job)
	}
}

func TestCheckAndScheduleSyncsBatchCap(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	// Five never-synced artists, capped at two per pass. The higher
	// priority entries must survive the truncation.
	store := &fakeStore{
		artists: []models.ArtistRow{
			{ID: 1, Name: "a", MusicMetaID: "mm-1"},
			{ID: 2, Name: "b", MusicMetaID: "mm-2"},
			{ID: 3, Name: "c", MusicMetaID: "mm-3", TrendingScore: 90},
			{ID: 4, Name: "d", MusicMetaID: "mm-4"},
			{ID: 5, Name: "e", MusicMetaID: "mm-5", TrendingScore: 90},
		},
	}
	sched := &fakeScheduler{}
	e := NewEvaluator(store, sched, DefaultRuleBook(),
		BatchLimits{Artists: 2, Shows: 10, Venues: 10},
		time.Minute, WithEvaluatorClock(fixedClock(now)))

	report := e.CheckAndScheduleSyncs(context.Background())

	if report.StaleEntities != 5 {
		t.Errorf("stale = %d, want 5", report.StaleEntities)
	}
	if report.ScheduledSyncs != 2 {
		t.Errorf("scheduled = %d, want 2", report.ScheduledSyncs)
	}
	if len(sched.jobs) != 2 {
		t.Fatalf("enqueued %d jobs, want 2", len(sched.jobs))
	}
	for _, job := range sched.jobs {
		if job.Priority != 9 {
			t.Errorf("cap kept priority-%d job %d, want only priority 9", job.Priority, job.EntityID)
		}
	}
}

func TestCheckAndScheduleSyncsPartialFailure(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	store := &fakeStore{
		artists:   []models.ArtistRow{{ID: 1, Name: "a", MusicMetaID: "mm-1"}},
		venuesErr: errors.New("disk I/O error"),
	}
	sched := &fakeScheduler{}
	e := NewEvaluator(store, sched, DefaultRuleBook(),
		BatchLimits{Artists: 10, Shows: 10, Venues: 10},
		time.Minute, WithEvaluatorClock(fixedClock(now)))

	report := e.CheckAndScheduleSyncs(context.Background())

	// The venue failure contributes zeros, not an abort: the artist kind
	// still scheduled its job.
	if report.ScheduledSyncs != 1 {
		t.Errorf("scheduled = %d, want 1 despite venue failure", report.ScheduledSyncs)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", report.Errors)
	}
	if kr := report.ByKind[models.KindVenue]; kr.Total != 0 || kr.Scheduled != 0 {
		t.Errorf("venue kind report = %+v, want zeros", kr)
	}
}

func TestCheckAndScheduleSyncsSkipsMissingExternalID(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	// Trending and never synced, but no musicmeta id to fetch by.
	store := &fakeStore{
		artists: []models.ArtistRow{{ID: 1, Name: "No ID", TrendingScore: 90}},
	}
	sched := &fakeScheduler{}
	e := NewEvaluator(store, sched, DefaultRuleBook(),
		BatchLimits{Artists: 10, Shows: 10, Venues: 10},
		time.Minute, WithEvaluatorClock(fixedClock(now)))

	report := e.CheckAndScheduleSyncs(context.Background())

	if len(sched.jobs) != 0 {
		t.Errorf("enqueued %d jobs for unfetchable entity, want 0", len(sched.jobs))
	}
	// The rules still decided it was stale; only the enqueue is skipped.
	if report.StaleEntities != 1 || report.ScheduledSyncs != 0 {
		t.Errorf("stale/scheduled = %d/%d, want 1/0", report.StaleEntities, report.ScheduledSyncs)
	}
	if kr := report.ByKind[models.KindArtist]; kr.Stale != 1 || kr.Scheduled != 0 {
		t.Errorf("artist kind report = %+v, want stale counted without a schedule", kr)
	}
}

func TestCheckAndScheduleSyncsDedupSkipsDontCount(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	store := &fakeStore{
		artists: []models.ArtistRow{{ID: 1, Name: "a", MusicMetaID: "mm-1"}},
	}
	sched := &fakeScheduler{reject: true}
	e := NewEvaluator(store, sched, DefaultRuleBook(),
		BatchLimits{Artists: 10, Shows: 10, Venues: 10},
		time.Minute, WithEvaluatorClock(fixedClock(now)))

	report := e.CheckAndScheduleSyncs(context.Background())

	if report.StaleEntities != 1 {
		t.Errorf("stale = %d, want 1", report.StaleEntities)
	}
	if report.ScheduledSyncs != 0 {
		t.Errorf("scheduled = %d, want 0 when every enqueue is deduped", report.ScheduledSyncs)
	}
}

func TestLastReportTTL(t *testing.T) {
	current := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	store := &fakeStore{}
	e := NewEvaluator(store, &fakeScheduler{}, DefaultRuleBook(),
		BatchLimits{Artists: 10, Shows: 10, Venues: 10},
		time.Minute, WithEvaluatorClock(clock))

	if _, ok := e.LastReport(); ok {
		t.Error("LastReport before any pass should miss")
	}

	e.CheckAndScheduleSyncs(context.Background())
	if _, ok := e.LastReport(); !ok {
		t.Error("LastReport right after a pass should hit")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := e.LastReport(); ok {
		t.Error("LastReport past TTL should miss")
	}
}
