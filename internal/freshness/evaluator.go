// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

/*
evaluator.go - Freshness Evaluator

One pass queries the store for candidate entities of each kind, joins in
the data age, applies the kind's rule set per entity, and hands a
prioritized, capped batch of sync jobs to the scheduler.

Failure semantics: a store failure while reading one kind's candidates is
caught and logged; the other kinds still run, so a pass degrades partially
rather than failing wholly.
*/

package freshness

import (
	"context"
	"sort"
	"time"

	"github.com/swbam/mysetlist-s4-sub007/internal/logging"
	"github.com/swbam/mysetlist-s4-sub007/internal/metrics"
	"github.com/swbam/mysetlist-s4-sub007/internal/models"
	"github.com/swbam/mysetlist-s4-sub007/internal/queue"
)

// Store is the read model the evaluator consumes: candidate rows per kind
// with last-sync metadata already joined in.
type Store interface {
	// ArtistCandidates returns all tracked artists.
	ArtistCandidates(ctx context.Context) ([]models.ArtistRow, error)
	// ShowCandidates returns shows plausibly needing sync
	// (status upcoming or ongoing).
	ShowCandidates(ctx context.Context) ([]models.ShowRow, error)
	// VenueCandidates returns venues with at least one show.
	VenueCandidates(ctx context.Context) ([]models.VenueRow, error)
}

// Scheduler accepts sync jobs. Implemented by *queue.Scheduler.
type Scheduler interface {
	Enqueue(job queue.SyncJob) bool
}

// BatchLimits caps how many jobs one pass may schedule per kind, bounding
// the load a staleness storm can push into the queue at once.
type BatchLimits struct {
	Artists int
	Shows   int
	Venues  int
}

// Evaluator runs freshness passes.
type Evaluator struct {
	store  Store
	sched  Scheduler
	rules  *RuleBook
	limits BatchLimits
	cache  *reportCache
	now    func() time.Time
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithEvaluatorClock overrides the time source. Tests only.
func WithEvaluatorClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(store Store, sched Scheduler, rules *RuleBook, limits BatchLimits, reportTTL time.Duration, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		store:  store,
		sched:  sched,
		rules:  rules,
		limits: limits,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cache = newReportCache(reportTTL, e.now)
	return e
}

// CheckAndScheduleSyncs runs one full freshness pass across all entity
// kinds. Kinds are checked sequentially to bound peak store load.
func (e *Evaluator) CheckAndScheduleSyncs(ctx context.Context) *Report {
	start := e.now()
	report := &Report{
		Timestamp: start.UTC(),
		ByKind:    make(map[models.EntityKind]KindReport, 3),
	}

	e.checkArtists(ctx, report)
	e.checkShows(ctx, report)
	e.checkVenues(ctx, report)

	duration := e.now().Sub(start)
	metrics.FreshnessPassDuration.Observe(duration.Seconds())
	logging.Info().
		Int("total", report.TotalEntities).
		Int("stale", report.StaleEntities).
		Int("scheduled", report.ScheduledSyncs).
		Int("errors", len(report.Errors)).
		Dur("duration", duration).
		Msg("Freshness pass completed")

	e.cache.set(report)
	return report
}

// LastReport returns the most recent pass report if it is still within
// its TTL.
func (e *Evaluator) LastReport() (*Report, bool) {
	return e.cache.get()
}

// checkArtists evaluates all tracked artists.
func (e *Evaluator) checkArtists(ctx context.Context, report *Report) {
	rows, err := e.store.ArtistCandidates(ctx)
	if err != nil {
		e.reportKindFailure(report, models.KindArtist, err)
		return
	}

	now := e.now()
	stale := 0
	var batch []queue.SyncJob
	for _, row := range rows {
		d := Evaluate(e.rules.Artists, row, DataAge(row.LastSyncedAt, now))
		if !d.RequiresSync {
			continue
		}
		stale++
		externalID := artistExternalID(row, d.SyncType)
		if externalID == "" {
			// Nothing to fetch by; counted stale but unschedulable until
			// the entity gains the external id.
			continue
		}
		batch = append(batch, queue.SyncJob{
			Kind:       models.KindArtist,
			EntityID:   row.ID,
			ExternalID: externalID,
			SyncType:   d.SyncType,
			Priority:   d.Priority,
		})
	}

	scheduled := e.scheduleBatch(batch, e.limits.Artists)
	e.recordKind(report, models.KindArtist, len(rows), stale, scheduled)
}

// checkShows evaluates upcoming and ongoing shows.
func (e *Evaluator) checkShows(ctx context.Context, report *Report) {
	rows, err := e.store.ShowCandidates(ctx)
	if err != nil {
		e.reportKindFailure(report, models.KindShow, err)
		return
	}

	now := e.now()
	stale := 0
	var batch []queue.SyncJob
	for _, row := range rows {
		view := ShowView{ShowRow: row, DaysUntilShow: row.DaysUntil(now)}
		d := Evaluate(e.rules.Shows, view, DataAge(row.LastSyncedAt, now))
		if !d.RequiresSync {
			continue
		}
		stale++
		if row.TicketingID == "" {
			continue
		}
		batch = append(batch, queue.SyncJob{
			Kind:       models.KindShow,
			EntityID:   row.ID,
			ExternalID: row.TicketingID,
			SyncType:   d.SyncType,
			Priority:   d.Priority,
		})
	}

	scheduled := e.scheduleBatch(batch, e.limits.Shows)
	e.recordKind(report, models.KindShow, len(rows), stale, scheduled)
}

// checkVenues evaluates venues with shows.
func (e *Evaluator) checkVenues(ctx context.Context, report *Report) {
	rows, err := e.store.VenueCandidates(ctx)
	if err != nil {
		e.reportKindFailure(report, models.KindVenue, err)
		return
	}

	now := e.now()
	stale := 0
	var batch []queue.SyncJob
	for _, row := range rows {
		d := Evaluate(e.rules.Venues, row, DataAge(row.LastSyncedAt, now))
		if !d.RequiresSync {
			continue
		}
		stale++
		if row.TicketingID == "" {
			continue
		}
		batch = append(batch, queue.SyncJob{
			Kind:       models.KindVenue,
			EntityID:   row.ID,
			ExternalID: row.TicketingID,
			SyncType:   d.SyncType,
			Priority:   d.Priority,
		})
	}

	scheduled := e.scheduleBatch(batch, e.limits.Venues)
	e.recordKind(report, models.KindVenue, len(rows), stale, scheduled)
}

// scheduleBatch sorts stale entities by priority descending (stable, so
// store order breaks ties), truncates to the per-kind cap, and enqueues.
// Jobs skipped by the scheduler's dedup check don't count as scheduled.
func (e *Evaluator) scheduleBatch(batch []queue.SyncJob, limit int) int {
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].Priority > batch[j].Priority
	})
	if limit > 0 && len(batch) > limit {
		batch = batch[:limit]
	}

	scheduled := 0
	for _, job := range batch {
		if e.sched.Enqueue(job) {
			scheduled++
		}
	}
	return scheduled
}

// recordKind merges one kind's outcome into the report and metrics.
func (e *Evaluator) recordKind(report *Report, kind models.EntityKind, total, stale, scheduled int) {
	metrics.EntitiesEvaluated.WithLabelValues(string(kind)).Add(float64(total))
	metrics.EntitiesStale.WithLabelValues(string(kind)).Add(float64(stale))
	report.add(kind, KindReport{Total: total, Stale: stale, Scheduled: scheduled})
}

// reportKindFailure records a per-kind store failure without aborting the
// rest of the pass. The kind contributes zeros to the report.
func (e *Evaluator) reportKindFailure(report *Report, kind models.EntityKind, err error) {
	logging.Error().
		Err(err).
		Str("kind", string(kind)).
		Msg("Freshness check failed for entity kind")
	metrics.EvaluationErrors.WithLabelValues(string(kind)).Inc()
	report.add(kind, KindReport{})
	report.Errors = append(report.Errors, string(kind)+": "+err.Error())
}

// artistExternalID resolves which external identifier a sync type fetches
// by. The setlist archive is keyed by artist name.
func artistExternalID(row models.ArtistRow, syncType models.SyncType) string {
	switch syncType {
	case models.SyncTicketing:
		return row.TicketingID
	case models.SyncMusicMeta:
		return row.MusicMetaID
	case models.SyncSetlists:
		return row.Name
	default:
		return ""
	}
}
