// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/swbam/mysetlist-s4-sub007/internal/metrics"
	"github.com/swbam/mysetlist-s4-sub007/internal/models"
	"github.com/swbam/mysetlist-s4-sub007/internal/ratelimit"
	"github.com/swbam/mysetlist-s4-sub007/internal/sources"
)

// WriteStore is the store's write model: upsert of synchronized attributes
// plus a last-synced timestamp with set-only-if-newer semantics.
type WriteStore interface {
	// ApplySyncResult maps rec onto the entity's row and advances
	// lastSyncedAt to syncedAt, never backwards. Out-of-order completions
	// from a retried earlier request must not clobber a newer timestamp.
	ApplySyncResult(ctx context.Context, kind models.EntityKind, entityID int64, rec *models.Record, syncedAt time.Time) error
}

// Executor performs one sync job: rate-limit admission, upstream fetch
// with a hard timeout, and store write-back.
type Executor struct {
	store        WriteStore
	clients      map[models.SyncType]sources.Client
	limiter      *ratelimit.Limiter
	fetchTimeout time.Duration
	now          func() time.Time
}

// NewExecutor creates an Executor. clients maps each sync type to the
// fetch client serving it; jobs routed to an unknown sync type fail
// permanently.
func NewExecutor(store WriteStore, clients map[models.SyncType]sources.Client, limiter *ratelimit.Limiter, fetchTimeout time.Duration) *Executor {
	if fetchTimeout <= 0 {
		fetchTimeout = 8 * time.Second
	}
	return &Executor{
		store:        store,
		clients:      clients,
		limiter:      limiter,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
	}
}

// Process implements Processor. Errors come back classified: the scheduler
// decides between retry and discard based on sources.IsPermanent.
func (e *Executor) Process(ctx context.Context, job *SyncJob) error {
	client, ok := e.clients[job.SyncType]
	if !ok {
		return &sources.FetchError{
			Source:    job.SyncType,
			Permanent: true,
			Err:       fmt.Errorf("no fetch client registered for sync type %q", job.SyncType),
		}
	}

	// Admission check before the outbound call. A persistently exhausted
	// budget surfaces as a transient error and flows into the retry path.
	if err := e.limiter.Wait(ctx, string(job.SyncType)); err != nil {
		return &sources.FetchError{Source: job.SyncType, Err: err}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	start := e.now()
	rec, err := client.Fetch(fetchCtx, sources.Ref{Kind: job.Kind, ExternalID: job.ExternalID})
	metrics.FetchDuration.WithLabelValues(string(job.SyncType)).Observe(e.now().Sub(start).Seconds())
	if err != nil {
		class := "transient"
		if sources.IsPermanent(err) {
			class = "permanent"
		}
		metrics.FetchErrors.WithLabelValues(string(job.SyncType), class).Inc()
		return err
	}

	// Write-back and the last-synced marker advance in the same logical
	// operation; the store enforces timestamp monotonicity.
	if err := e.store.ApplySyncResult(ctx, job.Kind, job.EntityID, rec, e.now().UTC()); err != nil {
		return &sources.FetchError{Source: job.SyncType, Err: fmt.Errorf("apply sync result: %w", err)}
	}
	return nil
}
