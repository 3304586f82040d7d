// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

/*
manager.go - Sync Engine Lifecycle and Orchestration

The Manager is the only component invoked by external triggers (cron or
the HTTP API). It owns:
  - the freshness Evaluator (rule evaluation, batch scheduling)
  - the queue Scheduler and its worker pool
  - the periodic pass ticker
  - the overlapping-pass guard

Lifecycle:
  - Start(): launch queue workers and the pass loop
  - Stop(): cancel workers, wait for completion
  - TriggerPass(): run one freshness pass (guarded against overlap)
  - ForceRefresh(): enqueue a rule-bypassing sync for one entity

Thread safety: running state under mu; the pass guard is an atomic
try-claim so two near-simultaneous triggers cannot double the queue.
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/swbam/mysetlist-s4-sub007/internal/freshness"
	"github.com/swbam/mysetlist-s4-sub007/internal/logging"
	"github.com/swbam/mysetlist-s4-sub007/internal/models"
	"github.com/swbam/mysetlist-s4-sub007/internal/queue"
)

// ErrPassInProgress is returned when a freshness pass is triggered while
// another is still running.
var ErrPassInProgress = errors.New("freshness pass already running")

// ForceRefreshPriority is the priority assigned to manual resyncs. Above
// every rule priority, so forced jobs land in the immediate delay band.
const ForceRefreshPriority = 10

// EntityLookup resolves an entity's external identifier for force-refresh
// requests that bypass the evaluator. Implemented by *database.DB.
type EntityLookup interface {
	ExternalID(ctx context.Context, kind models.EntityKind, entityID int64, syncType models.SyncType) (string, error)
}

// Manager orchestrates freshness passes and the sync queue.
type Manager struct {
	eval     *freshness.Evaluator
	sched    *queue.Scheduler
	lookup   EntityLookup
	interval time.Duration

	mu          sync.Mutex
	running     bool
	stopChan    chan struct{}
	cancelQueue context.CancelFunc
	wg          sync.WaitGroup

	passRunning atomic.Bool
	lastPass    atomic.Pointer[time.Time]
}

// NewManager creates a Manager. interval is the automatic pass cadence.
func NewManager(eval *freshness.Evaluator, sched *queue.Scheduler, lookup EntityLookup, interval time.Duration) *Manager {
	return &Manager{
		eval:     eval,
		sched:    sched,
		lookup:   lookup,
		interval: interval,
	}
}

// Start launches the queue workers and the periodic pass loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync engine is already running")
	}
	m.running = true
	// Fresh per start so a stopped engine can be started again.
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	logging.Info().Dur("interval", m.interval).Msg("Starting sync engine...")

	queueCtx, cancel := context.WithCancel(ctx)
	m.cancelQueue = cancel

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		if err := m.sched.Run(queueCtx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Sync queue exited with error")
		}
	}()
	go m.passLoop(ctx)

	return nil
}

// Stop gracefully stops the engine, waiting for workers to finish their
// current jobs.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync engine is not running")
	}
	m.running = false
	m.mu.Unlock()

	logging.Info().Msg("Stopping sync engine...")
	close(m.stopChan)
	m.cancelQueue()
	m.wg.Wait()
	logging.Info().Msg("Sync engine stopped")
	return nil
}

// passLoop runs freshness passes on the configured interval.
func (m *Manager) passLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.TriggerPass(ctx); err != nil {
				if errors.Is(err, ErrPassInProgress) {
					// The cron interval should comfortably exceed pass
					// duration; overlapping ticks are skipped, not queued.
					logging.Warn().Msg("Skipping scheduled freshness pass, previous still running")
				} else {
					logging.Error().Err(err).Msg("Scheduled freshness pass failed")
				}
			}
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// TriggerPass runs one freshness pass across all entity kinds. Returns
// ErrPassInProgress when another pass holds the guard.
func (m *Manager) TriggerPass(ctx context.Context) (*freshness.Report, error) {
	if !m.passRunning.CompareAndSwap(false, true) {
		return nil, ErrPassInProgress
	}
	defer m.passRunning.Store(false)

	report := m.eval.CheckAndScheduleSyncs(ctx)
	now := time.Now().UTC()
	m.lastPass.Store(&now)
	return report, nil
}

// LastReport returns the most recent pass report while its cache TTL
// holds.
func (m *Manager) LastReport() (*freshness.Report, bool) {
	return m.eval.LastReport()
}

// LastPassTime returns when the last pass completed, zero if none has.
func (m *Manager) LastPassTime() time.Time {
	if t := m.lastPass.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// QueueStats exposes queue state for the API.
func (m *Manager) QueueStats() queue.Stats {
	return m.sched.Stats()
}

// ForceRefresh enqueues a maximum-priority sync for one entity, bypassing
// freshness rules entirely. syncType may be empty to use the kind's
// default source. Returns whether the job was enqueued; false means a job
// for the same key was already outstanding and forcing was declined by
// the scheduler (never happens with ForceRefresh set, but kept in the
// signature for the trigger response).
func (m *Manager) ForceRefresh(ctx context.Context, kind models.EntityKind, entityID int64, syncType models.SyncType) (bool, error) {
	if syncType == "" {
		syncType = defaultSyncType(kind)
	}

	externalID, err := m.lookup.ExternalID(ctx, kind, entityID, syncType)
	if err != nil {
		return false, err
	}
	if externalID == "" {
		return false, fmt.Errorf("%s %d has no external id for %s", kind, entityID, syncType)
	}

	enqueued := m.sched.Enqueue(queue.SyncJob{
		Kind:         kind,
		EntityID:     entityID,
		ExternalID:   externalID,
		SyncType:     syncType,
		Priority:     ForceRefreshPriority,
		ForceRefresh: true,
	})
	logging.Info().
		Str("kind", string(kind)).
		Int64("entity_id", entityID).
		Str("source", string(syncType)).
		Bool("enqueued", enqueued).
		Msg("Force refresh requested")
	return enqueued, nil
}

// defaultSyncType picks the primary upstream source for a kind.
func defaultSyncType(kind models.EntityKind) models.SyncType {
	if kind == models.KindArtist {
		return models.SyncMusicMeta
	}
	return models.SyncTicketing
}
