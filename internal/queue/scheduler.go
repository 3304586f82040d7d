// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

/*
scheduler.go - Priority Scheduler and Worker Pool

Job lifecycle: pending -> active -> {completed | retry -> pending |
exhausted -> discarded}.

Internals:
  - ready heap: runnable jobs ordered by priority desc, FIFO within a band
  - delayed heap: jobs waiting out their priority-band delay or a retry
    backoff, ordered by ready time; a promotion loop moves due jobs to the
    ready heap (the delayed-set-to-ready-queue split keeps the ready pop
    O(log n) without scanning for due times)
  - outstanding index: per-key counts of waiting AND active jobs, so a
    second enqueue for the same (entity, sync type) is an O(1) no-op; a
    count (not a set) because force refresh may put two jobs under one
    key, and the first completion must not release the other's claim

All queue mutations (enqueue, claim, complete, retry) happen under one
mutex, which makes the dedup check-and-mark atomic: two near-simultaneous
enqueues for the same key cannot both win.
*/

package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/swbam/mysetlist-s4-sub007/internal/logging"
	"github.com/swbam/mysetlist-s4-sub007/internal/metrics"
	"github.com/swbam/mysetlist-s4-sub007/internal/sources"
)

// failureHistorySize bounds the recent-failure buffer exposed via Stats.
const failureHistorySize = 25

// Processor executes one sync job. Implemented by *Executor.
type Processor interface {
	Process(ctx context.Context, job *SyncJob) error
}

// Config tunes the scheduler.
type Config struct {
	Workers           int
	MaxAttempts       int
	RetryBackoff      time.Duration
	PromotionInterval time.Duration
}

// Scheduler accepts sync jobs, deduplicates them against outstanding work,
// orders them by priority, and drains them with a bounded worker pool.
type Scheduler struct {
	cfg  Config
	proc Processor

	mu          sync.Mutex
	ready       readyHeap
	delayed     delayedHeap
	outstanding map[string]int
	active      int
	seq         uint64
	failures    []FailureRecord

	wake chan struct{}
	now  func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler draining into proc.
func New(cfg Config, proc Processor, opts ...Option) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	if cfg.PromotionInterval <= 0 {
		cfg.PromotionInterval = time.Second
	}
	s := &Scheduler{
		cfg:         cfg,
		proc:        proc,
		outstanding: make(map[string]int),
		wake:        make(chan struct{}, 1),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue accepts a job unless a job with the same dedup key is already
// waiting or active. Returns false when the job was skipped as a
// duplicate; losing the claim is a no-op, not an error. ForceRefresh jobs
// always enqueue, accepting at most one duplicate in flight.
func (s *Scheduler) Enqueue(job SyncJob) bool {
	s.mu.Lock()

	key := job.DedupKey()
	if s.outstanding[key] > 0 && !job.ForceRefresh {
		s.mu.Unlock()
		metrics.QueueDedupSkips.Inc()
		return false
	}
	s.outstanding[key]++

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := s.now()
	job.EnqueuedAt = now
	job.Attempts = 0
	if job.NotBefore.IsZero() {
		job.NotBefore = now.Add(DelayForPriority(job.Priority))
	}
	s.seq++
	job.seq = s.seq

	j := &job
	if j.NotBefore.After(now) {
		heap.Push(&s.delayed, j)
	} else {
		heap.Push(&s.ready, j)
	}
	s.updateDepthLocked()
	s.mu.Unlock()

	metrics.JobsEnqueued.WithLabelValues(string(job.SyncType)).Inc()
	s.signal()
	return true
}

// Run starts the worker pool and the promotion loop, blocking until ctx is
// canceled and all workers have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	logging.Info().
		Int("workers", s.cfg.Workers).
		Int("max_attempts", s.cfg.MaxAttempts).
		Msg("Sync queue started")

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.cfg.Workers; i++ {
		g.Go(func() error {
			s.worker(ctx)
			return nil
		})
	}
	g.Go(func() error {
		s.promoteLoop(ctx)
		return nil
	})
	err := g.Wait()
	logging.Info().Msg("Sync queue stopped")
	return err
}

// Stats returns a snapshot of queue state.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	failures := make([]FailureRecord, len(s.failures))
	copy(failures, s.failures)
	return Stats{
		Ready:          s.ready.Len(),
		Delayed:        s.delayed.Len(),
		Active:         s.active,
		Outstanding:    len(s.outstanding),
		RecentFailures: failures,
	}
}

// signal nudges one idle worker without blocking.
func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// promoteLoop periodically moves due delayed jobs onto the ready heap.
func (s *Scheduler) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PromotionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			moved := s.promoteLocked()
			s.mu.Unlock()
			if moved > 0 {
				s.signal()
			}
		}
	}
}

// promoteLocked moves every delayed job whose ready time has passed onto
// the ready heap. Caller holds mu.
func (s *Scheduler) promoteLocked() int {
	now := s.now()
	moved := 0
	for s.delayed.Len() > 0 && !s.delayed[0].NotBefore.After(now) {
		j := heap.Pop(&s.delayed).(*SyncJob)
		heap.Push(&s.ready, j)
		moved++
	}
	if moved > 0 {
		s.updateDepthLocked()
	}
	return moved
}

// worker pulls the highest-priority ready job and executes it, looping
// until ctx is canceled.
func (s *Scheduler) worker(ctx context.Context) {
	for {
		job := s.next(ctx)
		if job == nil {
			return
		}
		s.execute(ctx, job)
	}
}

// next blocks until a ready job can be claimed or ctx is canceled.
func (s *Scheduler) next(ctx context.Context) *SyncJob {
	for {
		s.mu.Lock()
		s.promoteLocked()
		if s.ready.Len() > 0 {
			job := heap.Pop(&s.ready).(*SyncJob)
			s.active++
			s.updateDepthLocked()
			s.mu.Unlock()
			return job
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		case <-time.After(s.cfg.PromotionInterval):
		}
	}
}

// execute runs one claimed job and routes the outcome: completion,
// retry with exponential backoff, or exhaustion/permanent discard.
func (s *Scheduler) execute(ctx context.Context, job *SyncJob) {
	job.Attempts++
	start := s.now()
	err := s.proc.Process(ctx, job)
	duration := s.now().Sub(start)
	metrics.JobDuration.WithLabelValues(string(job.SyncType)).Observe(duration.Seconds())

	switch {
	case err == nil:
		logging.Info().
			Str("job_id", job.ID).
			Str("kind", string(job.Kind)).
			Int64("entity_id", job.EntityID).
			Str("source", string(job.SyncType)).
			Int("attempt", job.Attempts).
			Dur("duration", duration).
			Msg("Sync job completed")
		metrics.JobsCompleted.WithLabelValues(string(job.SyncType), "success").Inc()
		s.release(job)

	case sources.IsPermanent(err):
		// No point spending retry attempts on a record the upstream
		// will keep rejecting; flag it for manual follow-up.
		logging.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("kind", string(job.Kind)).
			Int64("entity_id", job.EntityID).
			Str("source", string(job.SyncType)).
			Msg("Sync job failed permanently")
		metrics.JobsCompleted.WithLabelValues(string(job.SyncType), "permanent").Inc()
		s.recordFailure(job, err)
		s.release(job)

	case job.Attempts < s.cfg.MaxAttempts:
		backoff := s.cfg.RetryBackoff << (job.Attempts - 1)
		logging.Warn().
			Err(err).
			Str("job_id", job.ID).
			Int64("entity_id", job.EntityID).
			Str("source", string(job.SyncType)).
			Int("attempt", job.Attempts).
			Int("max_attempts", s.cfg.MaxAttempts).
			Dur("backoff", backoff).
			Msg("Sync job failed, will retry")
		metrics.JobRetries.WithLabelValues(string(job.SyncType)).Inc()
		s.requeue(job, backoff)

	default:
		logging.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("kind", string(job.Kind)).
			Int64("entity_id", job.EntityID).
			Str("source", string(job.SyncType)).
			Int("attempts", job.Attempts).
			Msg("Sync job exhausted retry attempts, discarding")
		metrics.JobsCompleted.WithLabelValues(string(job.SyncType), "exhausted").Inc()
		s.recordFailure(job, err)
		s.release(job)
	}
}

// release drops the job's dedup claim and active slot. Terminal for the
// job: it is either completed or discarded.
func (s *Scheduler) release(job *SyncJob) {
	s.mu.Lock()
	key := job.DedupKey()
	if n := s.outstanding[key] - 1; n > 0 {
		s.outstanding[key] = n
	} else {
		delete(s.outstanding, key)
	}
	s.active--
	s.updateDepthLocked()
	s.mu.Unlock()
}

// requeue puts a transiently failed job back on the delayed heap, keeping
// its dedup claim so no duplicate can slip in between attempts.
func (s *Scheduler) requeue(job *SyncJob, backoff time.Duration) {
	s.mu.Lock()
	job.NotBefore = s.now().Add(backoff)
	heap.Push(&s.delayed, job)
	s.active--
	s.updateDepthLocked()
	s.mu.Unlock()
}

// recordFailure appends to the bounded recent-failure buffer.
func (s *Scheduler) recordFailure(job *SyncJob, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, FailureRecord{
		JobID:    job.ID,
		Kind:     job.Kind,
		EntityID: job.EntityID,
		SyncType: job.SyncType,
		Attempts: job.Attempts,
		Error:    err.Error(),
		FailedAt: s.now(),
	})
	if len(s.failures) > failureHistorySize {
		s.failures = s.failures[len(s.failures)-failureHistorySize:]
	}
}

// updateDepthLocked refreshes the queue depth gauges. Caller holds mu.
func (s *Scheduler) updateDepthLocked() {
	metrics.QueueDepth.WithLabelValues("ready").Set(float64(s.ready.Len()))
	metrics.QueueDepth.WithLabelValues("delayed").Set(float64(s.delayed.Len()))
}
