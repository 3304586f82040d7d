// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package queue

import (
	"container/heap"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/swbam/mysetlist-s4-sub007/internal/models"
	"github.com/swbam/mysetlist-s4-sub007/internal/sources"
)

type fakeProcessor struct {
	errs []error // per-call results, last value repeats
	seen []SyncJob
}

func (p *fakeProcessor) Process(ctx context.Context, job *SyncJob) error {
	p.seen = append(p.seen, *job)
	if len(p.errs) == 0 {
		return nil
	}
	err := p.errs[0]
	if len(p.errs) > 1 {
		p.errs = p.errs[1:]
	}
	return err
}

func testJob(priority int) SyncJob {
	return SyncJob{
		Kind:       models.KindArtist,
		EntityID:   42,
		ExternalID: "ext-42",
		SyncType:   models.SyncMusicMeta,
		Priority:   priority,
	}
}

// claim pops the top ready job the way a worker would.
func claim(t *testing.T, s *Scheduler) *SyncJob {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promoteLocked()
	if s.ready.Len() == 0 {
		t.Fatal("no ready job to claim")
	}
	job := heap.Pop(&s.ready).(*SyncJob)
	s.active++
	return job
}

func TestDelayForPriority(t *testing.T) {
	cases := []struct {
		priority int
		want     time.Duration
	}{
		{10, 0},
		{9, 0},
		{8, time.Minute},
		{7, time.Minute},
		{6, 5 * time.Minute},
		{5, 5 * time.Minute},
		{4, 15 * time.Minute},
		{3, 15 * time.Minute},
		{2, 30 * time.Minute},
		{1, 30 * time.Minute},
		{0, 30 * time.Minute},
		{-1, 30 * time.Minute},
	}
	for _, tc := range cases {
		if got := DelayForPriority(tc.priority); got != tc.want {
			t.Errorf("DelayForPriority(%d) = %v, want %v", tc.priority, got, tc.want)
		}
	}
}

func TestEnqueueDedup(t *testing.T) {
	s := New(Config{Workers: 1}, &fakeProcessor{})

	if !s.Enqueue(testJob(9)) {
		t.Fatal("first enqueue should succeed")
	}
	if s.Enqueue(testJob(9)) {
		t.Error("second enqueue for same entity and sync type should dedup")
	}

	// A different sync type for the same entity is separate work.
	other := testJob(9)
	other.SyncType = models.SyncSetlists
	if !s.Enqueue(other) {
		t.Error("different sync type should not collide")
	}

	stats := s.Stats()
	if stats.Ready != 2 || stats.Outstanding != 2 {
		t.Errorf("stats = %+v, want 2 ready, 2 outstanding", stats)
	}
}

func TestEnqueueDedupClearsAfterCompletion(t *testing.T) {
	s := New(Config{Workers: 1}, &fakeProcessor{})

	s.Enqueue(testJob(9))
	job := claim(t, s)
	s.execute(context.Background(), job)

	if !s.Enqueue(testJob(9)) {
		t.Error("enqueue after completion should succeed, dedup key must be released")
	}
}

func TestEnqueueForceRefreshBypassesDedup(t *testing.T) {
	s := New(Config{Workers: 1}, &fakeProcessor{})

	s.Enqueue(testJob(9))
	forced := testJob(10)
	forced.ForceRefresh = true
	if !s.Enqueue(forced) {
		t.Error("force refresh should bypass the dedup short-circuit")
	}
}

func TestEnqueueDedupsAfterForcedDuplicateCompletes(t *testing.T) {
	s := New(Config{Workers: 1}, &fakeProcessor{})

	s.Enqueue(testJob(9))
	forced := testJob(10)
	forced.ForceRefresh = true
	s.Enqueue(forced)

	// Completing the forced duplicate must not release the claim the
	// still-queued plain job holds on the same key.
	job := claim(t, s)
	if !job.ForceRefresh {
		t.Fatal("expected the forced job (priority 10) to pop first")
	}
	s.execute(context.Background(), job)

	stats := s.Stats()
	if stats.Ready != 1 || stats.Outstanding != 1 {
		t.Errorf("stats = %+v, want the plain job still queued and its key outstanding", stats)
	}
	if s.Enqueue(testJob(9)) {
		t.Error("enqueue accepted while a job for the same key is still queued")
	}

	// Only the last completion for the key releases the claim.
	job = claim(t, s)
	s.execute(context.Background(), job)
	if !s.Enqueue(testJob(9)) {
		t.Error("enqueue after all jobs for the key completed should succeed")
	}
}

func TestEnqueueDelayBandPlacement(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	s := New(Config{Workers: 1}, &fakeProcessor{}, WithClock(func() time.Time { return now }))

	s.Enqueue(testJob(9)) // immediate band
	low := testJob(1)     // 30m band
	low.EntityID = 43
	s.Enqueue(low)

	stats := s.Stats()
	if stats.Ready != 1 || stats.Delayed != 1 {
		t.Errorf("stats = %+v, want 1 ready (p9) and 1 delayed (p1)", stats)
	}

	// Advance past the band delay: promotion moves the job over.
	now = now.Add(31 * time.Minute)
	s.mu.Lock()
	s.promoteLocked()
	s.mu.Unlock()

	stats = s.Stats()
	if stats.Ready != 2 || stats.Delayed != 0 {
		t.Errorf("stats after promotion = %+v, want 2 ready", stats)
	}
}

func TestReadyOrderPriorityThenFIFO(t *testing.T) {
	s := New(Config{Workers: 1}, &fakeProcessor{})

	first := testJob(9)
	second := testJob(9)
	second.EntityID = 43
	high := testJob(10)
	high.EntityID = 44

	s.Enqueue(first)
	s.Enqueue(second)
	s.Enqueue(high)

	if job := claim(t, s); job.EntityID != 44 {
		t.Errorf("first pop = entity %d, want highest priority 44", job.EntityID)
	}
	if job := claim(t, s); job.EntityID != 42 {
		t.Errorf("second pop = entity %d, want FIFO 42", job.EntityID)
	}
	if job := claim(t, s); job.EntityID != 43 {
		t.Errorf("third pop = entity %d, want FIFO 43", job.EntityID)
	}
}

func TestExecuteTransientRetryBackoff(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	proc := &fakeProcessor{errs: []error{errors.New("connection reset")}}
	s := New(Config{Workers: 1, MaxAttempts: 4, RetryBackoff: 2 * time.Second},
		proc, WithClock(func() time.Time { return now }))

	s.Enqueue(testJob(9))
	job := claim(t, s)
	s.execute(context.Background(), job)

	if job.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", job.Attempts)
	}
	stats := s.Stats()
	if stats.Delayed != 1 {
		t.Fatalf("stats = %+v, want job back on the delayed heap", stats)
	}
	if stats.Outstanding != 1 {
		t.Error("dedup claim must persist across retries")
	}
	if want := now.Add(2 * time.Second); !job.NotBefore.Equal(want) {
		t.Errorf("first backoff NotBefore = %v, want %v", job.NotBefore, want)
	}

	// Second failure doubles the backoff.
	now = now.Add(3 * time.Second)
	job = claim(t, s)
	s.execute(context.Background(), job)
	if want := now.Add(4 * time.Second); !job.NotBefore.Equal(want) {
		t.Errorf("second backoff NotBefore = %v, want %v", job.NotBefore, want)
	}
}

func TestExecuteExhaustionAfterMaxAttempts(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	proc := &fakeProcessor{errs: []error{errors.New("still down")}}
	s := New(Config{Workers: 1, MaxAttempts: 4, RetryBackoff: time.Second},
		proc, WithClock(func() time.Time { return now }))

	s.Enqueue(testJob(9))
	for i := 0; i < 4; i++ {
		now = now.Add(time.Minute)
		job := claim(t, s)
		s.execute(context.Background(), job)
	}

	stats := s.Stats()
	if stats.Ready != 0 || stats.Delayed != 0 || stats.Outstanding != 0 {
		t.Errorf("stats = %+v, want empty queue after exhaustion", stats)
	}
	if len(stats.RecentFailures) != 1 {
		t.Fatalf("failures = %d, want 1", len(stats.RecentFailures))
	}
	if f := stats.RecentFailures[0]; f.Attempts != 4 || f.EntityID != 42 {
		t.Errorf("failure record = %+v", f)
	}
	if len(proc.seen) != 4 {
		t.Errorf("processor invoked %d times, want 4", len(proc.seen))
	}
}

func TestExecutePermanentFailureSkipsRetries(t *testing.T) {
	proc := &fakeProcessor{errs: []error{
		&sources.FetchError{Source: models.SyncMusicMeta, StatusCode: 404, Permanent: true, Err: sources.ErrNotFound},
	}}
	s := New(Config{Workers: 1, MaxAttempts: 4, RetryBackoff: time.Second}, proc)

	s.Enqueue(testJob(9))
	job := claim(t, s)
	s.execute(context.Background(), job)

	stats := s.Stats()
	if stats.Outstanding != 0 || stats.Delayed != 0 {
		t.Errorf("stats = %+v, want permanent failure released immediately", stats)
	}
	if len(stats.RecentFailures) != 1 {
		t.Fatalf("failures = %d, want 1", len(stats.RecentFailures))
	}
	if f := stats.RecentFailures[0]; f.Attempts != 1 {
		t.Errorf("permanent failure after %d attempts, want 1", f.Attempts)
	}
	if len(proc.seen) != 1 {
		t.Errorf("processor invoked %d times, want no retries", len(proc.seen))
	}
}

func TestFailureHistoryBounded(t *testing.T) {
	proc := &fakeProcessor{errs: []error{
		&sources.FetchError{Source: models.SyncMusicMeta, Permanent: true, Err: sources.ErrNotFound},
	}}
	s := New(Config{Workers: 1, MaxAttempts: 1}, proc)

	for i := 0; i < failureHistorySize+10; i++ {
		job := testJob(9)
		job.EntityID = int64(i)
		s.Enqueue(job)
		claimed := claim(t, s)
		s.execute(context.Background(), claimed)
	}

	stats := s.Stats()
	if len(stats.RecentFailures) != failureHistorySize {
		t.Errorf("failure buffer = %d entries, want capped at %d", len(stats.RecentFailures), failureHistorySize)
	}
	// Oldest entries dropped: the first surviving record is entry 10.
	if got := stats.RecentFailures[0].EntityID; got != 10 {
		t.Errorf("oldest surviving failure = entity %d, want 10", got)
	}
}

func TestRunDrainsQueue(t *testing.T) {
	done := make(chan SyncJob, 1)
	proc := processorFunc(func(ctx context.Context, job *SyncJob) error {
		done <- *job
		return nil
	})
	s := New(Config{Workers: 2, PromotionInterval: 10 * time.Millisecond}, proc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	s.Enqueue(testJob(9))

	select {
	case job := <-done:
		if job.EntityID != 42 {
			t.Errorf("processed entity %d, want 42", job.EntityID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

type processorFunc func(ctx context.Context, job *SyncJob) error

func (f processorFunc) Process(ctx context.Context, job *SyncJob) error { return f(ctx, job) }
