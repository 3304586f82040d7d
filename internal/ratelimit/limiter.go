// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

// Package ratelimit gates outbound upstream calls with per-source
// fixed-window counters.
//
// Upstream quotas in this domain are coarse per-minute caps, so a simple
// fixed window is preferred over a token bucket: it under-uses the budget
// slightly near window boundaries but can never exceed it.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/swbam/mysetlist-s4-sub007/internal/metrics"
)

// DefaultWindow is the window length matching upstream per-minute quotas.
const DefaultWindow = time.Minute

// Budget is the request allowance for one source over one window.
type Budget struct {
	MaxRequests int
	Window      time.Duration
}

// window tracks the current fixed window for one source key.
type window struct {
	start time.Time
	count int
	// length is the effective window length. With jitter enabled it is
	// extended by up to 10% so concurrent workers don't all observe the
	// reset at the same instant.
	length time.Duration
}

// Limiter is a fixed-window rate limiter keyed by source. All mutations
// are atomic with respect to each other; it is safe for concurrent use by
// multiple executor workers.
type Limiter struct {
	mu      sync.Mutex
	budgets map[string]Budget
	windows map[string]*window
	jitter  bool

	// waitInterval and waitAttempts bound how long Wait blocks before
	// handing back to the job's own retry path.
	waitInterval time.Duration
	waitAttempts int

	now func() time.Time // injectable clock for tests
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithJitter enables window-boundary jitter. This is an enhancement over
// the plain fixed window: it spreads the reset boundary so queued callers
// don't pile onto the first instant of a fresh window.
func WithJitter() Option {
	return func(l *Limiter) { l.jitter = true }
}

// WithWaitPolicy sets the sleep interval and attempt bound used by Wait.
func WithWaitPolicy(interval time.Duration, attempts int) Option {
	return func(l *Limiter) {
		l.waitInterval = interval
		l.waitAttempts = attempts
	}
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter with the given per-source budgets.
func New(budgets map[string]Budget, opts ...Option) *Limiter {
	l := &Limiter{
		budgets:      budgets,
		windows:      make(map[string]*window, len(budgets)),
		waitInterval: time.Second,
		waitAttempts: 5,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether one more request to the source fits in the current
// window, consuming a slot when it does. Sources without a configured
// budget are always allowed.
func (l *Limiter) Allow(source string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	budget, ok := l.budgets[source]
	if !ok || budget.MaxRequests <= 0 {
		return true
	}

	now := l.now()
	w, ok := l.windows[source]
	if !ok || now.Sub(w.start) >= w.length {
		w = &window{start: now, length: l.windowLength(budget.Window)}
		l.windows[source] = w
	}

	if w.count >= budget.MaxRequests {
		metrics.RateLimitDenied.WithLabelValues(source).Inc()
		return false
	}
	w.count++
	metrics.RateLimitAllowed.WithLabelValues(source).Inc()
	return true
}

// windowLength returns the effective window length, jittered if enabled.
func (l *Limiter) windowLength(base time.Duration) time.Duration {
	if !l.jitter {
		return base
	}
	return base + time.Duration(rand.Int63n(int64(base)/10+1))
}

// Wait blocks until Allow succeeds, sleeping waitInterval between checks.
// It gives up after waitAttempts checks so a persistently exhausted budget
// surfaces as a transient failure and flows into the job's retry path
// instead of pinning a worker.
func (l *Limiter) Wait(ctx context.Context, source string) error {
	for attempt := 0; attempt < l.waitAttempts; attempt++ {
		if l.Allow(source) {
			return nil
		}
		select {
		case <-time.After(l.waitInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("rate limit budget for %s exhausted after %d waits", source, l.waitAttempts)
}

// Remaining returns the unused slots in the source's current window.
// Sources without a budget report -1 (unlimited).
func (l *Limiter) Remaining(source string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	budget, ok := l.budgets[source]
	if !ok || budget.MaxRequests <= 0 {
		return -1
	}
	w, ok := l.windows[source]
	if !ok || l.now().Sub(w.start) >= w.length {
		return budget.MaxRequests
	}
	if w.count >= budget.MaxRequests {
		return 0
	}
	return budget.MaxRequests - w.count
}
