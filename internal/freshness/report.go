// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package freshness

import (
	"sync"
	"time"

	"github.com/swbam/mysetlist-s4-sub007/internal/models"
)

// KindReport is one entity kind's share of a freshness pass.
type KindReport struct {
	Total     int `json:"total"`
	Stale     int `json:"stale"`
	Scheduled int `json:"scheduled"`
}

// Report summarizes one freshness pass. Ephemeral: cached briefly for
// observability, never persisted.
type Report struct {
	Timestamp      time.Time                        `json:"timestamp"`
	TotalEntities  int                              `json:"total_entities"`
	StaleEntities  int                              `json:"stale_entities"`
	ScheduledSyncs int                              `json:"scheduled_syncs"`
	ByKind         map[models.EntityKind]KindReport `json:"by_kind"`
	Errors         []string                         `json:"errors,omitempty"`
}

// add merges one kind's numbers into the totals.
func (r *Report) add(kind models.EntityKind, kr KindReport) {
	r.ByKind[kind] = kr
	r.TotalEntities += kr.Total
	r.StaleEntities += kr.Stale
	r.ScheduledSyncs += kr.Scheduled
}

// reportCache holds the last pass report for a short TTL so the API can
// serve it without rerunning evaluation.
type reportCache struct {
	mu      sync.RWMutex
	report  *Report
	expires time.Time
	ttl     time.Duration
	now     func() time.Time
}

func newReportCache(ttl time.Duration, now func() time.Time) *reportCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &reportCache{ttl: ttl, now: now}
}

func (c *reportCache) set(r *Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report = r
	c.expires = c.now().Add(c.ttl)
}

func (c *reportCache) get() (*Report, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.report == nil || c.now().After(c.expires) {
		return nil, false
	}
	return c.report, true
}
