// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

// Package queue schedules and executes sync jobs: prioritized, deduplicated
// against in-flight work, rate limited per upstream source, and retried
// with exponential backoff on transient failures.
package queue

import (
	"fmt"
	"time"

	"github.com/swbam/mysetlist-s4-sub007/internal/models"
)

// SyncJob is one unit of scheduled work: refresh one entity from one
// upstream source.
type SyncJob struct {
	ID         string
	Kind       models.EntityKind
	EntityID   int64
	ExternalID string
	SyncType   models.SyncType
	Priority   int

	// ForceRefresh bypasses the dedup short-circuit; at most one duplicate
	// in flight is the accepted cost of forcing.
	ForceRefresh bool

	// Attempts counts executions so far, including the one in progress.
	Attempts int

	EnqueuedAt time.Time
	// NotBefore is the scheduled ready time; jobs wait in the delayed set
	// until it passes.
	NotBefore time.Time

	seq uint64 // enqueue sequence, FIFO tie-break within a priority
}

// DedupKey identifies the at-most-one-outstanding-job slot for this job.
// Entity ids are per-kind tables, so the kind is part of the key.
func (j *SyncJob) DedupKey() string {
	return fmt.Sprintf("%s:%d:%s", j.Kind, j.EntityID, j.SyncType)
}

// FailureRecord captures a job that exhausted its attempts or failed
// permanently, for surfacing in reports and manual follow-up.
type FailureRecord struct {
	JobID    string            `json:"job_id"`
	Kind     models.EntityKind `json:"kind"`
	EntityID int64             `json:"entity_id"`
	SyncType models.SyncType   `json:"sync_type"`
	Attempts int               `json:"attempts"`
	Error    string            `json:"error"`
	FailedAt time.Time         `json:"failed_at"`
}

// Stats is a point-in-time snapshot of queue state for observability.
type Stats struct {
	Ready          int             `json:"ready"`
	Delayed        int             `json:"delayed"`
	Active         int             `json:"active"`
	Outstanding    int             `json:"outstanding"`
	RecentFailures []FailureRecord `json:"recent_failures,omitempty"`
}
