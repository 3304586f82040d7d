// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

// Package freshness decides, per tracked entity, whether its data is stale
// relative to declarative rules and how urgently it should be resynced.
//
// Rules for one entity kind are evaluated as a set, not a chain: every
// matching rule whose max age is exceeded contributes its priority, and
// the winning priority is the maximum. Each kind's rule set ends with a
// catch-all rule so every entity is eventually resynced.
package freshness

import (
	"math"
	"time"

	"github.com/swbam/mysetlist-s4-sub007/internal/models"
)

// NeverSynced is the data age assigned to entities that have no recorded
// successful sync. It exceeds every rule's MaxAge, so such entities are
// always at least catch-all stale.
const NeverSynced = time.Duration(math.MaxInt64)

// Rule is one declarative freshness rule for entity type T. Condition is a
// pure predicate over the entity's attributes; it must not do I/O.
type Rule[T any] struct {
	// Description is the human-readable reason reported when this rule
	// wins the priority contest.
	Description string

	// Condition decides whether the rule applies to the entity at all.
	Condition func(T) bool

	// MaxAge is the staleness threshold. The rule only fires once the
	// entity's data age strictly exceeds it.
	MaxAge time.Duration

	// Priority ranks urgency; higher is more urgent. The entity's final
	// priority is the maximum across all fired rules.
	Priority int

	// SyncType routes the resulting job to the right fetch client.
	SyncType models.SyncType
}

// Decision is the outcome of evaluating a rule set against one entity.
type Decision struct {
	RequiresSync bool
	Priority     int
	Reason       string
	SyncType     models.SyncType
}

// Evaluate runs the rule set against one entity and its data age. Among
// rules whose condition holds and whose MaxAge is exceeded, the highest
// priority wins; ties go to the first-declared rule for determinism.
// Pure function: no I/O, no clock access.
func Evaluate[T any](rules []Rule[T], entity T, dataAge time.Duration) Decision {
	var best Decision
	for _, r := range rules {
		if !r.Condition(entity) {
			continue
		}
		if dataAge <= r.MaxAge {
			continue
		}
		if !best.RequiresSync || r.Priority > best.Priority {
			best = Decision{
				RequiresSync: true,
				Priority:     r.Priority,
				Reason:       r.Description,
				SyncType:     r.SyncType,
			}
		}
	}
	return best
}

// DataAge computes the elapsed time since the last successful sync.
// Entities that were never synced get NeverSynced, which is stale under
// every rule including the catch-all.
func DataAge(lastSyncedAt *time.Time, now time.Time) time.Duration {
	if lastSyncedAt == nil {
		return NeverSynced
	}
	age := now.Sub(*lastSyncedAt)
	if age < 0 {
		return 0
	}
	return age
}
