// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the sync engine:
// - Freshness pass totals and durations
// - Queue depth, dedup skips, job outcomes
// - Upstream fetch latency and rate limiter decisions
// - Circuit breaker state per source

var (
	// Freshness evaluation metrics
	FreshnessPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "freshness_pass_duration_seconds",
			Help:    "Duration of a full freshness evaluation pass",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	EntitiesEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freshness_entities_evaluated_total",
			Help: "Total number of entities examined by the freshness evaluator",
		},
		[]string{"kind"},
	)

	EntitiesStale = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freshness_entities_stale_total",
			Help: "Total number of entities flagged as requiring sync",
		},
		[]string{"kind"},
	)

	EvaluationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freshness_evaluation_errors_total",
			Help: "Total number of per-kind evaluation failures (store reads)",
		},
		[]string{"kind"},
	)

	// Queue metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_queue_depth",
			Help: "Current number of jobs waiting in the sync queue",
		},
		[]string{"state"}, // "ready", "delayed"
	)

	QueueDedupSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_queue_dedup_skips_total",
			Help: "Enqueue attempts skipped because a job for the same key was outstanding",
		},
	)

	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_jobs_enqueued_total",
			Help: "Total number of sync jobs accepted into the queue",
		},
		[]string{"sync_type"},
	)

	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_jobs_completed_total",
			Help: "Total number of sync jobs by terminal outcome",
		},
		[]string{"sync_type", "outcome"}, // "success", "exhausted", "permanent"
	)

	JobRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_job_retries_total",
			Help: "Total number of sync job retry attempts",
		},
		[]string{"sync_type"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_job_duration_seconds",
			Help:    "Duration of individual sync job executions",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"sync_type"},
	)

	// Rate limiter metrics
	RateLimitAllowed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_allowed_total",
			Help: "Outbound requests admitted by the per-source rate limiter",
		},
		[]string{"source"},
	)

	RateLimitDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_denied_total",
			Help: "Outbound requests denied by the per-source rate limiter",
		},
		[]string{"source"},
	)

	// Upstream fetch metrics
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_fetch_duration_seconds",
			Help:    "Duration of upstream API fetches",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_fetch_errors_total",
			Help: "Total number of upstream fetch failures by classification",
		},
		[]string{"source", "class"}, // "transient", "permanent"
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"source", "from", "to"},
	)
)
