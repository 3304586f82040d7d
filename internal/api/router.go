// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the HTTP API.
//
// /healthz and /metrics are unauthenticated for probes and scrapers; all
// /api/v1 endpoints require the bearer token and share an IP rate limit.
func NewRouter(h *Handler, mw *Middleware) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(SecurityHeaders)

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(mw.Authenticate)

		r.Get("/health", h.Health)
		r.Post("/freshness/check", h.TriggerFreshnessCheck)
		r.Get("/freshness/report", h.FreshnessReport)
		r.Post("/sync/force", h.ForceSync)
		r.Get("/queue/stats", h.QueueStats)
	})

	return r
}
