// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

/*
handlers.go - Sync Engine HTTP Handlers

Endpoints:
  - GET  /api/v1/health           liveness plus engine summary
  - POST /api/v1/freshness/check  trigger a freshness pass (409 if running)
  - GET  /api/v1/freshness/report last pass report (404 if cache expired)
  - POST /api/v1/sync/force       force-refresh one entity, bypassing rules
  - GET  /api/v1/queue/stats      queue depth and recent failures
*/

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/swbam/mysetlist-s4-sub007/internal/engine"
	"github.com/swbam/mysetlist-s4-sub007/internal/models"
)

// Handler contains dependencies for the API handlers.
type Handler struct {
	engine    *engine.Manager
	validate  *validator.Validate
	startTime time.Time
}

// NewHandler creates an API handler around the sync engine.
func NewHandler(eng *engine.Manager) *Handler {
	return &Handler{
		engine:    eng,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		startTime: time.Now(),
	}
}

// healthPayload is the /health response body.
type healthPayload struct {
	Status        string    `json:"status"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	LastPass      time.Time `json:"last_pass,omitempty"`
	QueueReady    int       `json:"queue_ready"`
	QueueDelayed  int       `json:"queue_delayed"`
	QueueActive   int       `json:"queue_active"`
}

// Health reports liveness and a queue summary.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.QueueStats()
	respondData(w, http.StatusOK, healthPayload{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		LastPass:      h.engine.LastPassTime(),
		QueueReady:    stats.Ready,
		QueueDelayed:  stats.Delayed,
		QueueActive:   stats.Active,
	}, false)
}

// TriggerFreshnessCheck runs a freshness pass on demand.
func (h *Handler) TriggerFreshnessCheck(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.TriggerPass(r.Context())
	if errors.Is(err, engine.ErrPassInProgress) {
		respondError(w, http.StatusConflict, "CONFLICT", "a freshness pass is already running", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "freshness pass failed", err)
		return
	}
	respondData(w, http.StatusOK, report, false)
}

// FreshnessReport serves the most recent pass report from cache.
func (h *Handler) FreshnessReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.engine.LastReport()
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "no recent freshness report, trigger a check first", nil)
		return
	}
	respondData(w, http.StatusOK, report, true)
}

// forceSyncRequest is the /sync/force request body.
type forceSyncRequest struct {
	Kind     string `json:"kind" validate:"required,oneof=artist show venue"`
	EntityID int64  `json:"entity_id" validate:"required,gt=0"`
	SyncType string `json:"sync_type" validate:"omitempty,oneof=ticketing musicmeta setlists"`
}

// forceSyncResponse is the /sync/force response body.
type forceSyncResponse struct {
	Enqueued bool   `json:"enqueued"`
	Kind     string `json:"kind"`
	EntityID int64  `json:"entity_id"`
}

// ForceSync enqueues a maximum-priority sync for one entity, bypassing
// freshness rules.
func (h *Handler) ForceSync(w http.ResponseWriter, r *http.Request) {
	var req forceSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body", err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	enqueued, err := h.engine.ForceRefresh(r.Context(),
		models.EntityKind(req.Kind), req.EntityID, models.SyncType(req.SyncType))
	if err != nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), err)
		return
	}
	respondData(w, http.StatusAccepted, forceSyncResponse{
		Enqueued: enqueued,
		Kind:     req.Kind,
		EntityID: req.EntityID,
	}, false)
}

// QueueStats exposes queue depth and the recent-failure buffer.
func (h *Handler) QueueStats(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, h.engine.QueueStats(), false)
}
