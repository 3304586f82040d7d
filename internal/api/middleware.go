// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/swbam/mysetlist-s4-sub007/internal/config"
)

// Middleware bundles the router's cross-cutting handlers.
type Middleware struct {
	cfg *config.Config
	// tokenHash is the SHA-256 of the configured API token. Comparing
	// fixed-length digests keeps the comparison constant-time regardless
	// of presented-token length.
	tokenHash [sha256.Size]byte
}

// NewMiddleware creates the middleware set from config.
func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{
		cfg:       cfg,
		tokenHash: sha256.Sum256([]byte(cfg.Security.APIToken)),
	}
}

// Authenticate requires the shared-secret bearer token on mutating and
// data endpoints.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing bearer token", nil)
			return
		}
		presented := sha256.Sum256([]byte(token))
		if subtle.ConstantTimeCompare(presented[:], m.tokenHash[:]) != 1 {
			respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "invalid token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit throttles API requests per client IP.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	reqs := m.cfg.Security.RateLimitReqs
	if reqs <= 0 {
		reqs = 60
	}
	window := m.cfg.Security.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.LimitByIP(reqs, window)
}

// SecurityHeaders sets conservative defaults on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
