// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/swbam/mysetlist-s4-sub007/internal/engine"
	"github.com/swbam/mysetlist-s4-sub007/internal/logging"
)

// EngineService adapts the sync engine's Start/Stop lifecycle to the
// suture.Service interface.
type EngineService struct {
	manager *engine.Manager
}

// NewEngineService wraps the engine manager.
func NewEngineService(m *engine.Manager) *EngineService {
	return &EngineService{manager: m}
}

// Serve starts the engine and blocks until ctx is canceled, then stops it.
func (s *EngineService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	if err := s.manager.Stop(); err != nil {
		logging.Error().Err(err).Msg("Engine shutdown error")
	}
	return ctx.Err()
}

// HTTPService adapts an http.Server to the suture.Service interface with
// graceful shutdown.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService wraps the HTTP server.
func NewHTTPService(server *http.Server, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve runs the listener and shuts it down gracefully on cancellation.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("HTTP shutdown error")
		}
		<-errCh
		return ctx.Err()
	}
}
