// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

// Command server runs the MySetlist sync engine: the freshness evaluator,
// the priority sync queue, the upstream fetch clients, and the HTTP API,
// all under one supervision tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/swbam/mysetlist-s4-sub007/internal/api"
	"github.com/swbam/mysetlist-s4-sub007/internal/config"
	"github.com/swbam/mysetlist-s4-sub007/internal/database"
	"github.com/swbam/mysetlist-s4-sub007/internal/engine"
	"github.com/swbam/mysetlist-s4-sub007/internal/freshness"
	"github.com/swbam/mysetlist-s4-sub007/internal/logging"
	"github.com/swbam/mysetlist-s4-sub007/internal/models"
	"github.com/swbam/mysetlist-s4-sub007/internal/queue"
	"github.com/swbam/mysetlist-s4-sub007/internal/ratelimit"
	"github.com/swbam/mysetlist-s4-sub007/internal/sources"
	"github.com/swbam/mysetlist-s4-sub007/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("db", cfg.Database.Path).Msg("Starting MySetlist sync engine")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Upstream clients, each behind its own circuit breaker.
	clients := map[models.SyncType]sources.Client{
		models.SyncTicketing: sources.WrapWithBreaker(
			sources.NewTicketingClient(cfg.Sources.Ticketing, cfg.Sources.FetchTimeout)),
		models.SyncMusicMeta: sources.WrapWithBreaker(
			sources.NewMusicMetaClient(cfg.Sources.MusicMeta, cfg.Sources.FetchTimeout)),
		models.SyncSetlists: sources.WrapWithBreaker(
			sources.NewSetlistClient(cfg.Sources.Setlists, cfg.Sources.FetchTimeout)),
	}

	limiterOpts := []ratelimit.Option{
		ratelimit.WithWaitPolicy(cfg.RateLimit.WaitInterval, cfg.RateLimit.WaitAttempts),
	}
	if cfg.RateLimit.WindowJitter {
		limiterOpts = append(limiterOpts, ratelimit.WithJitter())
	}
	limiter := ratelimit.New(map[string]ratelimit.Budget{
		string(models.SyncTicketing): {MaxRequests: cfg.RateLimit.TicketingPerMinute, Window: ratelimit.DefaultWindow},
		string(models.SyncMusicMeta): {MaxRequests: cfg.RateLimit.MusicMetaPerMinute, Window: ratelimit.DefaultWindow},
		string(models.SyncSetlists):  {MaxRequests: cfg.RateLimit.SetlistsPerMinute, Window: ratelimit.DefaultWindow},
	}, limiterOpts...)

	executor := queue.NewExecutor(db, clients, limiter, cfg.Sources.FetchTimeout)
	scheduler := queue.New(queue.Config{
		Workers:           cfg.Queue.Workers,
		MaxAttempts:       cfg.Queue.MaxAttempts,
		RetryBackoff:      cfg.Queue.RetryBackoff,
		PromotionInterval: cfg.Queue.PromotionInterval,
	}, executor)

	evaluator := freshness.NewEvaluator(db, scheduler, freshness.DefaultRuleBook(),
		freshness.BatchLimits{
			Artists: cfg.Freshness.ArtistBatchSize,
			Shows:   cfg.Freshness.ShowBatchSize,
			Venues:  cfg.Freshness.VenueBatchSize,
		}, cfg.Freshness.ReportTTL)

	manager := engine.NewManager(evaluator, scheduler, db, cfg.Freshness.Interval)

	handler := api.NewHandler(manager)
	router := api.NewRouter(handler, api.NewMiddleware(cfg))
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)
	tree.AddEngineService(supervisor.NewEngineService(manager))
	tree.AddAPIService(supervisor.NewHTTPService(server, treeCfg.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("Shutdown complete")
	return nil
}
