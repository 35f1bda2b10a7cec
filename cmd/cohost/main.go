package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"cohost/internal/airbnb"
	"cohost/internal/config"
	"cohost/internal/database"
	"cohost/internal/ingest"
	"cohost/internal/notify"
	"cohost/internal/responder"
	"cohost/internal/server"
	"cohost/internal/workers"
)

const defaultBackfillThreads = 200

func main() {
	cfg := config.Load()
	logger := cfg.SetupLogger()
	log.Logger = logger

	mode := "syncsend"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	store, err := newStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "api":
		runAPI(cfg, store)
	case "sync":
		runWorkers(ctx, cfg, store, true, false)
	case "send":
		runWorkers(ctx, cfg, store, false, true)
	case "syncsend":
		runWorkers(ctx, cfg, store, true, true)
	case "backfill":
		runBackfill(ctx, cfg, store)
	default:
		fmt.Fprintf(os.Stderr, "usage: cohost [api|sync|send|syncsend|backfill]\n")
		os.Exit(2)
	}
}

func newStore(cfg *config.Config) (*database.Store, error) {
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return database.NewStore(db)
}

// runAPI serves the HTTP surface: health, messaging and admin endpoints
func runAPI(cfg *config.Config, store *database.Store) {
	srv := server.New(cfg, store, log.Logger)
	srv.Initialize()
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// runWorkers starts the requested worker loops against one shared
// browser session and blocks until all of them return
func runWorkers(ctx context.Context, cfg *config.Config, store *database.Store, withSync, withSend bool) {
	browser := airbnb.NewBrowser(cfg)
	defer browser.Close()

	notifier := notify.New(cfg)

	var wg sync.WaitGroup
	if withSync {
		syncWorker := newSyncWorker(cfg, store, browser, notifier)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := syncWorker.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("Sync worker exited")
			}
		}()
	}
	if withSend {
		sendWorker := workers.NewSendWorker(store, airbnb.NewSender(browser), store, notifier, cfg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sendWorker.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("Send worker exited")
			}
		}()
	}
	wg.Wait()
}

// runBackfill performs one deep sync pass and exits. Thread count comes
// from BACKFILL_MAX_THREADS, set by the job launcher.
func runBackfill(ctx context.Context, cfg *config.Config, store *database.Store) {
	maxThreads := defaultBackfillThreads
	if raw := os.Getenv("BACKFILL_MAX_THREADS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			maxThreads = parsed
		}
	}

	browser := airbnb.NewBrowser(cfg)
	defer browser.Close()

	syncWorker := newSyncWorker(cfg, store, browser, notify.New(cfg))
	log.Info().Int("max_threads", maxThreads).Msg("Backfill starting")
	if err := syncWorker.RunOnce(ctx, maxThreads); err != nil {
		log.Fatal().Err(err).Msg("Backfill failed")
	}
	log.Info().Msg("Backfill complete")
}

func newSyncWorker(cfg *config.Config, store *database.Store, browser *airbnb.Browser, notifier *notify.Service) *workers.SyncWorker {
	return workers.NewSyncWorker(
		airbnb.NewScraper(browser),
		ingest.New(store),
		responder.New(store, cfg),
		store,
		store,
		notifier,
		cfg,
	)
}
