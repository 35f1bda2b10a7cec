package workers

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"cohost/internal/config"
	"cohost/internal/faults"
	"cohost/internal/ingest"
	"cohost/internal/models"
	"cohost/internal/utils"
)

const syncWorkerName = "sync_worker"

const syncBatchSize = 20

// Fetcher pulls thread snapshots from the inbox
type Fetcher interface {
	FetchThreads(ctx context.Context, maxThreads int) ([]models.ThreadSnapshot, error)
}

// Ingestor folds one snapshot into storage
type Ingestor interface {
	ProcessSnapshot(ctx context.Context, snap models.ThreadSnapshot) (*ingest.Result, error)
}

// Generator drafts replies
type Generator interface {
	Draft(ctx context.Context, thread *models.Thread, latest models.Message) (string, error)
	Fallback(guestName string) string
}

// SyncStore is the storage surface the sync worker needs beyond ingest
type SyncStore interface {
	GetThreadByExternalID(ctx context.Context, externalID string) (*models.Thread, error)
	Enqueue(ctx context.Context, threadID int64, message string, metadata map[string]string) (int64, error)
}

// SyncWorker scrapes the inbox, ingests what it finds and queues a
// reply for every first-seen guest message. Sending is the send
// worker's job; this loop only ever writes to the outbox.
type SyncWorker struct {
	fetcher    Fetcher
	ingestor   Ingestor
	generator  Generator
	store      SyncStore
	heartbeats Heartbeats
	notifier   Notifier
	cfg        *config.Config

	ingested int
	drafted  int
	fellBack int
}

func NewSyncWorker(fetcher Fetcher, ingestor Ingestor, generator Generator, store SyncStore, heartbeats Heartbeats, notifier Notifier, cfg *config.Config) *SyncWorker {
	return &SyncWorker{
		fetcher:    fetcher,
		ingestor:   ingestor,
		generator:  generator,
		store:      store,
		heartbeats: heartbeats,
		notifier:   notifier,
		cfg:        cfg,
	}
}

// Run loops until cancellation or a CAPTCHA challenge
func (w *SyncWorker) Run(ctx context.Context) error {
	log.Info().Dur("interval", w.cfg.ScrapeInterval).Msg("Sync worker started")
	consecutiveErrors := 0

	for {
		if ctx.Err() != nil {
			w.beat(context.WithoutCancel(ctx), models.WorkerStatusStopped, nil)
			return ctx.Err()
		}

		// The heartbeat lands before the cycle so a long scrape does not
		// look dead to health checks
		w.beat(ctx, models.WorkerStatusRunning, nil)

		err := w.runCycle(ctx, syncBatchSize)
		switch {
		case err == nil:
			consecutiveErrors = 0
			sleepCtx(ctx, w.cfg.ScrapeInterval)

		case faults.IsCaptcha(err):
			w.notifier.CaptchaDetected(ctx, syncWorkerName, err.Error())
			w.beat(ctx, models.WorkerStatusStopped, err)
			log.Error().Err(err).Msg("Sync worker stopping until the session is cleared")
			return err

		default:
			consecutiveErrors++
			if faults.IsSessionExpired(err) {
				w.notifier.SessionExpired(ctx, syncWorkerName)
			}
			if consecutiveErrors >= alertAfterConsecutiveErrors {
				w.notifier.WorkerError(ctx, syncWorkerName, consecutiveErrors, err)
			}
			w.beat(ctx, models.WorkerStatusError, err)
			backoff := errorBackoff(w.cfg.RetryDelay, consecutiveErrors)
			log.Warn().Err(err).Int("consecutive", consecutiveErrors).Dur("backoff", backoff).
				Msg("Sync cycle failed")
			sleepCtx(ctx, backoff)
		}
	}
}

// RunOnce performs a single sync pass over up to maxThreads threads,
// used for manual and backfill runs
func (w *SyncWorker) RunOnce(ctx context.Context, maxThreads int) error {
	err := w.runCycle(ctx, maxThreads)
	if err == nil {
		w.beat(ctx, models.WorkerStatusStopped, nil)
	} else {
		w.beat(ctx, models.WorkerStatusError, err)
	}
	return err
}

// runCycle fetches snapshots and processes them. Snapshots scraped
// before a CAPTCHA hit are still ingested; the fault surfaces after.
func (w *SyncWorker) runCycle(ctx context.Context, maxThreads int) error {
	snaps, fetchErr := w.fetcher.FetchThreads(ctx, maxThreads)

	for _, snap := range snaps {
		if err := w.processThread(ctx, snap); err != nil {
			log.Warn().Err(err).Str("thread", snap.ExternalThreadID).Msg("Failed to process thread")
		}
	}
	return fetchErr
}

// processThread ingests one snapshot and queues one reply for every
// first-seen guest message. Generation failure never loses a guest
// message: the canned fallback is queued instead.
func (w *SyncWorker) processThread(ctx context.Context, snap models.ThreadSnapshot) error {
	result, err := w.ingestor.ProcessSnapshot(ctx, snap)
	if err != nil {
		return err
	}
	w.ingested += result.Inserted

	if len(result.NewInbound) == 0 {
		return nil
	}

	thread, err := w.store.GetThreadByExternalID(ctx, snap.ExternalThreadID)
	if err != nil {
		return err
	}
	if thread == nil {
		return nil
	}

	for _, msg := range result.NewInbound {
		if err := w.queueReply(ctx, thread, msg); err != nil {
			return err
		}
	}
	return nil
}

func (w *SyncWorker) queueReply(ctx context.Context, thread *models.Thread, msg models.Message) error {
	metadata := map[string]string{
		"source": "ai",
		"topics": strings.Join(utils.ExtractTopics(msg.Content, 5), ","),
	}

	reply, err := w.generator.Draft(ctx, thread, msg)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			log.Warn().Err(err).Str("thread", thread.ExternalID).Msg("Draft generation failed, using fallback")
		}
		reply = w.generator.Fallback(thread.GuestName)
		metadata["source"] = "fallback"
		w.fellBack++
	} else {
		w.drafted++
	}

	if _, err := w.store.Enqueue(ctx, thread.ID, reply, metadata); err != nil {
		return err
	}
	log.Info().Str("thread", thread.ExternalID).Str("source", metadata["source"]).Msg("Reply queued")
	return nil
}

func (w *SyncWorker) beat(ctx context.Context, status string, lastErr error) {
	metadata := map[string]any{
		"ingested":  w.ingested,
		"drafted":   w.drafted,
		"fallbacks": w.fellBack,
	}
	if lastErr != nil {
		metadata["last_error"] = lastErr.Error()
	}
	if err := w.heartbeats.UpdateHeartbeat(ctx, syncWorkerName, status, metadata); err != nil {
		log.Warn().Err(err).Msg("Failed to record heartbeat")
	}
}
