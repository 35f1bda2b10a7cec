package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"cohost/internal/config"
	"cohost/internal/faults"
	"cohost/internal/models"
)

const sendWorkerName = "send_worker"

const dequeueBatchSize = 10

// Queue is the outbox surface the send worker drives
type Queue interface {
	DequeuePending(ctx context.Context, limit int) ([]models.OutboxItem, error)
	Claim(ctx context.Context, id int64) (bool, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	RetryableFailed(ctx context.Context, maxRetry int) ([]models.OutboxItem, error)
	Requeue(ctx context.Context, id int64, maxRetry int) (bool, error)
	PurgeTerminal(ctx context.Context, olderThan time.Time, maxRetry int) (int64, error)
	PurgeArchivedThreads(ctx context.Context, olderThan time.Time) (int64, error)
}

// Sender delivers one message to a thread
type Sender interface {
	Send(ctx context.Context, threadExternalID, message string) error
}

// SendWorker drains the outbox: claim, deliver, mark. Items are claimed
// with a conditional update so running a second instance is safe.
type SendWorker struct {
	queue      Queue
	sender     Sender
	heartbeats Heartbeats
	notifier   Notifier
	cfg        *config.Config

	sent      int
	failed    int
	lastPurge time.Time
}

func NewSendWorker(queue Queue, sender Sender, heartbeats Heartbeats, notifier Notifier, cfg *config.Config) *SendWorker {
	return &SendWorker{
		queue:      queue,
		sender:     sender,
		heartbeats: heartbeats,
		notifier:   notifier,
		cfg:        cfg,
	}
}

// Run loops until the context is cancelled or a CAPTCHA stops delivery
// for good. A CAPTCHA means every further send would fail the same way,
// so the loop exits instead of burning the retry budget of every item.
func (w *SendWorker) Run(ctx context.Context) error {
	log.Info().Dur("interval", w.cfg.SendInterval).Msg("Send worker started")
	consecutiveErrors := 0

	for {
		if ctx.Err() != nil {
			w.beat(context.WithoutCancel(ctx), models.WorkerStatusStopped, nil)
			return ctx.Err()
		}

		// The heartbeat lands before the cycle so a long batch does not
		// look dead to health checks
		w.beat(ctx, models.WorkerStatusRunning, nil)

		err := w.runCycle(ctx)
		switch {
		case err == nil:
			consecutiveErrors = 0
			sleepCtx(ctx, w.cfg.SendInterval)

		case faults.IsCaptcha(err):
			w.notifier.CaptchaDetected(ctx, sendWorkerName, err.Error())
			w.beat(ctx, models.WorkerStatusStopped, err)
			log.Error().Err(err).Msg("Send worker stopping until the session is cleared")
			return err

		default:
			consecutiveErrors++
			if faults.IsSessionExpired(err) {
				w.notifier.SessionExpired(ctx, sendWorkerName)
			}
			if consecutiveErrors >= alertAfterConsecutiveErrors {
				w.notifier.WorkerError(ctx, sendWorkerName, consecutiveErrors, err)
			}
			w.beat(ctx, models.WorkerStatusError, err)
			backoff := errorBackoff(w.cfg.RetryDelay, consecutiveErrors)
			log.Warn().Err(err).Int("consecutive", consecutiveErrors).Dur("backoff", backoff).
				Msg("Send cycle failed")
			sleepCtx(ctx, backoff)
		}
	}
}

// runCycle processes one batch. With nothing pending it requeues failed
// items that still have retry budget, and runs the daily retention sweep.
func (w *SendWorker) runCycle(ctx context.Context) error {
	items, err := w.queue.DequeuePending(ctx, dequeueBatchSize)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		if err := w.requeueFailed(ctx); err != nil {
			return err
		}
		w.maybeSweep(ctx)
		return nil
	}

	for i, item := range items {
		if i > 0 {
			sleepCtx(ctx, w.cfg.SendInterval)
		}
		if err := w.deliver(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// deliver handles one claimed item end to end. Only captcha faults
// propagate; everything else is recorded on the item itself.
func (w *SendWorker) deliver(ctx context.Context, item models.OutboxItem) error {
	claimed, err := w.queue.Claim(ctx, item.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	var payload models.OutboxPayload
	if err := json.Unmarshal([]byte(item.PayloadJSON), &payload); err != nil {
		w.failed++
		log.Error().Err(err).Int64("item", item.ID).Msg("Unreadable outbox payload")
		return w.queue.MarkFailed(ctx, item.ID, "unreadable payload: "+err.Error())
	}

	sendErr := w.sender.Send(ctx, item.ThreadExternalID, payload.Message)
	if sendErr == nil {
		w.sent++
		return w.queue.MarkSent(ctx, item.ID)
	}

	w.failed++
	if err := w.queue.MarkFailed(ctx, item.ID, sendErr.Error()); err != nil {
		return err
	}

	switch faults.KindOf(sendErr) {
	case faults.KindCaptcha:
		return sendErr
	case faults.KindSessionExpired:
		return sendErr
	default:
		if item.RetryCount+1 >= w.cfg.MaxRetrySend {
			w.notifier.Admin(ctx, "Reply delivery gave up",
				fmt.Sprintf("Outbox item %d for thread %s exhausted its %d retries. Last error: %v",
					item.ID, item.ThreadExternalID, w.cfg.MaxRetrySend, sendErr))
		}
		log.Warn().Err(sendErr).Int64("item", item.ID).Int("retry", item.RetryCount+1).
			Msg("Delivery failed")
		return nil
	}
}

func (w *SendWorker) requeueFailed(ctx context.Context) error {
	retryable, err := w.queue.RetryableFailed(ctx, w.cfg.MaxRetrySend)
	if err != nil {
		return err
	}
	for _, item := range retryable {
		requeued, err := w.queue.Requeue(ctx, item.ID, w.cfg.MaxRetrySend)
		if err != nil {
			return err
		}
		if requeued {
			log.Info().Int64("item", item.ID).Int("retry", item.RetryCount).Msg("Requeued failed item")
		}
	}
	return nil
}

// maybeSweep purges old terminal outbox rows and archived threads at
// most once per retentionSweepInterval
func (w *SendWorker) maybeSweep(ctx context.Context) {
	if w.cfg.RetentionDays <= 0 || time.Since(w.lastPurge) < retentionSweepInterval {
		return
	}
	w.lastPurge = time.Now()

	cutoff := time.Now().AddDate(0, 0, -w.cfg.RetentionDays)
	purged, err := w.queue.PurgeTerminal(ctx, cutoff, w.cfg.MaxRetrySend)
	if err != nil {
		log.Warn().Err(err).Msg("Outbox retention sweep failed")
		return
	}
	threads, err := w.queue.PurgeArchivedThreads(ctx, cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("Thread retention sweep failed")
		return
	}
	log.Info().Int64("outbox_rows", purged).Int64("threads", threads).Msg("Retention sweep done")
}

func (w *SendWorker) beat(ctx context.Context, status string, lastErr error) {
	metadata := map[string]any{
		"sent":   w.sent,
		"failed": w.failed,
	}
	if lastErr != nil {
		metadata["last_error"] = lastErr.Error()
	}
	if err := w.heartbeats.UpdateHeartbeat(ctx, sendWorkerName, status, metadata); err != nil {
		log.Warn().Err(err).Msg("Failed to record heartbeat")
	}
}
