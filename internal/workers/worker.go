// Package workers contains the two long-running loops: the sync worker
// that pulls conversations out of the inbox and drafts replies, and the
// send worker that delivers queued replies.
package workers

import (
	"context"
	"time"
)

// A worker reports repeated failure after this many bad cycles in a row
const alertAfterConsecutiveErrors = 5

// maxBackoff caps the error backoff between cycles
const maxBackoff = 10 * time.Minute

// retention sweeps run at most once per day
const retentionSweepInterval = 24 * time.Hour

// Heartbeats records worker liveness
type Heartbeats interface {
	UpdateHeartbeat(ctx context.Context, workerName, status string, metadata map[string]any) error
}

// Notifier raises operational alerts
type Notifier interface {
	CaptchaDetected(ctx context.Context, workerName, detail string)
	SessionExpired(ctx context.Context, workerName string)
	WorkerError(ctx context.Context, workerName string, consecutive int, err error)
	Admin(ctx context.Context, title, body string)
}

// errorBackoff grows linearly with the consecutive error count, capped
// at maxBackoff
func errorBackoff(retryDelay time.Duration, consecutive int) time.Duration {
	d := retryDelay * time.Duration(consecutive)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// sleepCtx waits for d or until the context is cancelled
func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
