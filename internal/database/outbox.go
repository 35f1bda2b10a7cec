package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cohost/internal/models"
)

// Enqueue inserts a pending outbox item for a thread and returns its id.
// Storage failures propagate to the caller; a message that cannot be made
// durable must never be silently dropped.
func (s *Store) Enqueue(ctx context.Context, threadID int64, message string, metadata map[string]string) (int64, error) {
	payload := models.OutboxPayload{
		Message:   message,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	query := `
		INSERT INTO queue_outbox (thread_id, payload_json, status, created_at, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id
	`

	var id int64
	if err := s.db.GetContext(ctx, &id, query, threadID, string(payloadJSON), models.OutboxStatusPending); err != nil {
		return 0, fmt.Errorf("failed to enqueue outbox item: %w", err)
	}
	return id, nil
}

// DequeuePending returns pending items in FIFO order, at most limit.
// It does not claim them; see Claim.
func (s *Store) DequeuePending(ctx context.Context, limit int) ([]models.OutboxItem, error) {
	query := `
		SELECT o.id, o.thread_id, o.payload_json, o.status, o.retry_count,
		       o.error_message, o.processed_at, o.created_at, o.updated_at,
		       t.external_id AS thread_external_id
		FROM queue_outbox o
		JOIN threads t ON t.id = o.thread_id
		WHERE o.status = $1
		ORDER BY o.created_at ASC
		LIMIT $2
	`

	items := []models.OutboxItem{}
	if err := s.db.SelectContext(ctx, &items, query, models.OutboxStatusPending, limit); err != nil {
		return nil, fmt.Errorf("failed to dequeue pending items: %w", err)
	}
	return items, nil
}

// Claim flips one item from pending to processing. The conditional UPDATE
// is the concurrency guard: under multiple worker instances at most one
// claim succeeds per item.
func (s *Store) Claim(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE queue_outbox
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND status = $3
	`

	result, err := s.db.ExecContext(ctx, query, models.OutboxStatusProcessing, id, models.OutboxStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to claim outbox item %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result for item %d: %w", id, err)
	}
	return affected > 0, nil
}

// MarkSent records terminal success. Idempotent: the processed_at stamp is
// only written on the first transition to sent.
func (s *Store) MarkSent(ctx context.Context, id int64) error {
	query := `
		UPDATE queue_outbox
		SET status = $1, processed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND status <> $1
	`

	if _, err := s.db.ExecContext(ctx, query, models.OutboxStatusSent, id); err != nil {
		return fmt.Errorf("failed to mark item %d sent: %w", id, err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt: status failed, retry_count
// incremented, error recorded. Callers must call it exactly once per
// genuine attempt since each call counts one attempt.
func (s *Store) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE queue_outbox
		SET status = $1, retry_count = retry_count + 1, error_message = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, models.OutboxStatusFailed, errorMessage, id); err != nil {
		return fmt.Errorf("failed to mark item %d failed: %w", id, err)
	}
	return nil
}

// RetryableFailed returns failed items still under the retry budget, in
// FIFO order.
func (s *Store) RetryableFailed(ctx context.Context, maxRetry int) ([]models.OutboxItem, error) {
	query := `
		SELECT o.id, o.thread_id, o.payload_json, o.status, o.retry_count,
		       o.error_message, o.processed_at, o.created_at, o.updated_at,
		       t.external_id AS thread_external_id
		FROM queue_outbox o
		JOIN threads t ON t.id = o.thread_id
		WHERE o.status = $1 AND o.retry_count < $2
		ORDER BY o.created_at ASC
	`

	items := []models.OutboxItem{}
	if err := s.db.SelectContext(ctx, &items, query, models.OutboxStatusFailed, maxRetry); err != nil {
		return nil, fmt.Errorf("failed to list retryable items: %w", err)
	}
	return items, nil
}

// Requeue transitions a failed item back to pending if it is still under
// the retry budget. Returns whether the transition happened.
func (s *Store) Requeue(ctx context.Context, id int64, maxRetry int) (bool, error) {
	query := `
		UPDATE queue_outbox
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND status = $3 AND retry_count < $4
	`

	result, err := s.db.ExecContext(ctx, query, models.OutboxStatusPending, id, models.OutboxStatusFailed, maxRetry)
	if err != nil {
		return false, fmt.Errorf("failed to requeue item %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read requeue result for item %d: %w", id, err)
	}
	return affected > 0, nil
}

// PurgeTerminal deletes sent and exhausted-failed rows older than the
// cutoff. The outbox is otherwise append-only.
func (s *Store) PurgeTerminal(ctx context.Context, olderThan time.Time, maxRetry int) (int64, error) {
	query := `
		DELETE FROM queue_outbox
		WHERE created_at < $1
		  AND (status = $2 OR (status = $3 AND retry_count >= $4))
	`

	result, err := s.db.ExecContext(ctx, query, olderThan, models.OutboxStatusSent, models.OutboxStatusFailed, maxRetry)
	if err != nil {
		return 0, fmt.Errorf("failed to purge outbox: %w", err)
	}
	return result.RowsAffected()
}
