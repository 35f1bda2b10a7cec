package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"cohost/internal/models"
)

// MessageIdentity computes the dedup key for a scraped message: the
// source-system id when present, otherwise a hash derived from the thread,
// content, timestamp and sender so that malformed items are still keyed
// rather than dropped.
func MessageIdentity(threadExternalID, externalMessageID, content, senderName string, sentAt time.Time) string {
	if externalMessageID != "" {
		return externalMessageID
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s", threadExternalID, content, sentAt.Unix(), senderName)
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// InsertMessageIfAbsent inserts a message unless one with the same
// external id already exists. Returns the inserted row and true when a new
// row was created, or (nil, false) for a duplicate.
func (s *Store) InsertMessageIfAbsent(ctx context.Context, msg *models.Message) (*models.Message, bool, error) {
	query := `
		INSERT INTO messages (thread_id, direction, content, external_id, sender_name, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING id, created_at
	`

	var row struct {
		ID        int64     `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := s.db.GetContext(ctx, &row, query,
		msg.ThreadID, msg.Direction, msg.Content, msg.ExternalID, msg.SenderName, msg.SentAt)
	if err == sql.ErrNoRows {
		// Conflict: the message was already recorded
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert message: %w", err)
	}

	inserted := *msg
	inserted.ID = row.ID
	inserted.CreatedAt = row.CreatedAt
	return &inserted, true, nil
}

// GetThreadMessages returns the most recent messages of a thread in
// chronological order, at most limit rows.
func (s *Store) GetThreadMessages(ctx context.Context, threadID int64, limit int) ([]models.Message, error) {
	query := `
		SELECT * FROM (
			SELECT * FROM messages
			WHERE thread_id = $1
			ORDER BY sent_at DESC
			LIMIT $2
		) recent
		ORDER BY sent_at ASC
	`

	messages := []models.Message{}
	if err := s.db.SelectContext(ctx, &messages, query, threadID, limit); err != nil {
		return nil, fmt.Errorf("failed to get thread messages: %w", err)
	}
	return messages, nil
}

// GetInboundMessagesSince returns inbound messages newer than since,
// most recent first.
func (s *Store) GetInboundMessagesSince(ctx context.Context, since time.Time) ([]models.Message, error) {
	query := `
		SELECT * FROM messages
		WHERE direction = $1 AND sent_at >= $2
		ORDER BY sent_at DESC
	`

	messages := []models.Message{}
	if err := s.db.SelectContext(ctx, &messages, query, models.DirectionInbound, since); err != nil {
		return nil, fmt.Errorf("failed to get inbound messages: %w", err)
	}
	return messages, nil
}
