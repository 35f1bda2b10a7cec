package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cohost/internal/models"
)

// UpsertListing creates a listing or refreshes its name, returning the row id
func (s *Store) UpsertListing(ctx context.Context, externalID, name string) (int64, error) {
	query := `
		INSERT INTO listings (external_id, name, created_at, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (external_id) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	var id int64
	if err := s.db.GetContext(ctx, &id, query, externalID, name); err != nil {
		return 0, fmt.Errorf("failed to upsert listing: %w", err)
	}
	return id, nil
}

// UpsertThread creates a thread on first sighting or refreshes the guest
// name and activity timestamps on every subsequent ingest cycle.
func (s *Store) UpsertThread(ctx context.Context, externalID string, listingID int64, guestName string, lastMessageAt *time.Time) (int64, error) {
	query := `
		INSERT INTO threads (external_id, listing_id, guest_name, last_message_at, last_scraped_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (external_id) DO UPDATE SET
			guest_name = CASE WHEN EXCLUDED.guest_name <> '' THEN EXCLUDED.guest_name ELSE threads.guest_name END,
			last_message_at = COALESCE(EXCLUDED.last_message_at, threads.last_message_at),
			last_scraped_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	var id int64
	if err := s.db.GetContext(ctx, &id, query, externalID, listingID, guestName, lastMessageAt); err != nil {
		return 0, fmt.Errorf("failed to upsert thread: %w", err)
	}
	return id, nil
}

// GetThreadByExternalID returns a thread by its Airbnb id, or nil if unseen
func (s *Store) GetThreadByExternalID(ctx context.Context, externalID string) (*models.Thread, error) {
	var thread models.Thread
	query := `SELECT * FROM threads WHERE external_id = $1`
	err := s.db.GetContext(ctx, &thread, query, externalID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return &thread, nil
}

// ListThreads returns threads ordered by most recent activity
func (s *Store) ListThreads(ctx context.Context, limit int) ([]models.Thread, error) {
	query := `
		SELECT * FROM threads
		ORDER BY last_message_at DESC NULLS LAST
		LIMIT $1
	`

	threads := []models.Thread{}
	if err := s.db.SelectContext(ctx, &threads, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return threads, nil
}

// CountGuestThreads returns how many threads exist for a guest on a
// listing, used to flag returning guests.
func (s *Store) CountGuestThreads(ctx context.Context, guestName string, listingID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM threads WHERE guest_name = $1 AND listing_id = $2`
	if err := s.db.GetContext(ctx, &count, query, guestName, listingID); err != nil {
		return 0, fmt.Errorf("failed to count guest threads: %w", err)
	}
	return count, nil
}

// GetListing returns a listing row by id, or nil when absent
func (s *Store) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	var listing models.Listing
	query := `SELECT * FROM listings WHERE id = $1`
	err := s.db.GetContext(ctx, &listing, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &listing, nil
}

// PurgeArchivedThreads deletes archived threads whose last activity is
// older than the cutoff. Cascades to their messages and outbox rows.
func (s *Store) PurgeArchivedThreads(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		DELETE FROM threads
		WHERE status = $1 AND COALESCE(last_message_at, created_at) < $2
	`

	result, err := s.db.ExecContext(ctx, query, models.ThreadStatusArchived, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge archived threads: %w", err)
	}
	return result.RowsAffected()
}
