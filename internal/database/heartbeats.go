package database

import (
	"context"
	"encoding/json"
	"fmt"

	"cohost/internal/models"
)

// UpdateHeartbeat upserts the liveness row for a worker. Metadata carries
// free-form counters and the last error, stored as JSON.
func (s *Store) UpdateHeartbeat(ctx context.Context, workerName, status string, metadata map[string]any) error {
	metaJSON := "{}"
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal heartbeat metadata: %w", err)
		}
		metaJSON = string(raw)
	}

	query := `
		INSERT INTO worker_heartbeats (worker_name, last_heartbeat, status, metadata, created_at)
		VALUES ($1, CURRENT_TIMESTAMP, $2, $3, CURRENT_TIMESTAMP)
		ON CONFLICT (worker_name) DO UPDATE SET
			last_heartbeat = CURRENT_TIMESTAMP,
			status = EXCLUDED.status,
			metadata = EXCLUDED.metadata
	`

	if _, err := s.db.ExecContext(ctx, query, workerName, status, metaJSON); err != nil {
		return fmt.Errorf("failed to update heartbeat for %s: %w", workerName, err)
	}
	return nil
}

// ListHeartbeats returns all worker heartbeat rows
func (s *Store) ListHeartbeats(ctx context.Context) ([]models.WorkerHeartbeat, error) {
	heartbeats := []models.WorkerHeartbeat{}
	query := `SELECT * FROM worker_heartbeats ORDER BY worker_name`
	if err := s.db.SelectContext(ctx, &heartbeats, query); err != nil {
		return nil, fmt.Errorf("failed to list heartbeats: %w", err)
	}
	return heartbeats, nil
}
