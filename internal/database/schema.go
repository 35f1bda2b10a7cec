package database

// CreateTables creates the application tables if they don't exist
func (s *Store) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id BIGSERIAL PRIMARY KEY,
			external_id VARCHAR(128) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'active',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS threads (
			id BIGSERIAL PRIMARY KEY,
			external_id VARCHAR(128) UNIQUE NOT NULL,
			listing_id BIGINT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
			guest_name VARCHAR(255) NOT NULL DEFAULT '',
			last_message_at TIMESTAMP,
			last_scraped_at TIMESTAMP,
			status VARCHAR(32) NOT NULL DEFAULT 'open',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_threads_listing ON threads(listing_id)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			thread_id BIGINT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
			direction VARCHAR(16) NOT NULL,
			content TEXT NOT NULL,
			external_id VARCHAR(255) UNIQUE NOT NULL,
			sender_name VARCHAR(255) NOT NULL DEFAULT '',
			sent_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sent_at ON messages(sent_at)`,
		`CREATE TABLE IF NOT EXISTS queue_outbox (
			id BIGSERIAL PRIMARY KEY,
			thread_id BIGINT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
			payload_json TEXT NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'pending',
			retry_count INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			processed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_status ON queue_outbox(status)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_created ON queue_outbox(created_at)`,
		`CREATE TABLE IF NOT EXISTS worker_heartbeats (
			id BIGSERIAL PRIMARY KEY,
			worker_name VARCHAR(64) UNIQUE NOT NULL,
			last_heartbeat TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			status VARCHAR(32) NOT NULL DEFAULT 'running',
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}
