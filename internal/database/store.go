// Package database implements the relational store shared by the workers
// and the HTTP API: listings, threads, messages, the outbox send-queue and
// worker heartbeats.
package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Store wraps the database handle with the domain queries
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new store and ensures the schema exists
func NewStore(db *sqlx.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}

	s := &Store{db: db}
	if err := s.CreateTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// NewStoreWithoutMigrate creates a store over an existing schema
func NewStoreWithoutMigrate(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks
func (s *Store) DB() *sqlx.DB {
	return s.db
}
