package store

import (
	"context"
	"fmt"
	"time"

	"clipforge/internal/config"
)

// Store provides entity persistence on top of DB.
type Store struct {
	db  *DB
	now func() time.Time
}

// Open connects to the configured database, applies migrations, and returns a Store.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// New wraps an open DB.
func New(db *DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// DB exposes the shared connection so the task queue can reuse it.
func (s *Store) DB() *DB { return s.db }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}
