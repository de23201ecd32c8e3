package store

import (
	"context"
	"fmt"
)

const createRunsTableSQL = `CREATE TABLE IF NOT EXISTS bom_runs (
    id          UUID PRIMARY KEY,
    file_name   TEXT NOT NULL,
    format      TEXT NOT NULL,
    combined    JSONB NOT NULL,
    sheets      JSONB NOT NULL,
    entry_count INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const createRunsCreatedIndexSQL = `CREATE INDEX IF NOT EXISTS idx_bom_runs_created_at
    ON bom_runs (created_at DESC)`

// EnsureSchema creates the bom_runs table and its index if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createRunsTableSQL); err != nil {
		return fmt.Errorf("store: create table: %w", err)
	}
	if _, err := s.db.Exec(ctx, createRunsCreatedIndexSQL); err != nil {
		return fmt.Errorf("store: create index: %w", err)
	}
	return nil
}
