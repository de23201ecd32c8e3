// Package store persists processed BOM runs in PostgreSQL.
//
// A run is one upload: its file name, the combined entries and the outcome of
// every table it contained. Entries are stored as JSONB so the history survives
// changes to the engine without migrations.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/bomtool/internal/bom"
)

// ErrRunNotFound is returned by GetRun for unknown ids.
var ErrRunNotFound = errors.New("run not found")

// DefaultListLimit caps ListRuns when the caller passes a non-positive limit.
const DefaultListLimit = 50

// Querier is the subset of pgx used by Store. *pgxpool.Pool and pgx.Tx
// both satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SheetResult is the stored outcome of one table.
type SheetResult struct {
	Name    string      `json:"name"`
	Entries []bom.Entry `json:"entries,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Run is one processed upload.
type Run struct {
	ID        uuid.UUID     `json:"id"`
	FileName  string        `json:"file_name"`
	Format    string        `json:"format"`
	CreatedAt time.Time     `json:"created_at"`
	Combined  []bom.Entry   `json:"combined"`
	Sheets    []SheetResult `json:"sheets"`
}

// RunSummary is a run without its entries.
type RunSummary struct {
	ID         uuid.UUID `json:"id"`
	FileName   string    `json:"file_name"`
	Format     string    `json:"format"`
	EntryCount int       `json:"entry_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store reads and writes runs.
type Store struct {
	db Querier
}

// New creates a Store on top of db.
func New(db Querier) *Store {
	return &Store{db: db}
}

const insertRunSQL = `INSERT INTO bom_runs
	(id, file_name, format, combined, sheets, entry_count, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// SaveRun inserts run, assigning an id and timestamp when they are unset.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	combined, err := json.Marshal(nonNilEntries(run.Combined))
	if err != nil {
		return fmt.Errorf("store: marshal combined: %w", err)
	}
	sheets, err := json.Marshal(nonNilSheets(run.Sheets))
	if err != nil {
		return fmt.Errorf("store: marshal sheets: %w", err)
	}

	if _, err := s.db.Exec(ctx, insertRunSQL,
		run.ID,
		run.FileName,
		run.Format,
		combined,
		sheets,
		len(run.Combined),
		run.CreatedAt,
	); err != nil {
		return fmt.Errorf("store: save run: %w", err)
	}
	return nil
}

const listRunsSQL = `SELECT id, file_name, format, entry_count, created_at
	FROM bom_runs ORDER BY created_at DESC LIMIT $1`

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.Query(ctx, listRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.FileName, &r.Format, &r.EntryCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return runs, nil
}

const getRunSQL = `SELECT id, file_name, format, combined, sheets, created_at
	FROM bom_runs WHERE id = $1`

// GetRun loads one run. Unknown ids return ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var (
		run              Run
		combined, sheets []byte
	)
	err := s.db.QueryRow(ctx, getRunSQL, id).
		Scan(&run.ID, &run.FileName, &run.Format, &combined, &sheets, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run: %w", err)
	}

	if err := json.Unmarshal(combined, &run.Combined); err != nil {
		return nil, fmt.Errorf("store: decode combined: %w", err)
	}
	if len(sheets) > 0 {
		if err := json.Unmarshal(sheets, &run.Sheets); err != nil {
			return nil, fmt.Errorf("store: decode sheets: %w", err)
		}
	}
	return &run, nil
}

const deleteRunsBeforeSQL = `DELETE FROM bom_runs WHERE created_at < $1`

// DeleteRunsBefore removes runs created before cutoff and returns how many
// were deleted.
func (s *Store) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, deleteRunsBeforeSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: delete runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nonNilEntries(e []bom.Entry) []bom.Entry {
	if e == nil {
		return []bom.Entry{}
	}
	return e
}

func nonNilSheets(s []SheetResult) []SheetResult {
	if s == nil {
		return []SheetResult{}
	}
	return s
}
