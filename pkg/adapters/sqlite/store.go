package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rishimeka/astro/pkg/domain"
)

// Store implements ports.RunStore and ports.ConstellationStore on a
// single-file SQLite database.
//
// Suited to development and single-process deployments: zero setup, WAL mode
// for concurrent reads, one writer connection. Use ":memory:" for tests.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and migrates the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite supports one writer at a time
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			constellation_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			input TEXT NOT NULL DEFAULT '',
			final_output TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_updated_at ON runs(updated_at)`,
		`CREATE TABLE IF NOT EXISTS run_nodes (
			run_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			star_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			output TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			attempt INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL DEFAULT '',
			finished_at TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, node_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_nodes_run_id ON run_nodes(run_id)`,
		`CREATE TABLE IF NOT EXISTS constellations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			definition TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// SaveRun persists the run summary, preserving created_at on overwrite.
func (s *Store) SaveRun(ctx context.Context, run domain.RunRecord) error {
	query := `
		INSERT INTO runs (id, constellation_id, status, input, final_output, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			constellation_id = excluded.constellation_id,
			status = excluded.status,
			input = excluded.input,
			final_output = excluded.final_output,
			error = excluded.error,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.ConstellationID,
		string(run.Status),
		run.Input,
		run.FinalOutput,
		run.Error,
		formatTime(run.CreatedAt),
		formatTime(run.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// LoadRun retrieves a run summary.
func (s *Store) LoadRun(ctx context.Context, runID string) (domain.RunRecord, error) {
	query := `
		SELECT id, constellation_id, status, input, final_output, error, created_at, updated_at
		FROM runs WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunRecord{}, domain.ErrRunNotFound
	}
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns run summaries, most recently updated first.
func (s *Store) ListRuns(ctx context.Context) ([]domain.RunRecord, error) {
	query := `
		SELECT id, constellation_id, status, input, final_output, error, created_at, updated_at
		FROM runs ORDER BY updated_at DESC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []domain.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// SaveNodeRecord persists one node outcome, overwriting any previous record
// for the same node.
func (s *Store) SaveNodeRecord(ctx context.Context, rec domain.NodeRecord) error {
	query := `
		INSERT INTO run_nodes (run_id, node_id, star_id, status, output, error, attempt, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, node_id) DO UPDATE SET
			star_id = excluded.star_id,
			status = excluded.status,
			output = excluded.output,
			error = excluded.error,
			attempt = excluded.attempt,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.RunID,
		rec.NodeID,
		rec.StarID,
		string(rec.Status),
		rec.Output,
		rec.Error,
		rec.Attempt,
		formatTime(rec.StartedAt),
		formatTime(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("save node record %s/%s: %w", rec.RunID, rec.NodeID, err)
	}
	return nil
}

// LoadNodeRecords retrieves a run's node records in node id order.
func (s *Store) LoadNodeRecords(ctx context.Context, runID string) ([]domain.NodeRecord, error) {
	query := `
		SELECT run_id, node_id, star_id, status, output, error, attempt, started_at, finished_at
		FROM run_nodes WHERE run_id = ? ORDER BY node_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("load node records for %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	records := []domain.NodeRecord{}
	for rows.Next() {
		var rec domain.NodeRecord
		var status, startedAt, finishedAt string
		if err := rows.Scan(&rec.RunID, &rec.NodeID, &rec.StarID, &status, &rec.Output, &rec.Error, &rec.Attempt, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("load node records for %s: %w", runID, err)
		}
		rec.Status = domain.NodeStatus(status)
		if rec.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("load node records for %s: %w", runID, err)
		}
		if rec.FinishedAt, err = parseTime(finishedAt); err != nil {
			return nil, fmt.Errorf("load node records for %s: %w", runID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load node records for %s: %w", runID, err)
	}
	return records, nil
}

// DeleteRun removes the run summary and its node records atomically.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_nodes WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("delete node records for %s: %w", runID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", runID); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	committed = true
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.RunRecord, error) {
	var run domain.RunRecord
	var status, createdAt, updatedAt string
	if err := row.Scan(&run.ID, &run.ConstellationID, &status, &run.Input, &run.FinalOutput, &run.Error, &createdAt, &updatedAt); err != nil {
		return domain.RunRecord{}, err
	}
	run.Status = domain.RunStatus(status)

	var err error
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.RunRecord{}, err
	}
	if run.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.RunRecord{}, err
	}
	return run, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return t, nil
}
