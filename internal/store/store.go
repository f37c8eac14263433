// Package store persists run history and per-run anomaly lists in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store wraps SQLite access for run audit history.
type Store struct {
	db *sql.DB
}

// Open creates a new Store at dsn, applying recommended pragmas and running
// migrations.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// applyPragmas configures SQLite for single-user batch use.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			course TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			accepted INTEGER NOT NULL,
			missing INTEGER NOT NULL,
			ignored INTEGER NOT NULL,
			undeployed INTEGER NOT NULL,
			learners INTEGER NOT NULL,
			items INTEGER NOT NULL,
			negative INTEGER NOT NULL,
			dropped INTEGER NOT NULL,
			success INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS anomalies (
			run_id TEXT NOT NULL,
			learner TEXT NOT NULL,
			item TEXT NOT NULL,
			kind TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_course ON runs(course, started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_anomalies_run ON anomalies(run_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RunRecord is one course-processing run's audit row.
type RunRecord struct {
	ID         string
	Course     string
	StartedAt  time.Time
	FinishedAt time.Time
	Accepted   int
	Missing    int
	Ignored    int
	Undeployed int
	Learners   int
	Items      int
	Negative   int
	Dropped    int
	Success    bool
}

// Anomaly is one quarantined or dropped (learner, item) pair.
type Anomaly struct {
	Learner string
	Item    string
	Kind    string // "negative" or "dropped"
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RecordRun stores a run row and its anomalies in one transaction.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord, anomalies []Anomaly) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, course, started_at, finished_at, accepted, missing, ignored, undeployed, learners, items, negative, dropped, success)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Course,
		rec.StartedAt.Format(time.RFC3339Nano),
		rec.FinishedAt.Format(time.RFC3339Nano),
		rec.Accepted,
		rec.Missing,
		rec.Ignored,
		rec.Undeployed,
		rec.Learners,
		rec.Items,
		rec.Negative,
		rec.Dropped,
		boolToInt(rec.Success),
	)
	if err != nil {
		return err
	}

	if len(anomalies) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO anomalies (run_id, learner, item, kind) VALUES (?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer stmt.Close()
		for _, a := range anomalies {
			if _, err = stmt.ExecContext(ctx, rec.ID, a.Learner, a.Item, a.Kind); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course, started_at, finished_at, accepted, missing, ignored, undeployed, learners, items, negative, dropped, success
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished string
		var success int
		if err := rows.Scan(&rec.ID, &rec.Course, &started, &finished,
			&rec.Accepted, &rec.Missing, &rec.Ignored, &rec.Undeployed,
			&rec.Learners, &rec.Items, &rec.Negative, &rec.Dropped, &success); err != nil {
			return nil, err
		}
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, err
		}
		if rec.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, err
		}
		rec.Success = success != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Anomalies returns one run's quarantined and dropped pairs.
func (s *Store) Anomalies(ctx context.Context, runID string) ([]Anomaly, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT learner, item, kind FROM anomalies WHERE run_id = ? ORDER BY kind, learner, item`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Anomaly
	for rows.Next() {
		var a Anomaly
		if err := rows.Scan(&a.Learner, &a.Item, &a.Kind); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// DefaultDBPath resolves the database file path in priority order:
// 1. ITEMGRID_DB environment variable
// 2. $XDG_DATA_HOME/itemgrid/itemgrid.db
// 3. ~/.local/share/itemgrid/itemgrid.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("ITEMGRID_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "itemgrid", "itemgrid.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
