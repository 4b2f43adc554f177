// Package history records batch runs and their per-term selections in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/anatolykoptev/go-imagepick"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	strategy   TEXT NOT NULL,
	terms      INTEGER NOT NULL,
	selected   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS selections (
	run_id          TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	term            TEXT NOT NULL,
	state           TEXT NOT NULL,
	chosen_filename TEXT NOT NULL,
	score           REAL NOT NULL,
	method          TEXT NOT NULL,
	source          TEXT NOT NULL,
	url             TEXT NOT NULL,
	alternates      TEXT NOT NULL,
	rejections      INTEGER NOT NULL,
	PRIMARY KEY (run_id, term)
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("history: run not found")

// Run summarises one stored batch.
type Run struct {
	ID        string
	CreatedAt time.Time
	Strategy  string
	Terms     int
	Selected  int
}

// Store is a SQLite-backed run history.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SaveManifest stores the run header and every selection in one transaction.
// Saving the same run again replaces it.
func (s *Store) SaveManifest(ctx context.Context, m *imagepick.Manifest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	results := m.Results()
	selected := 0
	for _, r := range results {
		if !r.Empty() {
			selected++
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM selections WHERE run_id = ?`, m.RunID); err != nil {
		return fmt.Errorf("replacing selections: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, m.RunID); err != nil {
		return fmt.Errorf("replacing run: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, strategy, terms, selected) VALUES (?, ?, ?, ?, ?)`,
		m.RunID, m.CreatedAt.UTC().Format(time.RFC3339Nano), m.Strategy, len(results), selected,
	); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO selections
		(run_id, term, state, chosen_filename, score, method, source, url, alternates, rejections)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing selection insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		alternates, err := json.Marshal(r.Alternates)
		if err != nil {
			return fmt.Errorf("encoding alternates for %q: %w", r.Term, err)
		}
		if _, err := stmt.ExecContext(ctx, m.RunID, r.Term, r.State, r.ChosenFilename, r.Score,
			r.Method, r.Source, r.URL, string(alternates), len(r.Rejections)); err != nil {
			return fmt.Errorf("inserting selection %q: %w", r.Term, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

// Runs returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT run_id, created_at, strategy, terms, selected FROM runs ORDER BY created_at DESC, run_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var created string
		if err := rows.Scan(&r.ID, &created, &r.Strategy, &r.Terms, &r.Selected); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parsing run time %q: %w", created, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Selections returns the stored results of one run ordered by term.
func (s *Store) Selections(ctx context.Context, runID string) ([]imagepick.SelectionResult, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE run_id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("looking up run: %w", err)
	}
	if exists == 0 {
		return nil, ErrRunNotFound
	}

	rows, err := s.db.QueryContext(ctx, `SELECT term, state, chosen_filename, score, method, source, url, alternates
		FROM selections WHERE run_id = ? ORDER BY term`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying selections: %w", err)
	}
	defer rows.Close()

	var out []imagepick.SelectionResult
	for rows.Next() {
		var r imagepick.SelectionResult
		var alternates string
		if err := rows.Scan(&r.Term, &r.State, &r.ChosenFilename, &r.Score, &r.Method, &r.Source, &r.URL, &alternates); err != nil {
			return nil, fmt.Errorf("scanning selection: %w", err)
		}
		if err := json.Unmarshal([]byte(alternates), &r.Alternates); err != nil {
			return nil, fmt.Errorf("decoding alternates for %q: %w", r.Term, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
