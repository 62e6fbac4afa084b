// Package history keeps a record of past runs in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
	"github.com/Aman-CERP/servicereport/internal/plugin"
)

// Run is one stored servicereport invocation.
type Run struct {
	ID      string    `json:"id"`
	Started time.Time `json:"started"`
	Version string    `json:"version"`
	Repair  bool      `json:"repair"`
	Passed  bool      `json:"passed"`
	Checks  []Check   `json:"checks,omitempty"`
}

// Check is one stored check outcome.
type Check struct {
	Plugin string `json:"plugin"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// Failed returns the checks that did not pass.
func (r Run) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if c.Status != "PASS" {
			out = append(out, c)
		}
	}
	return out
}

// FromResults summarizes validation results as a run.
func FromResults(results *plugin.Results, started time.Time, version string, repaired bool) Run {
	run := Run{Started: started, Version: version, Repair: repaired, Passed: results.Passed()}
	for _, g := range results.Groups() {
		for _, inst := range g.Instances {
			for _, rec := range inst.Records() {
				run.Checks = append(run.Checks, Check{
					Plugin: g.Name,
					Name:   rec.Name,
					Status: rec.Status.String(),
					Note:   string(rec.Note),
				})
			}
		}
	}
	return run
}

// Store persists runs.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, srerrors.New(srerrors.ErrCodeStoreOpen, "failed to create history directory", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, srerrors.New(srerrors.ErrCodeStoreOpen, "failed to open history database", err)
	}
	// Single writer.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, srerrors.New(srerrors.ErrCodeStoreOpen, "failed to set pragma", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started INTEGER NOT NULL,
		version TEXT NOT NULL,
		repair INTEGER NOT NULL,
		passed INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started DESC);

	CREATE TABLE IF NOT EXISTS checks (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		plugin TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, seq)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return srerrors.New(srerrors.ErrCodeStoreOpen, "create history schema", err)
	}
	return nil
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Save stores run and its checks, assigning an ID when run has none.
// It returns the run ID.
func (s *Store) Save(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", storeWrite("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started, version, repair, passed) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Started.UnixNano(), run.Version, run.Repair, run.Passed); err != nil {
		return "", storeWrite("insert run", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO checks (run_id, seq, plugin, name, status, note) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", storeWrite("prepare statement", err)
	}
	defer stmt.Close()

	for i, c := range run.Checks {
		if _, err := stmt.ExecContext(ctx, run.ID, i, c.Plugin, c.Name, c.Status, c.Note); err != nil {
			return "", storeWrite("insert check", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", storeWrite("commit transaction", err)
	}
	return run.ID, nil
}

// Prune deletes all but the newest keep runs and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs
		WHERE id NOT IN (
			SELECT id FROM runs
			ORDER BY started DESC
			LIMIT ?
		)`, keep)
	if err != nil {
		return 0, storeWrite("prune runs", err)
	}
	return res.RowsAffected()
}

// Recent returns up to limit runs, newest first, with their checks.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started, version, repair, passed
		FROM runs
		ORDER BY started DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, storeRead("query runs", err)
	}

	var runs []Run
	for rows.Next() {
		var r Run
		var started int64
		if err := rows.Scan(&r.ID, &started, &r.Version, &r.Repair, &r.Passed); err != nil {
			_ = rows.Close()
			return nil, storeRead("scan run", err)
		}
		r.Started = time.Unix(0, started)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, storeRead("read runs", err)
	}
	_ = rows.Close()

	for i := range runs {
		checks, err := s.checks(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Checks = checks
	}
	return runs, nil
}

func (s *Store) checks(ctx context.Context, runID string) ([]Check, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT plugin, name, status, note
		FROM checks
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, storeRead("query checks", err)
	}
	defer rows.Close()

	var out []Check
	for rows.Next() {
		var c Check
		if err := rows.Scan(&c.Plugin, &c.Name, &c.Status, &c.Note); err != nil {
			return nil, storeRead("scan check", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeRead("read checks", err)
	}
	return out, nil
}

func storeWrite(op string, err error) error {
	return srerrors.New(srerrors.ErrCodeStoreWrite, op, err)
}

func storeRead(op string, err error) error {
	return srerrors.New(srerrors.ErrCodeStoreRead, op, err)
}
