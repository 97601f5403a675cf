// Package journal records what each wizard run did to the backend so a run
// can be inspected afterwards.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/gerunddev/ngmigrate/internal/log"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("record not found")

// Journal holds the database connection and provides methods for data access.
type Journal struct {
	conn *sql.DB
}

// New opens the journal database, creating it if needed.
// If the path is ":memory:", an in-memory database is created.
// Otherwise, the parent directory is created if it doesn't exist.
func New(path string) (*Journal, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// An in-memory database exists per connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			log.Warn("failed to close connection after ping failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	j := &Journal{conn: conn}

	if err := j.Migrate(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			log.Warn("failed to close connection after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.conn != nil {
		return j.conn.Close()
	}
	return nil
}

// =============================================================================
// Runs
// =============================================================================

// RecordRun registers a run. Recording the same run twice is a no-op.
func (j *Journal) RecordRun(runID, variant, projectID string) error {
	if runID == "" {
		return errors.New("run id is required")
	}
	_, err := j.conn.Exec(`
		INSERT OR IGNORE INTO runs (id, variant, project_id, started_at)
		VALUES (?, ?, ?, ?)`,
		runID, variant, projectID, time.Now(),
	)
	return err
}

// GetRun retrieves a run by ID.
func (j *Journal) GetRun(id string) (*Run, error) {
	r := &Run{}
	err := j.conn.QueryRow(`
		SELECT r.id, r.variant, r.project_id, r.started_at,
			(SELECT COUNT(*) FROM entries e WHERE e.run_id = r.id)
		FROM runs r WHERE r.id = ?`, id,
	).Scan(&r.ID, &r.Variant, &r.ProjectID, &r.StartedAt, &r.EntryCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (j *Journal) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.conn.Query(`
		SELECT r.id, r.variant, r.project_id, r.started_at,
			(SELECT COUNT(*) FROM entries e WHERE e.run_id = r.id)
		FROM runs r ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn("failed to close rows", "operation", "ListRuns", "error", closeErr)
		}
	}()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(&r.ID, &r.Variant, &r.ProjectID, &r.StartedAt, &r.EntryCount); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// Entries
// =============================================================================

// RecordEntry appends an entry to a run. The run must have been recorded.
func (j *Journal) RecordEntry(runID, kind, key, detail, backup string) error {
	_, err := j.conn.Exec(`
		INSERT INTO entries (id, run_id, kind, key, detail, backup, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), runID, kind, key, detail, backup, time.Now(),
	)
	return err
}

// Entries returns a run's entries in the order they were recorded.
func (j *Journal) Entries(runID string) ([]*Entry, error) {
	return j.queryEntries(`
		SELECT id, run_id, kind, key, detail, backup, created_at
		FROM entries WHERE run_id = ? ORDER BY rowid`, runID)
}

// Backups returns the entries of a run that left a backup on the backend,
// newest first.
func (j *Journal) Backups(runID string) ([]*Entry, error) {
	return j.queryEntries(`
		SELECT id, run_id, kind, key, detail, backup, created_at
		FROM entries WHERE run_id = ? AND backup != '' ORDER BY rowid DESC`, runID)
}

func (j *Journal) queryEntries(query string, args ...any) ([]*Entry, error) {
	rows, err := j.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn("failed to close rows", "operation", "Entries", "error", closeErr)
		}
	}()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.RunID, &e.Kind, &e.Key, &e.Detail, &e.Backup, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
