package journal

import "github.com/gerunddev/ngmigrate/internal/log"

// schema is the SQL schema for the journal database.
const schema = `
-- Runs table
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    variant TEXT NOT NULL,
    project_id TEXT NOT NULL DEFAULT '',
    started_at DATETIME NOT NULL
);

-- Entries table
CREATE TABLE IF NOT EXISTS entries (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    key TEXT NOT NULL DEFAULT '',
    detail TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,
    FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE INDEX IF NOT EXISTS idx_entries_run ON entries(run_id);
`

// Migrate runs all database migrations to ensure the schema is up to date.
func (j *Journal) Migrate() error {
	if _, err := j.conn.Exec(schema); err != nil {
		return err
	}
	return j.runMigrations()
}

// runMigrations applies incremental schema changes for existing databases.
func (j *Journal) runMigrations() error {
	// Migration: Add backup column to entries table
	if exists, err := j.columnExists("entries", "backup"); err != nil {
		return err
	} else if !exists {
		if _, err := j.conn.Exec(`
			ALTER TABLE entries ADD COLUMN backup TEXT NOT NULL DEFAULT '';
		`); err != nil {
			return err
		}
	}

	return nil
}

// columnExists checks if a column exists in the specified table.
func (j *Journal) columnExists(table, column string) (bool, error) {
	rows, err := j.conn.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return false, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn("failed to close rows", "operation", "columnExists", "error", closeErr)
		}
	}()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
