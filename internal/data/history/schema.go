package history

import (
	"database/sql"
	"fmt"
)

// schemaSteps[i] upgrades a database from user_version i to i+1.
var schemaSteps = []string{
	`CREATE TABLE builds (
  id             TEXT    NOT NULL PRIMARY KEY,
  schema_version INTEGER NOT NULL,
  root           TEXT    NOT NULL,
  ts_utc         TEXT    NOT NULL,
  duration_ms    INTEGER NOT NULL,
  module_count   INTEGER NOT NULL,
  file_count     INTEGER NOT NULL,
  error_count    INTEGER NOT NULL DEFAULT 0,
  created_at_utc TEXT    NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
CREATE INDEX builds_by_root ON builds(root, ts_utc);`,

	`CREATE TABLE build_errors (
  build_id TEXT    NOT NULL REFERENCES builds(id) ON DELETE CASCADE,
  seq      INTEGER NOT NULL,
  file     TEXT    NOT NULL,
  code     TEXT    NOT NULL,
  message  TEXT    NOT NULL,
  PRIMARY KEY (build_id, seq)
);
CREATE INDEX build_errors_by_file ON build_errors(file);`,
}

// Migrate brings db up to SchemaVersion, tracking progress in SQLite's
// user_version pragma. Each step commits on its own.
func Migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(schemaSteps) {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, len(schemaSteps))
	}

	for ; version < len(schemaSteps); version++ {
		if err := applyStep(db, version+1, schemaSteps[version]); err != nil {
			return err
		}
	}
	return nil
}

func applyStep(db *sql.DB, target int, ddl string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("schema v%d: %w", target, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(ddl); err != nil {
		return fmt.Errorf("schema v%d: %w", target, err)
	}
	// PRAGMA does not take bound parameters.
	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, target)); err != nil {
		return fmt.Errorf("schema v%d: record version: %w", target, err)
	}
	return tx.Commit()
}
