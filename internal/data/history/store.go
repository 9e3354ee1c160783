package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Store persists build records in SQLite.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	return OpenWithTimeout(path, 2*time.Second)
}

func OpenWithTimeout(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts when a watch session and the
	// history command share the file.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveBuild inserts a build and its file errors in one transaction. A build
// saved twice under the same id replaces the earlier row.
func (s *Store) SaveBuild(build Build) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if build.ID == "" {
		build.ID = uuid.NewString()
	}
	if build.Timestamp.IsZero() {
		build.Timestamp = time.Now().UTC()
	}
	if build.SchemaVersion == 0 {
		build.SchemaVersion = SchemaVersion
	}
	if build.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported build schema version %d", build.SchemaVersion)
	}

	return s.withRetry("save build", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.Exec(`DELETE FROM builds WHERE id = ?`, build.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(`
INSERT INTO builds (id, schema_version, root, ts_utc, duration_ms, module_count, file_count, error_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			build.ID,
			build.SchemaVersion,
			build.Root,
			build.Timestamp.UTC().Format(time.RFC3339Nano),
			build.Duration.Milliseconds(),
			build.ModuleCount,
			build.FileCount,
			len(build.Errors),
		); err != nil {
			return err
		}
		for i, e := range build.Errors {
			if _, err := tx.Exec(
				`INSERT INTO build_errors (build_id, seq, file, code, message) VALUES (?, ?, ?, ?, ?)`,
				build.ID, i, e.File, e.Code, e.Message,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// LoadBuilds returns builds of root (every root when empty) at or after since,
// newest first. limit <= 0 means no limit.
func (s *Store) LoadBuilds(root string, since time.Time, limit int) ([]Build, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT id, schema_version, root, ts_utc, duration_ms, module_count, file_count
FROM builds
WHERE 1 = 1`
	args := make([]any, 0, 3)
	if root = strings.TrimSpace(root); root != "" {
		query += " AND root = ?"
		args = append(args, root)
	}
	if !since.IsZero() {
		query += " AND ts_utc >= ?"
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY ts_utc DESC, id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var builds []Build
	err := s.withRetry("load builds", func() error {
		var qErr error
		builds, qErr = s.queryBuilds(query, args)
		return qErr
	})
	if err != nil {
		return nil, err
	}

	for i := range builds {
		errs, err := s.loadErrors(builds[i].ID)
		if err != nil {
			return nil, err
		}
		builds[i].Errors = errs
	}
	return builds, nil
}

func (s *Store) queryBuilds(query string, args []any) ([]Build, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	builds := make([]Build, 0)
	for rows.Next() {
		var (
			tsRaw      string
			durationMS int64
			build      Build
		)
		if err := rows.Scan(
			&build.ID,
			&build.SchemaVersion,
			&build.Root,
			&tsRaw,
			&durationMS,
			&build.ModuleCount,
			&build.FileCount,
		); err != nil {
			return nil, fmt.Errorf("scan build row: %w", err)
		}

		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse build timestamp %q: %w", tsRaw, err)
		}
		build.Timestamp = ts.UTC()
		build.Duration = time.Duration(durationMS) * time.Millisecond
		builds = append(builds, build)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate build rows: %w", err)
	}
	return builds, nil
}

func (s *Store) loadErrors(buildID string) ([]FileError, error) {
	var out []FileError
	err := s.withRetry("load build errors", func() error {
		out = nil
		rows, err := s.db.Query(`SELECT file, code, message FROM build_errors WHERE build_id = ? ORDER BY seq`, buildID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e FileError
			if err := rows.Scan(&e.File, &e.Code, &e.Message); err != nil {
				return fmt.Errorf("scan build error row: %w", err)
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

// Prune deletes builds older than before and returns how many were removed.
func (s *Store) Prune(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	err := s.withRetry("prune builds", func() error {
		res, err := s.db.Exec(`DELETE FROM builds WHERE ts_utc < ?`, before.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
