package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ── Run history ────────────────────────────────────────────
// Every build run leaves one row in a local SQLite file, so operators can
// see when the collection was last rebuilt and how each run went. History
// is best-effort: a history failure never fails a build.

// Run is one recorded build run.
type Run struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	Status         string // "success" | "error"
	FilesFound     int
	FilesProcessed int
	FilesFailed    int
	FieldsDropped  int
	Error          string
}

// Store persists build runs in a single SQLite file.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history %s: %w", path, err)
		}
	}

	conn, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", path, err)
	}
	// SQLite only supports one writer; a single connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`CREATE TABLE IF NOT EXISTS build_runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		files_found INTEGER NOT NULL DEFAULT 0,
		files_processed INTEGER NOT NULL DEFAULT 0,
		files_failed INTEGER NOT NULL DEFAULT 0,
		fields_dropped INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	)`)
	return err
}

// Record inserts one finished run. The generated run ID is returned.
func (s *Store) Record(run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.conn.Exec(
		`INSERT INTO build_runs (id, started_at, finished_at, status,
		 files_found, files_processed, files_failed, fields_dropped, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Status,
		run.FilesFound, run.FilesProcessed, run.FilesFailed, run.FieldsDropped, run.Error,
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return run.ID, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.Query(
		`SELECT id, started_at, finished_at, status,
		 files_found, files_processed, files_failed, fields_dropped, error
		 FROM build_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status,
			&r.FilesFound, &r.FilesProcessed, &r.FilesFailed, &r.FieldsDropped, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.conn.Close()
}
