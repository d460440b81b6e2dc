package history

import (
	"context"
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

// Store persists scan runs and per-file metrics in a single sqlite file.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
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

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
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
	if err := EnsureSchema(db); err != nil {
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

// RecordRun inserts one scan run and its per-file metrics in a single
// transaction. A missing ID or CreatedAt is filled in before writing.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	return s.withRetry("record run", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO scan_runs (
  id, created_at, git_commit, git_branch, files, functions, classes,
  total_smells, total_security, avg_complexity, max_complexity
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.CreatedAt.UTC().Format(time.RFC3339Nano),
			run.GitCommit,
			run.GitBranch,
			run.Files,
			run.Functions,
			run.Classes,
			run.TotalSmells,
			run.TotalSecurity,
			run.AvgComplexity,
			run.MaxComplexity,
		); err != nil {
			_ = tx.Rollback()
			return err
		}

		for _, m := range run.FileMetrics {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO file_metrics (run_id, path, functions, classes, smells, security, max_complexity)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
				run.ID, m.Path, m.Functions, m.Classes, m.Smells, m.Security, m.MaxComplexity,
			); err != nil {
				_ = tx.Rollback()
				return err
			}
		}

		return tx.Commit()
	})
}

// RecentRuns returns up to limit runs, newest first. File metrics are not
// attached; FileHistory serves per-path drill-down.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	var rows *sql.Rows
	err := s.withRetry("load recent runs", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, `
SELECT id, created_at, git_commit, git_branch, files, functions, classes,
       total_smells, total_security, avg_complexity, max_complexity
FROM scan_runs
ORDER BY created_at DESC, id ASC
LIMIT ?`, limit)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var (
			createdRaw string
			run        Run
		)
		if err := rows.Scan(
			&run.ID,
			&createdRaw,
			&run.GitCommit,
			&run.GitBranch,
			&run.Files,
			&run.Functions,
			&run.Classes,
			&run.TotalSmells,
			&run.TotalSecurity,
			&run.AvgComplexity,
			&run.MaxComplexity,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}

		created, err := time.Parse(time.RFC3339Nano, createdRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", createdRaw, err)
		}
		run.CreatedAt = created.UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return runs, nil
}

// FileHistory returns the recorded metrics for one path, newest first.
func (s *Store) FileHistory(ctx context.Context, path string, limit int) ([]FileHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	var rows *sql.Rows
	err := s.withRetry("load file history", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, `
SELECT m.run_id, r.created_at, m.functions, m.classes, m.smells, m.security, m.max_complexity
FROM file_metrics m
JOIN scan_runs r ON r.id = m.run_id
WHERE m.path = ?
ORDER BY r.created_at DESC, m.run_id ASC
LIMIT ?`, path, limit)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]FileHistoryEntry, 0, limit)
	for rows.Next() {
		var (
			createdRaw string
			entry      FileHistoryEntry
		)
		if err := rows.Scan(
			&entry.RunID,
			&createdRaw,
			&entry.Functions,
			&entry.Classes,
			&entry.Smells,
			&entry.Security,
			&entry.MaxComplexity,
		); err != nil {
			return nil, fmt.Errorf("scan file metric row: %w", err)
		}

		created, err := time.Parse(time.RFC3339Nano, createdRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", createdRaw, err)
		}
		entry.CreatedAt = created.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file metric rows: %w", err)
	}

	return entries, nil
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
