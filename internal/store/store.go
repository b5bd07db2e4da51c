package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"vlget/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS acquisitions (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	status          TEXT NOT NULL,
	output_path     TEXT NOT NULL DEFAULT '',
	quality         TEXT NOT NULL DEFAULT '',
	bytes_written   INTEGER NOT NULL DEFAULT 0,
	failed_segments TEXT NOT NULL DEFAULT '[]',
	error           TEXT NOT NULL DEFAULT '',
	started_at      TIMESTAMP NOT NULL,
	finished_at     TIMESTAMP
);
`

// PersistentStore records finished acquisitions in sqlite so the history
// survives restarts. IDs are KSUIDs, so primary-key order is insert order.
type PersistentStore struct {
	db *sql.DB
}

func New(dbPath string) (*PersistentStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Ping makes sure the file is actually accessible and the DSN is valid
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PersistentStore{db: db}, nil
}

// Record upserts the terminal state of one job.
func (s *PersistentStore) Record(ctx context.Context, job *domain.Job) error {
	var dbo acquisitionDBO
	if err := dbo.FromDomain(job); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO acquisitions (
			id, title, status, output_path, quality,
			bytes_written, failed_segments, error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			output_path = excluded.output_path,
			quality = excluded.quality,
			bytes_written = excluded.bytes_written,
			failed_segments = excluded.failed_segments,
			error = excluded.error,
			finished_at = excluded.finished_at`,
		dbo.ID, dbo.Title, dbo.Status, dbo.OutputPath, dbo.Quality,
		dbo.BytesWritten, dbo.FailedSegments, dbo.Error, dbo.StartedAt, dbo.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record acquisition %s: %w", job.ID, err)
	}
	return nil
}

// Get fetches one recorded acquisition, nil when unknown.
func (s *PersistentStore) Get(ctx context.Context, id string) (*Acquisition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, status, output_path, quality,
			bytes_written, failed_segments, error, started_at, finished_at
		FROM acquisitions WHERE id = ? LIMIT 1`, id)

	var dbo acquisitionDBO
	if err := dbo.scan(row); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return dbo.ToDomain()
}

// List returns recorded acquisitions, newest first.
func (s *PersistentStore) List(ctx context.Context, limit int) ([]*Acquisition, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, status, output_path, quality,
			bytes_written, failed_segments, error, started_at, finished_at
		FROM acquisitions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Acquisition
	for rows.Next() {
		var dbo acquisitionDBO
		if err := dbo.scan(rows); err != nil {
			return nil, err
		}
		acq, err := dbo.ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, acq)
	}
	return out, rows.Err()
}

func (s *PersistentStore) Close() error {
	return s.db.Close()
}
