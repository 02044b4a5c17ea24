// Package jobs provides a SQLite-backed status store for ingestion jobs.
// Uploads are acknowledged immediately and processed in the background;
// clients poll the job record to find out how their document fared. Records
// survive server restarts.
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Status is the lifecycle state of an ingestion job.
type Status string

const (
	// StatusQueued means the upload is accepted but not yet processing.
	StatusQueued Status = "queued"
	// StatusProcessing means the pipeline is extracting, chunking, or indexing.
	StatusProcessing Status = "processing"
	// StatusCompleted means the document is indexed (possibly with zero chunks).
	StatusCompleted Status = "completed"
	// StatusFailed means the pipeline hit an unrecoverable error.
	StatusFailed Status = "failed"
)

// ErrNotFound is returned by Get for unknown job IDs.
var ErrNotFound = errors.New("jobs: not found")

// Job is one ingestion job record.
type Job struct {
	// ID is the job identifier handed back to the uploader (UUID).
	ID string

	// Status is the current lifecycle state.
	Status Status

	// Message is a human-readable status detail.
	Message string

	// CourseID, ModuleID, SourceType, and Filename describe the upload.
	CourseID   string
	ModuleID   string
	SourceType string
	Filename   string

	// ChunksCount is how many chunks were indexed. Nil until completion.
	ChunksCount *int

	// CreatedAt and UpdatedAt track the record lifecycle.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists ingestion job records. Implementations must be safe for
// concurrent use.
type Store interface {
	// Create persists a new job in the queued state.
	Create(ctx context.Context, job Job) error
	// Update transitions a job's status. chunks may be nil when the count
	// is not yet known.
	Update(ctx context.Context, id string, status Status, message string, chunks *int) error
	// Get returns the job with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (Job, error)
	// Recent returns the most recent n jobs, newest first.
	Recent(ctx context.Context, n int) ([]Job, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the job database. It resolves
// to ~/.lektor/jobs.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("jobs: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".lektor")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("jobs: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "jobs.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("jobs: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS ingest_jobs (
    id           TEXT    PRIMARY KEY,
    status       TEXT    NOT NULL CHECK(status IN ('queued','processing','completed','failed')),
    message      TEXT    NOT NULL DEFAULT '',
    course_id    TEXT    NOT NULL,
    module_id    TEXT    NOT NULL,
    source_type  TEXT    NOT NULL,
    filename     TEXT    NOT NULL,
    chunks_count INTEGER,
    created_at   INTEGER NOT NULL,  -- Unix timestamp (seconds)
    updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ingest_jobs_created
    ON ingest_jobs (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("jobs: migrate: %w", err)
	}
	return nil
}

// Create persists a new job in the queued state.
func (s *SQLiteStore) Create(ctx context.Context, job Job) error {
	const q = `INSERT INTO ingest_jobs
		(id, status, message, course_id, module_id, source_type, filename, chunks_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().Unix()
	status := job.Status
	if status == "" {
		status = StatusQueued
	}
	_, err := s.db.ExecContext(ctx, q,
		job.ID, string(status), job.Message,
		job.CourseID, job.ModuleID, job.SourceType, job.Filename,
		nullableInt(job.ChunksCount), now, now,
	)
	if err != nil {
		return fmt.Errorf("jobs: create: %w", err)
	}
	return nil
}

// Update transitions a job's status and detail message.
func (s *SQLiteStore) Update(ctx context.Context, id string, status Status, message string, chunks *int) error {
	const q = `UPDATE ingest_jobs SET status = ?, message = ?, chunks_count = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, string(status), message, nullableInt(chunks), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("jobs: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("jobs: update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the job with the given ID, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Job, error) {
	const q = `SELECT id, status, message, course_id, module_id, source_type, filename, chunks_count, created_at, updated_at
		FROM ingest_jobs WHERE id = ?`
	row := s.db.QueryRowContext(ctx, q, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("jobs: get: %w", err)
	}
	return job, nil
}

// Recent returns the most recent n jobs, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Job, error) {
	const q = `SELECT id, status, message, course_id, module_id, source_type, filename, chunks_count, created_at, updated_at
		FROM ingest_jobs ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("jobs: recent: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("jobs: recent: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("jobs: recent: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows for scanJob.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (Job, error) {
	var (
		job     Job
		status  string
		chunks  sql.NullInt64
		created int64
		updated int64
	)
	err := row.Scan(&job.ID, &status, &job.Message,
		&job.CourseID, &job.ModuleID, &job.SourceType, &job.Filename,
		&chunks, &created, &updated)
	if err != nil {
		return Job{}, err
	}
	job.Status = Status(status)
	if chunks.Valid {
		n := int(chunks.Int64)
		job.ChunksCount = &n
	}
	job.CreatedAt = time.Unix(created, 0)
	job.UpdatedAt = time.Unix(updated, 0)
	return job, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
