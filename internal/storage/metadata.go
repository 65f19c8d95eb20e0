package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

// ErrNotFound is returned when a job id is unknown.
var ErrNotFound = errors.New("job not found")

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB opens the job database, creating the schema if needed.
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; workers share the handle
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS jobs (
		job_id TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		status TEXT NOT NULL,
		format TEXT NOT NULL DEFAULT '',
		output_path TEXT NOT NULL DEFAULT '',
		gdrive_url TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		chunks INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		word_count INTEGER NOT NULL DEFAULT 0,
		diarized INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MetadataDB{db: db}, nil
}

// CreateJob inserts a newly submitted job.
func (mdb *MetadataDB) CreateJob(rec types.JobRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := mdb.db.Exec(`
	INSERT INTO jobs (job_id, source_path, status, format, created_at)
	VALUES (?, ?, ?, ?, ?)`,
		rec.JobID, rec.SourcePath, rec.Status, rec.Format, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", rec.JobID, err)
	}
	return nil
}

// UpdateStatus records a status transition. errMsg is stored for failed jobs.
func (mdb *MetadataDB) UpdateStatus(jobID, status, errMsg string) error {
	query := `UPDATE jobs SET status = ?, error = ? WHERE job_id = ?`
	args := []any{status, errMsg, jobID}
	if status == types.StatusCompleted || status == types.StatusFailed {
		query = `UPDATE jobs SET status = ?, error = ?, completed_at = ? WHERE job_id = ?`
		args = []any{status, errMsg, time.Now().UTC(), jobID}
	}
	return mdb.exec(jobID, query, args...)
}

// CompleteJob stores the outputs of a finished job.
func (mdb *MetadataDB) CompleteJob(rec types.JobRecord) error {
	return mdb.exec(rec.JobID, `
	UPDATE jobs SET output_path = ?, language = ?, chunks = ?, duration = ?,
		word_count = ?, diarized = ?, format = ?
	WHERE job_id = ?`,
		rec.OutputPath, rec.Language, rec.Chunks, rec.Duration,
		rec.WordCount, rec.Diarized, rec.Format, rec.JobID)
}

// SetDriveURL stores the export link for a job.
func (mdb *MetadataDB) SetDriveURL(jobID, url string) error {
	return mdb.exec(jobID, `UPDATE jobs SET gdrive_url = ? WHERE job_id = ?`, url, jobID)
}

func (mdb *MetadataDB) exec(jobID, query string, args ...any) error {
	res, err := mdb.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update job %s: %w", jobID, ErrNotFound)
	}
	return nil
}

const selectJob = `
SELECT job_id, source_path, status, format, output_path, gdrive_url, language,
	chunks, duration, word_count, diarized, error, created_at, completed_at
FROM jobs`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*types.JobRecord, error) {
	var (
		rec       types.JobRecord
		completed sql.NullTime
	)
	err := row.Scan(&rec.JobID, &rec.SourcePath, &rec.Status, &rec.Format, &rec.OutputPath,
		&rec.GDriveURL, &rec.Language, &rec.Chunks, &rec.Duration, &rec.WordCount,
		&rec.Diarized, &rec.Error, &rec.CreatedAt, &completed)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		rec.CompletedAt = &t
	}
	return &rec, nil
}

// GetJob retrieves a job by id.
func (mdb *MetadataDB) GetJob(jobID string) (*types.JobRecord, error) {
	rec, err := scanJob(mdb.db.QueryRow(selectJob+` WHERE job_id = ?`, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return rec, nil
}

// ListJobs returns the most recent jobs first.
func (mdb *MetadataDB) ListJobs(limit int) ([]types.JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := mdb.db.Query(selectJob+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []types.JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *rec)
	}
	return jobs, rows.Err()
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}
