package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ironsheep/geochip/internal/logger"
)

// ErrNotFound is returned when a job id is unknown.
var ErrNotFound = errors.New("not found")

// Job statuses.
const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Image statuses.
const (
	ImageOK     = "ok"
	ImageFailed = "failed"
)

// Job is one run of the pipeline over a set of images.
type Job struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Images      int        `json:"images"`
	ResultsDir  string     `json:"results_dir"`
	ArchivePath string     `json:"archive_path,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`

	// Aggregated from image_results.
	Processed  int `json:"processed"`
	Failed     int `json:"failed"`
	Detections int `json:"detections"`
}

// ImageResult records the outcome of processing one image in a job.
type ImageResult struct {
	JobID               string        `json:"job_id"`
	ImageID             string        `json:"image_id"`
	Path                string        `json:"path"`
	Status              string        `json:"status"`
	Error               string        `json:"error,omitempty"`
	Chips               int           `json:"chips"`
	Batches             int           `json:"batches"`
	FailedBatches       int           `json:"failed_batches"`
	ChipsWithDetections int           `json:"chips_with_detections"`
	Detections          int           `json:"detections"`
	Duration            time.Duration `json:"duration"`
}

// Store persists job history.
type Store struct {
	db  *Database
	log *logger.Logger
	mu  sync.RWMutex
}

// Open opens the job store at path.
func Open(path string, log *logger.Logger) (*Store, error) {
	db, err := NewDatabase(path)
	if err != nil {
		return nil, err
	}
	log.Debug("Job store opened", "path", path)
	return &Store{db: db, log: log}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateJob inserts a running job.
func (s *Store) CreateJob(ctx context.Context, id string, images int, resultsDir string, started time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, images, results_dir, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, JobRunning, images, resultsDir, started.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// FinishJob sets the final status of a job.
func (s *Store) FinishJob(ctx context.Context, id, status, archivePath, errMsg string, finished time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, archive_path = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, archivePath, errMsg, finished.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecordImage stores the outcome for one image, replacing any earlier
// record for the same image in the job.
func (s *Store) RecordImage(ctx context.Context, r ImageResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO image_results (job_id, image_id, path, status, error, chips, batches,
			failed_batches, chips_with_detections, detections, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, image_id) DO UPDATE SET
			path = excluded.path,
			status = excluded.status,
			error = excluded.error,
			chips = excluded.chips,
			batches = excluded.batches,
			failed_batches = excluded.failed_batches,
			chips_with_detections = excluded.chips_with_detections,
			detections = excluded.detections,
			duration_ms = excluded.duration_ms
	`
	_, err := s.db.db.ExecContext(ctx, query,
		r.JobID, r.ImageID, r.Path, r.Status, r.Error, r.Chips, r.Batches,
		r.FailedBatches, r.ChipsWithDetections, r.Detections, r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record image %s: %w", r.ImageID, err)
	}
	return nil
}

const jobColumns = `
	SELECT j.id, j.status, j.images, j.results_dir, j.archive_path, j.error, j.started_at, j.finished_at,
		COUNT(r.image_id),
		COALESCE(SUM(CASE WHEN r.status = 'failed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(r.detections), 0)
	FROM jobs j
	LEFT JOIN image_results r ON r.job_id = j.id
`

// ListJobs returns the most recent jobs first. A non-positive limit means
// 100.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.db.QueryContext(ctx,
		jobColumns+` GROUP BY j.id ORDER BY j.started_at DESC, j.id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetJob returns one job.
func (s *Store) GetJob(ctx context.Context, id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.db.QueryRowContext(ctx, jobColumns+` WHERE j.id = ? GROUP BY j.id`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return job, err
}

// ImageResults returns the per-image records of a job in insertion order.
func (s *Store) ImageResults(ctx context.Context, jobID string) ([]ImageResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.db.QueryContext(ctx, `
		SELECT job_id, image_id, path, status, error, chips, batches,
			failed_batches, chips_with_detections, detections, duration_ms
		FROM image_results
		WHERE job_id = ?
		ORDER BY rowid
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get image results: %w", err)
	}
	defer rows.Close()

	var results []ImageResult
	for rows.Next() {
		var r ImageResult
		var ms int64
		if err := rows.Scan(
			&r.JobID, &r.ImageID, &r.Path, &r.Status, &r.Error, &r.Chips, &r.Batches,
			&r.FailedBatches, &r.ChipsWithDetections, &r.Detections, &ms,
		); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		results = append(results, r)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (Job, error) {
	var job Job
	var finished sql.NullTime
	err := row.Scan(
		&job.ID, &job.Status, &job.Images, &job.ResultsDir, &job.ArchivePath, &job.Error,
		&job.StartedAt, &finished, &job.Processed, &job.Failed, &job.Detections,
	)
	if err != nil {
		return Job{}, err
	}
	if finished.Valid {
		t := finished.Time
		job.FinishedAt = &t
	}
	return job, nil
}
