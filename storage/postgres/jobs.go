package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/poiesic/mailrecall/core"
	"github.com/poiesic/mailrecall/storage"
)

const jobColumns = `id, job_type, status, records_processed, error_message, started_at, completed_at`


// StartJob inserts a job directly in the running state.
func (s *Store) StartJob(ctx context.Context, jobType string) (*core.Job, error) {
	pool, err := s.acquire()
	if err != nil {
		return nil, err
	}
	job := &core.Job{
		JobType: jobType,
		Status:  core.JobStatusRunning,
	}
	err = pool.QueryRow(ctx,
		`INSERT INTO etl_jobs (job_type, status) VALUES ($1, $2) RETURNING id, started_at`,
		jobType, string(core.JobStatusRunning),
	).Scan(&job.ID, &job.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to start job: %w", err)
	}
	s.logger.Debug("job started", "job_id", job.ID, "job_type", jobType)
	return job, nil
}

// CompleteJob marks a running job completed.
func (s *Store) CompleteJob(ctx context.Context, id int64, recordsProcessed int) error {
	return s.finishJob(ctx, id, core.JobStatusCompleted,
		`UPDATE etl_jobs SET status = $1, records_processed = $2, completed_at = NOW()
		WHERE id = $3 AND status = $4`,
		string(core.JobStatusCompleted), recordsProcessed, id, string(core.JobStatusRunning))
}

// FailJob marks a running job failed with message.
func (s *Store) FailJob(ctx context.Context, id int64, message string) error {
	return s.finishJob(ctx, id, core.JobStatusFailed,
		`UPDATE etl_jobs SET status = $1, error_message = $2, completed_at = NOW()
		WHERE id = $3 AND status = $4`,
		string(core.JobStatusFailed), message, id, string(core.JobStatusRunning))
}

// finishJob applies a terminal transition. The status guard in the WHERE
// clause makes the transition happen at most once.
func (s *Store) finishJob(ctx context.Context, id int64, to core.JobStatus, sql string, args ...any) error {
	pool, err := s.acquire()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to mark job %d %s: %w", id, to, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %d: %w", id, core.ErrInvalidTransition)
	}
	return nil
}

// GetJob retrieves a job by id. Returns nil, nil when missing.
func (s *Store) GetJob(ctx context.Context, id int64) (*core.Job, error) {
	pool, err := s.acquire()
	if err != nil {
		return nil, err
	}
	job, err := scanJob(pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM etl_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %d: %w", id, err)
	}
	return job, nil
}

// GetRecentJobs returns the newest jobs first.
func (s *Store) GetRecentJobs(ctx context.Context, limit int) ([]*core.Job, error) {
	if limit <= 0 {
		limit = storage.DefaultRecentJobs
	}
	pool, err := s.acquire()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx,
		`SELECT `+jobColumns+` FROM etl_jobs ORDER BY started_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*core.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recent jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*core.Job, error) {
	var (
		job          core.Job
		status       string
		records      int32
		errorMessage *string
		completedAt  *time.Time
	)
	if err := row.Scan(&job.ID, &job.JobType, &status, &records, &errorMessage,
		&job.StartedAt, &completedAt); err != nil {
		return nil, err
	}
	job.Status = core.JobStatus(status)
	job.RecordsProcessed = int(records)
	job.ErrorMessage = errorMessage
	job.CompletedAt = completedAt
	return &job, nil
}
