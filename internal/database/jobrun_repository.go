package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/storesync/internal/domain"
)

// jobRunColumns lists the columns returned by job run SELECT queries.
const jobRunColumns = `
	id, source_id, status, items_found, items_new, items_updated, items_removed,
	errors, started_at, completed_at
`

// JobRunRepository handles database operations for job runs.
type JobRunRepository struct {
	db *sqlx.DB
}

// NewJobRunRepository creates a new job run repository.
func NewJobRunRepository(db *sqlx.DB) *JobRunRepository {
	return &JobRunRepository{db: db}
}

// Create inserts a new job run for a source and returns it in running state.
func (r *JobRunRepository) Create(ctx context.Context, sourceID string) (*domain.JobRun, error) {
	run := &domain.JobRun{
		ID:       uuid.NewString(),
		SourceID: sourceID,
		Status:   domain.JobStatusRunning,
	}

	query := `
		INSERT INTO job_runs (id, source_id, status, started_at)
		VALUES ($1, $2, $3, now())
		RETURNING started_at
	`

	err := r.db.QueryRowContext(ctx, query, run.ID, run.SourceID, run.Status).Scan(&run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job run: %w", err)
	}

	return run, nil
}

// Update writes the run's current counts, errors and status.
func (r *JobRunRepository) Update(ctx context.Context, run *domain.JobRun) error {
	query := `
		UPDATE job_runs
		SET status = $1, items_found = $2, items_new = $3, items_updated = $4,
		    items_removed = $5, errors = $6, completed_at = $7
		WHERE id = $8
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		run.Status,
		run.ItemsFound,
		run.ItemsNew,
		run.ItemsUpdated,
		run.ItemsRemoved,
		run.Errors,
		run.CompletedAt,
		run.ID,
	)
	if execErr := requireRowsAffected(result, err, ErrJobRunNotFound); execErr != nil {
		return fmt.Errorf("failed to update job run: %w", execErr)
	}

	return nil
}

// Complete freezes the run in a terminal state with a completion timestamp.
func (r *JobRunRepository) Complete(ctx context.Context, run *domain.JobRun, status domain.JobStatus) error {
	now := time.Now()
	run.Status = status
	run.CompletedAt = &now
	return r.Update(ctx, run)
}

// GetLatest retrieves the most recent job run for a source.
func (r *JobRunRepository) GetLatest(ctx context.Context, sourceID string) (*domain.JobRun, error) {
	var run domain.JobRun
	query := `SELECT ` + jobRunColumns + ` FROM job_runs
		WHERE source_id = $1
		ORDER BY started_at DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &run, query, sourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: source %s", ErrJobRunNotFound, sourceID)
		}
		return nil, fmt.Errorf("failed to get latest job run: %w", err)
	}

	return &run, nil
}

// ListBySource retrieves a source's job history, newest first.
func (r *JobRunRepository) ListBySource(ctx context.Context, sourceID string, limit int) ([]*domain.JobRun, error) {
	var runs []*domain.JobRun
	query := `SELECT ` + jobRunColumns + ` FROM job_runs
		WHERE source_id = $1
		ORDER BY started_at DESC
		LIMIT $2`

	err := r.db.SelectContext(ctx, &runs, query, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list job runs: %w", err)
	}

	if runs == nil {
		runs = []*domain.JobRun{}
	}

	return runs, nil
}
