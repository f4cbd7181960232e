package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dealradar/dealradar/internal/domain"
)

// jobColumns lists the columns returned by job SELECT queries.
const jobColumns = `id, source, status, started_at, finished_at, items_scraped,
	items_failed, last_error, backoff_trail, created_at, updated_at`

// JobRepository handles database operations for scraper jobs.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job into the database.
func (r *JobRepository) Create(ctx context.Context, job *domain.ScraperJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}

	query := `
		INSERT INTO scraper_jobs (id, source, status, backoff_trail)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, job.ID, job.Source, job.Status, job.BackoffTrail).
		Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// Update updates an existing job.
func (r *JobRepository) Update(ctx context.Context, job *domain.ScraperJob) error {
	query := `
		UPDATE scraper_jobs
		SET status = $1, started_at = $2, finished_at = $3, items_scraped = $4,
		    items_failed = $5, last_error = $6, backoff_trail = $7,
		    updated_at = NOW()
		WHERE id = $8
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		job.Status,
		job.StartedAt,
		job.FinishedAt,
		job.ItemsScraped,
		job.ItemsFailed,
		job.LastError,
		job.BackoffTrail,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.ScraperJob, error) {
	var job domain.ScraperJob
	query := `SELECT ` + jobColumns + ` FROM scraper_jobs WHERE id = $1`

	err := r.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// ListRecent retrieves the most recent jobs, optionally filtered by source.
func (r *JobRepository) ListRecent(ctx context.Context, source string, limit int) ([]*domain.ScraperJob, error) {
	var jobs []*domain.ScraperJob
	var query string
	var args []any

	if source != "" {
		query = `
			SELECT ` + jobColumns + `
			FROM scraper_jobs
			WHERE source = $1
			ORDER BY created_at DESC
			LIMIT $2
		`
		args = []any{source, limit}
	} else {
		query = `
			SELECT ` + jobColumns + `
			FROM scraper_jobs
			ORDER BY created_at DESC
			LIMIT $1
		`
		args = []any{limit}
	}

	err := r.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	if jobs == nil {
		jobs = []*domain.ScraperJob{}
	}

	return jobs, nil
}
