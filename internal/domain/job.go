package domain

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a scraper job.
type JobStatus string

const (
	// JobStatusPending means the job has been created but not started.
	JobStatusPending JobStatus = "pending"

	// JobStatusRunning means the job is actively scraping its source.
	JobStatusRunning JobStatus = "running"

	// JobStatusSucceeded means the run finished with at least one
	// successful fetch, possibly with item-level failures.
	JobStatusSucceeded JobStatus = "succeeded"

	// JobStatusFailed means the run could not establish any successful
	// fetch against the source.
	JobStatusFailed JobStatus = "failed"

	// JobStatusCancelled means the run was stopped mid-flight, typically
	// during shutdown.
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCancelled
}

// ValidateJobTransition checks whether a job status transition is allowed.
func ValidateJobTransition(from, to JobStatus) error {
	validTransitions := map[JobStatus][]JobStatus{
		JobStatusPending: {
			JobStatusRunning,   // Scheduler picked the job up
			JobStatusCancelled, // Shutdown before the run started
		},
		JobStatusRunning: {
			JobStatusSucceeded, // At least one successful fetch
			JobStatusFailed,    // No successful fetch in the run
			JobStatusCancelled, // Shutdown mid-run
		},
		// Terminal states
		JobStatusSucceeded: {},
		JobStatusFailed:    {},
		JobStatusCancelled: {},
	}

	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown job status: %s", from)
	}

	for _, next := range allowed {
		if next == to {
			return nil
		}
	}

	return fmt.Errorf("invalid job transition from %s to %s", from, to)
}

// ScraperJob identifies one scrape run against one source. Created by the
// scheduler when a run starts and mutated only by the scheduler. Exactly
// one job may be running per source at a time.
type ScraperJob struct {
	ID           string     `db:"id"            json:"id"`
	Source       string     `db:"source"        json:"source"`
	Status       JobStatus  `db:"status"        json:"status"`
	StartedAt    *time.Time `db:"started_at"    json:"started_at,omitempty"`
	FinishedAt   *time.Time `db:"finished_at"   json:"finished_at,omitempty"`
	ItemsScraped int        `db:"items_scraped" json:"items_scraped"`
	ItemsFailed  int        `db:"items_failed"  json:"items_failed"`
	LastError    *string    `db:"last_error"    json:"last_error,omitempty"`
	BackoffTrail StringList `db:"backoff_trail" json:"backoff_trail,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// Transition moves the job to a new status after validating the change.
func (j *ScraperJob) Transition(to JobStatus) error {
	if err := ValidateJobTransition(j.Status, to); err != nil {
		return err
	}
	j.Status = to
	return nil
}

// RecordBackoff appends one backoff delay to the job's backoff trail.
func (j *ScraperJob) RecordBackoff(delay time.Duration) {
	j.BackoffTrail = append(j.BackoffTrail, delay.String())
}

// SetError records the last error observed during the run.
func (j *ScraperJob) SetError(err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	j.LastError = &msg
}
