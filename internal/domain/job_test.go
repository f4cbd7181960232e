package domain

import (
	"errors"
	"testing"
	"time"
)

func TestValidateJobTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    JobStatus
		to      JobStatus
		wantErr bool
	}{
		// Valid transitions from pending
		{"pending to running", JobStatusPending, JobStatusRunning, false},
		{"pending to cancelled", JobStatusPending, JobStatusCancelled, false},

		// Invalid transitions from pending
		{"pending to succeeded", JobStatusPending, JobStatusSucceeded, true},
		{"pending to failed", JobStatusPending, JobStatusFailed, true},

		// Valid transitions from running
		{"running to succeeded", JobStatusRunning, JobStatusSucceeded, false},
		{"running to failed", JobStatusRunning, JobStatusFailed, false},
		{"running to cancelled", JobStatusRunning, JobStatusCancelled, false},

		// Invalid transitions from running
		{"running to pending", JobStatusRunning, JobStatusPending, true},

		// Terminal states allow nothing
		{"succeeded to running", JobStatusSucceeded, JobStatusRunning, true},
		{"failed to pending", JobStatusFailed, JobStatusPending, true},
		{"cancelled to running", JobStatusCancelled, JobStatusRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJobTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateJobTransition(%s, %s) error = %v, wantErr %v",
					tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestValidateJobTransition_UnknownStatus(t *testing.T) {
	if err := ValidateJobTransition(JobStatus("bogus"), JobStatusRunning); err == nil {
		t.Error("expected error for unknown source status")
	}
}

func TestScraperJob_Transition(t *testing.T) {
	job := &ScraperJob{ID: "job-1", Source: "shopsmart", Status: JobStatusPending}

	if err := job.Transition(JobStatusRunning); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if job.Status != JobStatusRunning {
		t.Errorf("Status = %s, want running", job.Status)
	}

	if err := job.Transition(JobStatusPending); err == nil {
		t.Error("expected error transitioning running -> pending")
	}
	if job.Status != JobStatusRunning {
		t.Errorf("Status changed on invalid transition: %s", job.Status)
	}
}

func TestScraperJob_RecordBackoff(t *testing.T) {
	job := &ScraperJob{}
	job.RecordBackoff(2 * time.Second)
	job.RecordBackoff(4 * time.Second)

	if len(job.BackoffTrail) != 2 {
		t.Fatalf("BackoffTrail length = %d, want 2", len(job.BackoffTrail))
	}
	if job.BackoffTrail[0] != "2s" || job.BackoffTrail[1] != "4s" {
		t.Errorf("BackoffTrail = %v", job.BackoffTrail)
	}
}

func TestScraperJob_SetError(t *testing.T) {
	job := &ScraperJob{}
	job.SetError(nil)
	if job.LastError != nil {
		t.Error("SetError(nil) should not record an error")
	}

	job.SetError(errors.New("upstream throttled"))
	if job.LastError == nil || *job.LastError != "upstream throttled" {
		t.Errorf("LastError = %v", job.LastError)
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	terminal := []JobStatus{JobStatusSucceeded, JobStatusFailed, JobStatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []JobStatus{JobStatusPending, JobStatusRunning} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
