// Package job models video-generation jobs and their persisted store.
package job

import (
	"time"

	"github.com/google/uuid"

	"github.com/dreamtide/veod/errors"
)

// Status represents the current state of a job
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsValidStatus returns true if the status string is a valid Status
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once a job can no longer change state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Job is one user-initiated generation request. The local ID is assigned
// before the remote operation id is known; exactly one polling loop owns
// a job's mutations while it is in flight.
type Job struct {
	ID            string     `json:"id"`
	OperationID   string     `json:"operation_id,omitempty"`
	Prompt        string     `json:"prompt"`
	Category      string     `json:"category,omitempty"`
	Status        Status     `json:"status"`
	Progress      float64    `json:"progress"`
	ResultRef     string     `json:"result_ref,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	ThumbnailPath string     `json:"thumbnail_path,omitempty"`
	MimeType      string     `json:"mime_type,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// New creates a pending job for the given prompt.
func New(prompt, category string) (*Job, error) {
	if prompt == "" {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "prompt cannot be empty")
	}

	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Category:  category,
		Status:    StatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Start marks the job as running. No-op if already terminal.
func (j *Job) Start() {
	if j.Status.IsTerminal() {
		return
	}
	j.Status = StatusRunning
	j.UpdatedAt = time.Now()
}

// SetProgress applies a progress estimate. Progress never decreases and
// never reaches 1.0 outside the Completed transition.
func (j *Job) SetProgress(p float64) {
	if j.Status.IsTerminal() {
		return
	}
	if p >= 1.0 {
		p = 0.99
	}
	if p <= j.Progress {
		return
	}
	j.Progress = p
	j.UpdatedAt = time.Now()
}

// Complete marks the job completed with the artifact reference and
// forces progress to exactly 1.0. CompletedAt is set once.
func (j *Job) Complete(resultRef string) {
	if j.Status.IsTerminal() {
		return
	}
	now := time.Now()
	j.Status = StatusCompleted
	j.Progress = 1.0
	j.ResultRef = resultRef
	j.FailureReason = ""
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail marks the job failed with a human-readable reason.
func (j *Job) Fail(reason string) {
	if j.Status.IsTerminal() {
		return
	}
	now := time.Now()
	j.Status = StatusFailed
	j.FailureReason = reason
	j.ResultRef = ""
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Cancel marks the job cancelled. Surfaced as a dismissal, not a failure.
func (j *Job) Cancel() {
	if j.Status.IsTerminal() {
		return
	}
	now := time.Now()
	j.Status = StatusCancelled
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Clone returns a deep copy so readers never observe in-place mutation.
func (j *Job) Clone() *Job {
	c := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
