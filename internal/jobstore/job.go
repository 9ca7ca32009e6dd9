package jobstore

import (
	"context"
	"errors"
	"time"

	"github.com/local/printquote/internal/analysis"
)

// Status is the lifecycle state of a job. Transitions only move forward:
// pending -> running -> completed|failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// KindPDFAnalysis is the only job kind this service processes.
const KindPDFAnalysis = "pdf-analysis"

var (
	// ErrNotFound means no record exists for the id.
	ErrNotFound = errors.New("job not found")
	// ErrExpired means a record existed but its expiry had passed; the
	// accessor that observed this has already purged it.
	ErrExpired = errors.New("job expired")
)

// Input is the payload needed to resume deferred work.
type Input struct {
	URL          string `json:"url"`
	DeclaredSize int64  `json:"declared_size,omitempty"`
}

// Job is a unit of deferred analysis work.
type Job struct {
	ID          string           `json:"id"`
	Kind        string           `json:"kind"`
	Status      Status           `json:"status"`
	Progress    int              `json:"progress"`
	Input       Input            `json:"input"`
	Result      *analysis.Result `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// Expired reports whether the job is logically gone regardless of its
// stored status.
func (j *Job) Expired(now time.Time) bool {
	return !j.ExpiresAt.IsZero() && now.After(j.ExpiresAt)
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Store persists job records and hands out exclusive claims. Implementations
// must be safe for concurrent use from the request path and the worker, must
// treat expired records as absent on every read, and must keep progress
// non-decreasing for running jobs even if a stale write arrives.
type Store interface {
	// Put creates or updates a record.
	Put(ctx context.Context, job Job) error
	// Get returns a record, ErrNotFound, or ErrExpired (purging the record
	// in the latter case).
	Get(ctx context.Context, id string) (Job, error)
	// ClaimNext atomically takes the oldest pending, non-expired job and
	// flips it to running. Expired pending jobs found along the way are
	// deleted. ok is false when the queue is empty.
	ClaimNext(ctx context.Context) (Job, bool, error)
	// Delete removes a record; deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error
}
