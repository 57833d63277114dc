// Package ledger records the remote jobs the tracker is watching.
package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrJobNotFound is returned when a job cannot be located.
	ErrJobNotFound = errors.New("job not found")
	// ErrDuplicateJob is returned when the tenant already tracks the same remote job.
	ErrDuplicateJob = errors.New("job already tracked")
)

// Kind distinguishes the two remote job families.
type Kind string

const (
	KindTrial    Kind = "trial"
	KindAnalysis Kind = "analysis"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindTrial || k == KindAnalysis
}

// StatePending is the state of a job that has not been polled yet.
const StatePending = "pending"

// Job is one tracked remote job. TargetID is the activity id for trial jobs and the
// task id for analysis jobs.
type Job struct {
	ID         string
	TenantID   string
	Kind       Kind
	TargetID   string
	State      string
	Terminal   bool
	Attempts   int
	LastError  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	NextPollAt time.Time
}

// Cursor models the pagination token for job listings.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Store captures persistence operations.
type Store interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, tenantID, jobID string) (*Job, error)
	// List returns a page of at most limit jobs, newest first. A non-positive limit
	// returns no jobs.
	List(ctx context.Context, tenantID string, cursor *Cursor, limit int) ([]Job, *Cursor, error)
	// Claim returns up to limit non-terminal jobs due at now and pushes their next poll
	// out by lease so concurrent trackers do not poll them twice.
	Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Job, error)
	Update(ctx context.Context, job Job) error
}
