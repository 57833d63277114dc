// Package tracker polls the Model Health service for the jobs recorded in the ledger
// and publishes their state transitions.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/model-health/modelhealth-go/internal/ledger"
)

// ErrInvalidJob is returned when a registration is missing its kind or target.
var ErrInvalidJob = errors.New("invalid job registration")

// Service registers jobs and reads them back for the API layer.
type Service struct {
	store ledger.Store
	now   func() time.Time
}

// NewService constructs a Service.
func NewService(store ledger.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// TrackInput captures a registration from the API layer.
type TrackInput struct {
	TenantID string
	Kind     ledger.Kind
	TargetID string
}

// Track records a new job in the pending state, due for its first poll immediately.
func (s *Service) Track(ctx context.Context, input TrackInput) (*ledger.Job, error) {
	if !input.Kind.Valid() {
		return nil, errors.Join(ErrInvalidJob, errors.New("kind must be trial or analysis"))
	}
	target := strings.TrimSpace(input.TargetID)
	if target == "" {
		return nil, errors.Join(ErrInvalidJob, errors.New("target_id is required"))
	}

	now := s.now().UTC()
	job := ledger.Job{
		ID:         uuid.NewString(),
		TenantID:   input.TenantID,
		Kind:       input.Kind,
		TargetID:   target,
		State:      ledger.StatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
		NextPollAt: now,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Job fetches one tracked job. Ids that are not UUIDs were never issued and are
// reported as not found.
func (s *Service) Job(ctx context.Context, tenantID, jobID string) (*ledger.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, ledger.ErrJobNotFound
	}
	job, err := s.store.Get(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ledger.ErrJobNotFound
	}
	return job, nil
}

// Jobs lists a tenant's jobs with cursor pagination.
func (s *Service) Jobs(ctx context.Context, tenantID string, cursor *ledger.Cursor, limit int) ([]ledger.Job, *ledger.Cursor, error) {
	if cursor != nil {
		if _, err := uuid.Parse(cursor.ID); err != nil {
			return nil, nil, fmt.Errorf("%w: job id %q", ledger.ErrInvalidCursor, cursor.ID)
		}
	}
	return s.store.List(ctx, tenantID, cursor, limit)
}
