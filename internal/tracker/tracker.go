package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/model-health/modelhealth-go/internal/events"
	"github.com/model-health/modelhealth-go/internal/ledger"
	"github.com/model-health/modelhealth-go/internal/observability"
	"github.com/model-health/modelhealth-go/pkg/domain"
)

const (
	// StateMissing marks a job whose target no longer exists on the service.
	StateMissing = "missing"
	// StateAbandoned marks a job the tracker stopped polling after MaxAttempts failed polls.
	StateAbandoned = "abandoned"

	// MaxAttempts is the number of consecutive failed polls before a job is abandoned.
	MaxAttempts = 8

	maxBackoffShift = 5
)

// StatusSource reads remote job state. *modelhealth.Client satisfies it.
type StatusSource interface {
	GetStatus(ctx context.Context, activity domain.Activity) (domain.TrialStatus, error)
	GetAnalysisStatus(ctx context.Context, task domain.AnalysisTask) (domain.AnalysisState, error)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger overrides the tracker logger.
func WithLogger(logger *log.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// Tracker claims due jobs from the ledger, polls their remote state, persists
// transitions and publishes them.
type Tracker struct {
	store            ledger.Store
	source           StatusSource
	publisher        events.Publisher
	pollInterval     time.Duration
	batchSize        int
	logger           *log.Logger
	now              func() time.Time
	shutdownComplete chan struct{}
}

// New constructs a Tracker.
func New(store ledger.Store, source StatusSource, publisher events.Publisher, pollInterval time.Duration, batchSize int, opts ...Option) *Tracker {
	t := &Tracker{
		store:            store,
		source:           source,
		publisher:        publisher,
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		logger:           log.New(log.Writer(), "[tracker] ", log.LstdFlags|log.Lshortfile),
		now:              time.Now,
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start runs the polling loop until ctx is cancelled. It should be called in a goroutine.
func (t *Tracker) Start(ctx context.Context) {
	ticker := time.NewTicker(t.pollInterval)
	defer func() {
		ticker.Stop()
		close(t.shutdownComplete)
	}()

	for {
		if err := t.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.logger.Printf("batch failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until Start has returned.
func (t *Tracker) Wait() {
	<-t.shutdownComplete
}

func (t *Tracker) processBatch(ctx context.Context) error {
	start := t.now()
	// The lease outlives a full batch so a slow poll is not picked up by a second tracker.
	jobs, err := t.store.Claim(ctx, start, 2*t.pollInterval, t.batchSize)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	// Transitions persisted before a failure are still published; unpolled jobs
	// become due again once their lease expires.
	var pollErr error
	transitions := make([]events.JobStateChanged, 0, len(jobs))
	for _, job := range jobs {
		evt, err := t.pollJob(ctx, job)
		if err != nil {
			pollErr = err
			break
		}
		if evt != nil {
			transitions = append(transitions, *evt)
		}
	}

	publishCtx := ctx
	if pollErr != nil {
		publishCtx = context.WithoutCancel(ctx)
	}
	if err := t.publisher.Publish(publishCtx, transitions...); err != nil {
		return errors.Join(pollErr, fmt.Errorf("publish %d transitions: %w", len(transitions), err))
	}
	if pollErr != nil {
		return pollErr
	}
	observability.RecordTrackerBatch(time.Since(start), t.now())
	return nil
}

// pollJob observes one job and persists the outcome. Only cancellation and store
// failures are returned; remote failures are recorded on the job.
func (t *Tracker) pollJob(ctx context.Context, job ledger.Job) (*events.JobStateChanged, error) {
	kind := string(job.Kind)
	state, terminal, err := t.observe(ctx, job)
	now := t.now().UTC()
	previous := job.State

	switch {
	case err == nil:
		observability.RecordTrackerPoll(kind, "ok")
		job.Attempts = 0
		job.LastError = nil
		job.State = state
		job.Terminal = terminal
		job.NextPollAt = now.Add(t.pollInterval)
	case ctx.Err() != nil, errors.Is(err, domain.ErrClosed):
		return nil, err
	case domain.IsNotFound(err):
		observability.RecordTrackerPoll(kind, "not_found")
		reason := err.Error()
		job.LastError = &reason
		job.State = StateMissing
		job.Terminal = true
	default:
		observability.RecordTrackerPoll(kind, "error")
		reason := err.Error()
		job.Attempts++
		job.LastError = &reason
		job.NextPollAt = now.Add(t.backoff(job.Attempts))
		if job.Attempts >= MaxAttempts {
			job.State = StateAbandoned
			job.Terminal = true
		}
		t.logger.Printf("poll %s %s (attempt %d): %v", kind, job.TargetID, job.Attempts, err)
	}
	job.UpdatedAt = now

	if err := t.store.Update(ctx, job); err != nil {
		return nil, err
	}
	if job.State == previous {
		return nil, nil
	}

	observability.RecordTrackerTransition(kind, job.State)
	evt := events.JobStateChanged{
		EventID:       uuid.NewString(),
		JobID:         job.ID,
		TenantID:      job.TenantID,
		Kind:          kind,
		TargetID:      job.TargetID,
		PreviousState: previous,
		State:         job.State,
		Terminal:      job.Terminal,
		OccurredAt:    now,
	}
	if job.LastError != nil {
		evt.Reason = *job.LastError
	}
	return &evt, nil
}

func (t *Tracker) observe(ctx context.Context, job ledger.Job) (string, bool, error) {
	switch job.Kind {
	case ledger.KindTrial:
		status, err := t.source.GetStatus(ctx, domain.Activity{ID: job.TargetID})
		if err != nil {
			return "", false, err
		}
		return string(status.Phase), status.Terminal(), nil
	case ledger.KindAnalysis:
		state, err := t.source.GetAnalysisStatus(ctx, domain.AnalysisTask{ID: job.TargetID})
		if err != nil {
			return "", false, err
		}
		return string(state), state.Terminal(), nil
	}
	return "", false, &domain.InternalError{Op: "tracker.observe", Err: fmt.Errorf("unknown job kind %q", job.Kind)}
}

func (t *Tracker) backoff(attempts int) time.Duration {
	shift := attempts - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	if shift < 0 {
		shift = 0
	}
	return t.pollInterval << shift
}
