package tracker

import (
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/model-health/modelhealth-go/internal/events"
	"github.com/model-health/modelhealth-go/internal/ledger"
	"github.com/model-health/modelhealth-go/pkg/domain"
)

type stubSource struct {
	mu       sync.Mutex
	trials   map[string][]domain.TrialStatus
	analyses map[string][]domain.AnalysisState
	errs     map[string]error
}

func newStubSource() *stubSource {
	return &stubSource{
		trials:   make(map[string][]domain.TrialStatus),
		analyses: make(map[string][]domain.AnalysisState),
		errs:     make(map[string]error),
	}
}

func (s *stubSource) GetStatus(_ context.Context, activity domain.Activity) (domain.TrialStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[activity.ID]; err != nil {
		return domain.TrialStatus{}, err
	}
	queue := s.trials[activity.ID]
	status := queue[0]
	if len(queue) > 1 {
		s.trials[activity.ID] = queue[1:]
	}
	return status, nil
}

func (s *stubSource) GetAnalysisStatus(_ context.Context, task domain.AnalysisTask) (domain.AnalysisState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[task.ID]; err != nil {
		return "", err
	}
	queue := s.analyses[task.ID]
	state := queue[0]
	if len(queue) > 1 {
		s.analyses[task.ID] = queue[1:]
	}
	return state, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.JobStateChanged
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, evts ...events.JobStateChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evts...)
	return nil
}

func (p *capturePublisher) states() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, evt := range p.events {
		out = append(out, evt.PreviousState+"->"+evt.State)
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testWriter struct{ t *testing.T }

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}

type fixture struct {
	store     *ledger.Memory
	source    *stubSource
	publisher *capturePublisher
	clock     *fakeClock
	service   *Service
	tracker   *Tracker
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		store:     ledger.NewMemory(),
		source:    newStubSource(),
		publisher: &capturePublisher{},
		clock:     &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.service = NewService(f.store)
	f.service.now = f.clock.Now
	f.tracker = New(f.store, f.source, f.publisher, time.Second, 10,
		WithLogger(log.New(testWriter{t}, "", 0)),
		WithClock(f.clock.Now),
	)
	return f
}

func (f *fixture) track(t *testing.T, kind ledger.Kind, target string) *ledger.Job {
	job, err := f.service.Track(context.Background(), TrackInput{TenantID: "tenant-1", Kind: kind, TargetID: target})
	require.NoError(t, err)
	return job
}

func (f *fixture) tick(t *testing.T) {
	require.NoError(t, f.tracker.processBatch(context.Background()))
	f.clock.Advance(time.Second)
}

func TestTrackerFollowsTrialToReady(t *testing.T) {
	f := newFixture(t)
	f.source.trials["trial-1"] = []domain.TrialStatus{
		{Phase: domain.TrialUploading, Uploaded: 1, Total: 4},
		{Phase: domain.TrialUploading, Uploaded: 3, Total: 4},
		{Phase: domain.TrialProcessing},
		{Phase: domain.TrialReady},
	}
	job := f.track(t, ledger.KindTrial, "trial-1")

	for i := 0; i < 6; i++ {
		f.tick(t)
	}

	require.Equal(t, []string{"pending->uploading", "uploading->processing", "processing->ready"}, f.publisher.states())

	stored, err := f.service.Job(context.Background(), "tenant-1", job.ID)
	require.NoError(t, err)
	require.Equal(t, "ready", stored.State)
	require.True(t, stored.Terminal)

	last := f.publisher.events[len(f.publisher.events)-1]
	require.True(t, last.Terminal)
	require.Equal(t, job.ID, last.JobID)
	require.Equal(t, "tenant-1", last.TenantID)
	require.Equal(t, "trial", last.Kind)
}

func TestTrackerFollowsAnalysisToFailure(t *testing.T) {
	f := newFixture(t)
	f.source.analyses["task-1"] = []domain.AnalysisState{domain.AnalysisProcessing, domain.AnalysisFailed}
	f.track(t, ledger.KindAnalysis, "task-1")

	for i := 0; i < 4; i++ {
		f.tick(t)
	}
	require.Equal(t, []string{"pending->processing", "processing->failed"}, f.publisher.states())
}

func TestTrackerMarksMissingTargets(t *testing.T) {
	f := newFixture(t)
	f.source.errs["trial-gone"] = &domain.HTTPError{Op: "modelhealth.GetStatus", StatusCode: 404}
	job := f.track(t, ledger.KindTrial, "trial-gone")

	f.tick(t)
	f.tick(t)

	require.Equal(t, []string{"pending->" + StateMissing}, f.publisher.states())
	stored, err := f.service.Job(context.Background(), "tenant-1", job.ID)
	require.NoError(t, err)
	require.True(t, stored.Terminal)
	require.NotNil(t, stored.LastError)
}

func TestTrackerBacksOffAndAbandons(t *testing.T) {
	f := newFixture(t)
	f.source.errs["trial-1"] = &domain.TransportError{Op: "modelhealth.GetStatus", Err: errors.New("connection refused")}
	job := f.track(t, ledger.KindTrial, "trial-1")

	f.tick(t)
	stored, err := f.service.Job(context.Background(), "tenant-1", job.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.Attempts)
	require.Equal(t, ledger.StatePending, stored.State)
	require.Empty(t, f.publisher.states())

	require.Equal(t, f.clock.Now(), stored.NextPollAt)

	f.tick(t)
	stored, err = f.service.Job(context.Background(), "tenant-1", job.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.Attempts)
	require.Equal(t, f.clock.Now().Add(time.Second), stored.NextPollAt)

	for i := 0; i < 200 && len(f.publisher.states()) == 0; i++ {
		f.tick(t)
	}
	require.Equal(t, []string{"pending->" + StateAbandoned}, f.publisher.states())

	stored, err = f.service.Job(context.Background(), "tenant-1", job.ID)
	require.NoError(t, err)
	require.Equal(t, MaxAttempts, stored.Attempts)
	require.True(t, stored.Terminal)
}

func TestTrackerRecoversAfterTransientError(t *testing.T) {
	f := newFixture(t)
	f.source.errs["task-1"] = &domain.HTTPError{Op: "modelhealth.GetAnalysisStatus", StatusCode: 503}
	f.source.analyses["task-1"] = []domain.AnalysisState{domain.AnalysisCompleted}
	job := f.track(t, ledger.KindAnalysis, "task-1")

	f.tick(t)
	f.source.mu.Lock()
	delete(f.source.errs, "task-1")
	f.source.mu.Unlock()

	for i := 0; i < 4; i++ {
		f.tick(t)
	}
	require.Equal(t, []string{"pending->completed"}, f.publisher.states())

	stored, err := f.service.Job(context.Background(), "tenant-1", job.ID)
	require.NoError(t, err)
	require.Zero(t, stored.Attempts)
	require.Nil(t, stored.LastError)
}

func TestTrackerStopsBatchOnClosedClient(t *testing.T) {
	f := newFixture(t)
	f.source.errs["trial-1"] = domain.ErrClosed
	f.track(t, ledger.KindTrial, "trial-1")

	err := f.tracker.processBatch(context.Background())
	require.ErrorIs(t, err, domain.ErrClosed)
}

func TestTrackerReportsPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.source.trials["trial-1"] = []domain.TrialStatus{{Phase: domain.TrialProcessing}}
	f.publisher.err = errors.New("broker unavailable")
	f.track(t, ledger.KindTrial, "trial-1")

	err := f.tracker.processBatch(context.Background())
	require.ErrorContains(t, err, "broker unavailable")
}

func TestTrackerStartStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.source.trials["trial-1"] = []domain.TrialStatus{{Phase: domain.TrialReady}}
	f.track(t, ledger.KindTrial, "trial-1")

	ctx, cancel := context.WithCancel(context.Background())
	go f.tracker.Start(ctx)

	require.Eventually(t, func() bool { return len(f.publisher.states()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		f.tracker.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tracker did not stop")
	}
}

func TestServiceValidatesRegistrations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Track(ctx, TrackInput{TenantID: "tenant-1", Kind: "video", TargetID: "x"})
	require.ErrorIs(t, err, ErrInvalidJob)

	_, err = f.service.Track(ctx, TrackInput{TenantID: "tenant-1", Kind: ledger.KindTrial, TargetID: "  "})
	require.ErrorIs(t, err, ErrInvalidJob)

	f.track(t, ledger.KindTrial, "trial-1")
	_, err = f.service.Track(ctx, TrackInput{TenantID: "tenant-1", Kind: ledger.KindTrial, TargetID: "trial-1"})
	require.ErrorIs(t, err, ledger.ErrDuplicateJob)

	_, err = f.service.Job(ctx, "tenant-1", "missing")
	require.ErrorIs(t, err, ledger.ErrJobNotFound)
}

func TestServiceRejectsIdsItNeverIssued(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Job(ctx, "tenant-1", uuid.NewString())
	require.ErrorIs(t, err, ledger.ErrJobNotFound)

	_, _, err = f.service.Jobs(ctx, "tenant-1", &ledger.Cursor{CreatedAt: time.Now(), ID: "'; DROP TABLE tracked_jobs"}, 10)
	require.ErrorIs(t, err, ledger.ErrInvalidCursor)

	_, _, err = f.service.Jobs(ctx, "tenant-1", &ledger.Cursor{CreatedAt: time.Now(), ID: uuid.NewString()}, 10)
	require.NoError(t, err)
}
