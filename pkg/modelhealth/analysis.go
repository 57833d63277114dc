package modelhealth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/model-health/modelhealth-go/internal/wire"
	"github.com/model-health/modelhealth-go/pkg/domain"
)

// DefaultPollInterval is used by the wait helpers when interval is not positive.
const DefaultPollInterval = 5 * time.Second

// GetStatus reports where the service is in processing an uploaded activity. Analyses
// should only be started once it is ready.
func (c *Client) GetStatus(ctx context.Context, activity domain.Activity) (domain.TrialStatus, error) {
	if activity.ID == "" {
		return domain.TrialStatus{}, &domain.ValidationError{Field: "activity id", Reason: "is required"}
	}
	var item wire.TrialStatus
	if err := c.get(ctx, "get_status", "trials/"+escape(activity.ID)+"/status/", nil, &item); err != nil {
		return domain.TrialStatus{}, err
	}
	status, err := item.ToDomain()
	if err != nil {
		return domain.TrialStatus{}, decodeErr("get_status", err)
	}
	return status, nil
}

// StartAnalysis submits an analysis of activity. The service requires the activity
// to be named, so an unnamed activity is rejected before any request is made.
func (c *Client) StartAnalysis(ctx context.Context, analysis domain.AnalysisType, activity domain.Activity, session domain.Session) (domain.AnalysisTask, error) {
	if !analysis.Valid() {
		return domain.AnalysisTask{}, &domain.ValidationError{Field: "analysis type", Reason: "unknown value " + string(analysis)}
	}
	if activity.ID == "" {
		return domain.AnalysisTask{}, &domain.ValidationError{Field: "activity id", Reason: "is required"}
	}
	if !activity.HasName() {
		return domain.AnalysisTask{}, &domain.ValidationError{Field: "activity name", Reason: "is required to start an analysis"}
	}
	if session.ID == "" {
		return domain.AnalysisTask{}, &domain.ValidationError{Field: "session id", Reason: "is required"}
	}

	body := wire.StartAnalysis{
		AnalysisType: string(analysis),
		TrialID:      activity.ID,
		SessionID:    session.ID,
		TrialName:    *activity.Name,
	}
	var item wire.AnalysisTask
	if err := c.transport.Do(ctx, "start_analysis", http.MethodPost, "analyses/", nil, body, &item); err != nil {
		return domain.AnalysisTask{}, err
	}
	task, err := item.ToDomain()
	if err != nil {
		return domain.AnalysisTask{}, decodeErr("start_analysis", err)
	}
	return task, nil
}

// GetAnalysisStatus polls an analysis task once.
func (c *Client) GetAnalysisStatus(ctx context.Context, task domain.AnalysisTask) (domain.AnalysisState, error) {
	if task.ID == "" {
		return "", &domain.ValidationError{Field: "task id", Reason: "is required"}
	}
	var item wire.AnalysisStatus
	if err := c.get(ctx, "get_analysis_status", "analyses/"+escape(task.ID)+"/status/", nil, &item); err != nil {
		return "", err
	}
	state, err := item.ToDomain()
	if err != nil {
		return "", decodeErr("get_analysis_status", err)
	}
	return state, nil
}

// WaitForTrial polls GetStatus every interval until the activity is ready or failed.
// A failed activity is returned with an error matching domain.ErrJobFailed.
func (c *Client) WaitForTrial(ctx context.Context, activity domain.Activity, interval time.Duration) (domain.TrialStatus, error) {
	return poll(ctx, interval, func(ctx context.Context) (domain.TrialStatus, bool, error) {
		status, err := c.GetStatus(ctx, activity)
		if err != nil {
			return status, false, err
		}
		if status.Phase == domain.TrialFailed {
			return status, true, fmt.Errorf("activity %s: %w", activity.ID, domain.ErrJobFailed)
		}
		return status, status.Terminal(), nil
	})
}

// WaitForAnalysis polls GetAnalysisStatus every interval until the task completes or
// fails. A failed task is returned with an error matching domain.ErrJobFailed.
func (c *Client) WaitForAnalysis(ctx context.Context, task domain.AnalysisTask, interval time.Duration) (domain.AnalysisState, error) {
	return poll(ctx, interval, func(ctx context.Context) (domain.AnalysisState, bool, error) {
		state, err := c.GetAnalysisStatus(ctx, task)
		if err != nil {
			return state, false, err
		}
		if state == domain.AnalysisFailed {
			return state, true, fmt.Errorf("analysis %s: %w", task.ID, domain.ErrJobFailed)
		}
		return state, state.Terminal(), nil
	})
}

func poll[T any](ctx context.Context, interval time.Duration, check func(context.Context) (T, bool, error)) (T, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		value, done, err := check(ctx)
		if err != nil || done {
			return value, err
		}
		select {
		case <-ctx.Done():
			return value, ctx.Err()
		case <-ticker.C:
		}
	}
}
