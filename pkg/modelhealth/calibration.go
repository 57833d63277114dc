package modelhealth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/model-health/modelhealth-go/internal/calibration"
	"github.com/model-health/modelhealth-go/internal/wire"
	"github.com/model-health/modelhealth-go/pkg/domain"
)

const cancelTimeout = 10 * time.Second

// Calibration is one running calibration. Snapshots arrive on Events in order, one at
// a time; the channel is closed when the run resolves. Events must be drained, or the
// run cancelled, for it to make progress.
type Calibration struct {
	events chan domain.CalibrationStatus
	done   chan struct{}
	cancel context.CancelFunc
	// mu is held while a snapshot is being handed over, so Cancel can wait out an
	// in-progress send.
	mu  sync.Mutex
	err error
}

// Events returns the progress channel.
func (cal *Calibration) Events() <-chan domain.CalibrationStatus {
	return cal.events
}

// Wait blocks until the run resolves and returns its outcome: nil on success, a
// *domain.CalibrationError when the service reported a failure, or the context error
// after cancellation.
func (cal *Calibration) Wait() error {
	<-cal.done
	return cal.err
}

// Cancel stops the run and asks the service to abandon it. No snapshot is sent after
// Cancel returns.
func (cal *Calibration) Cancel() {
	cal.cancel()
	cal.mu.Lock()
	cal.mu.Unlock()
}

func (cal *Calibration) send(ctx context.Context, status domain.CalibrationStatus) bool {
	cal.mu.Lock()
	defer cal.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	select {
	case cal.events <- status:
		return true
	case <-ctx.Done():
		return false
	}
}

// StartCameraCalibration begins checkerboard calibration for a session. Rows and
// columns count interior corners and are passed through unchecked.
func (c *Client) StartCameraCalibration(ctx context.Context, sessionID string, params domain.CameraCalibrationParams) (*Calibration, error) {
	if sessionID == "" {
		return nil, &domain.ValidationError{Field: "session id", Reason: "is required"}
	}
	if !params.Placement.Valid() {
		return nil, &domain.ValidationError{Field: "placement", Reason: "unknown value " + string(params.Placement)}
	}
	body := wire.CameraCalibration{
		Rows:         params.Rows,
		Columns:      params.Columns,
		SquareSizeMM: params.SquareSizeMM,
		Placement:    string(params.Placement),
	}
	return c.startCalibration(ctx, "calibrate_camera", sessionID, "camera", body)
}

// StartNeutralCalibration begins neutral pose capture for a subject in a session.
func (c *Client) StartNeutralCalibration(ctx context.Context, sessionID string, params domain.NeutralCalibrationParams) (*Calibration, error) {
	if sessionID == "" {
		return nil, &domain.ValidationError{Field: "session id", Reason: "is required"}
	}
	return c.startCalibration(ctx, "calibrate_neutral", sessionID, "neutral", wire.NeutralCalibration{SubjectID: params.SubjectID})
}

// CalibrateCamera runs camera calibration to completion, passing each snapshot to
// sink. sink is never called concurrently with itself.
func (c *Client) CalibrateCamera(ctx context.Context, sessionID string, params domain.CameraCalibrationParams, sink func(domain.CalibrationStatus)) error {
	cal, err := c.StartCameraCalibration(ctx, sessionID, params)
	if err != nil {
		return err
	}
	return drain(ctx, cal, sink)
}

// CalibrateNeutral runs neutral pose calibration to completion, passing each snapshot
// to sink.
func (c *Client) CalibrateNeutral(ctx context.Context, sessionID string, params domain.NeutralCalibrationParams, sink func(domain.CalibrationStatus)) error {
	cal, err := c.StartNeutralCalibration(ctx, sessionID, params)
	if err != nil {
		return err
	}
	return drain(ctx, cal, sink)
}

func drain(ctx context.Context, cal *Calibration, sink func(domain.CalibrationStatus)) error {
	for status := range cal.Events() {
		if ctx.Err() != nil {
			cal.Cancel()
			continue
		}
		if sink != nil {
			sink(status)
		}
	}
	return cal.Wait()
}

func (c *Client) startCalibration(ctx context.Context, op, sessionID, target string, body any) (*Calibration, error) {
	runCtx, cancel := context.WithCancel(ctx)
	stream, err := c.transport.Stream(runCtx, op, http.MethodPost, "sessions/"+escape(sessionID)+"/calibration/"+target+"/", body)
	if err != nil {
		cancel()
		return nil, err
	}

	cal := &Calibration{
		events: make(chan domain.CalibrationStatus),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	// Closing the body unblocks a pending read once the run is cancelled.
	stop := context.AfterFunc(runCtx, func() { _ = stream.Close() })

	go func() {
		defer close(cal.done)
		defer close(cal.events)
		defer cancel()
		defer stop()
		defer stream.Close()

		processor := calibration.NewProcessor(calibration.WithLogger(c.logger))
		err := processor.Run(runCtx, stream, func(status domain.CalibrationStatus) bool {
			return cal.send(runCtx, status)
		})

		switch {
		case err != nil && c.transport.Closed():
			err = domain.ErrClosed
		case runCtx.Err() != nil && err != nil:
			err = runCtx.Err()
			c.abandon(op, sessionID)
		}
		cal.err = err
	}()
	return cal, nil
}

// abandon tells the service to stop a cancelled calibration. It is best effort and
// runs detached from the cancelled context.
func (c *Client) abandon(op, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	err := c.transport.Do(ctx, op+"_cancel", http.MethodDelete, "sessions/"+escape(sessionID)+"/calibration/", nil, nil, nil)
	if err != nil && !errors.Is(err, domain.ErrClosed) && !domain.IsNotFound(err) {
		c.logger.Printf("cancel calibration for session %s: %v", sessionID, err)
	}
}
