package modelhealth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/model-health/modelhealth-go/pkg/domain"
)

func intPtr(v int) *int { return &v }

func streamLines(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			_, _ = io.WriteString(w, line+"\n")
			flusher.Flush()
		}
	}
}

var cameraParams = domain.CameraCalibrationParams{
	Rows:         4,
	Columns:      5,
	SquareSizeMM: 35,
	Placement:    domain.PlacementPerpendicular,
}

func TestCalibrateCameraDeliversScriptedSequence(t *testing.T) {
	svc := newFakeService(t)
	var sent map[string]any
	script := streamLines(
		`{"event":"status","status":"recording"}`,
		`{"event":"status","status":"uploading","uploaded":1,"total":4}`,
		`{"event":"status","status":"uploading","uploaded":4,"total":4}`,
		`{"event":"status","status":"processing","percent":50}`,
		`{"event":"status","status":"processing"}`,
		`{"event":"status","status":"done"}`,
		`{"event":"complete"}`,
	)
	svc.handle("POST /sessions/s-1/calibration/camera/", func(w http.ResponseWriter, r *http.Request) {
		sent = decodeBody(t, r)
		script(w, r)
	})

	var got []domain.CalibrationStatus
	var inSink atomic.Bool
	err := svc.client(t).CalibrateCamera(context.Background(), "s-1", cameraParams, func(s domain.CalibrationStatus) {
		require.True(t, inSink.CompareAndSwap(false, true), "sink called concurrently")
		got = append(got, s)
		inSink.Store(false)
	})
	require.NoError(t, err)
	require.Equal(t, []domain.CalibrationStatus{
		domain.Recording(),
		domain.Uploading(1, 4),
		domain.Uploading(4, 4),
		domain.Processing(intPtr(50)),
		domain.Processing(nil),
		domain.Done(),
	}, got)

	require.EqualValues(t, 4, sent["rows"])
	require.EqualValues(t, 5, sent["columns"])
	require.EqualValues(t, 35, sent["square_size_mm"])
	require.Equal(t, "perpendicular", sent["placement"])
}

func TestCalibrationResolvesWithoutDone(t *testing.T) {
	svc := newFakeService(t)
	svc.handle("POST /sessions/s-1/calibration/neutral/", streamLines(
		`{"event":"status","status":"recording"}`,
		`{"event":"status","status":"processing","percent":`,
		`{"event":"complete"}`,
	))

	var got []domain.CalibrationStatus
	err := svc.client(t).CalibrateNeutral(context.Background(), "s-1", domain.NeutralCalibrationParams{SubjectID: 3}, func(s domain.CalibrationStatus) {
		got = append(got, s)
	})
	require.NoError(t, err)
	require.Equal(t, []domain.CalibrationStatus{domain.Recording()}, got)
}

func TestCalibrationFailureIsTyped(t *testing.T) {
	svc := newFakeService(t)
	svc.handle("POST /sessions/s-1/calibration/neutral/", streamLines(
		`{"event":"status","status":"recording"}`,
		`{"event":"error","code":"pose_not_detected","message":"subject not visible in 2 cameras"}`,
	))

	err := svc.client(t).CalibrateNeutral(context.Background(), "s-1", domain.NeutralCalibrationParams{SubjectID: 3}, nil)
	require.ErrorIs(t, err, domain.ErrCalibration)
	require.False(t, errors.Is(err, domain.ErrTransport))

	var calErr *domain.CalibrationError
	require.True(t, errors.As(err, &calErr))
	require.Equal(t, domain.CalibrationPoseNotDetected, calErr.Kind)
	require.Equal(t, "subject not visible in 2 cameras", calErr.Message)
}

func TestCalibrationRejectedRequestReturnsHTTPError(t *testing.T) {
	svc := newFakeService(t)
	svc.respond("POST /sessions/s-1/calibration/camera/", http.StatusConflict, `{"detail":"calibration already running"}`)

	_, err := svc.client(t).StartCameraCalibration(context.Background(), "s-1", cameraParams)
	require.ErrorIs(t, err, domain.ErrClientStatus)
	require.Contains(t, err.Error(), "calibration already running")
}

func TestStartCameraCalibrationRejectsUnknownPlacement(t *testing.T) {
	svc := newFakeService(t)
	params := cameraParams
	params.Placement = "ceiling"

	_, err := svc.client(t).StartCameraCalibration(context.Background(), "s-1", params)
	require.ErrorIs(t, err, domain.ErrValidation)
	require.Zero(t, svc.calls.Load())
}

func TestCalibrationCancelStopsEventsAndSignalsService(t *testing.T) {
	svc := newFakeService(t)
	cancelled := make(chan struct{})
	svc.handle("POST /sessions/s-1/calibration/camera/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"event":"status","status":"recording"}`+"\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	svc.handle("DELETE /sessions/s-1/calibration/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
		close(cancelled)
	})

	cal, err := svc.client(t).StartCameraCalibration(context.Background(), "s-1", cameraParams)
	require.NoError(t, err)

	first := <-cal.Events()
	require.Equal(t, domain.Recording(), first)

	cal.Cancel()
	for extra := range cal.Events() {
		t.Fatalf("snapshot delivered after cancel: %v", extra)
	}
	require.ErrorIs(t, cal.Wait(), context.Canceled)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("service was not asked to cancel")
	}
}

func TestCalibrationCallerContextCancels(t *testing.T) {
	svc := newFakeService(t)
	svc.handle("POST /sessions/s-1/calibration/camera/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"event":"status","status":"recording"}`+"\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	svc.respond("DELETE /sessions/s-1/calibration/", http.StatusNoContent, ``)

	ctx, cancel := context.WithCancel(context.Background())
	var got int
	err := svc.client(t).CalibrateCamera(ctx, "s-1", cameraParams, func(domain.CalibrationStatus) {
		got++
		cancel()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, got)
}

func TestCalibrationTruncatedStreamIsInternalError(t *testing.T) {
	svc := newFakeService(t)
	svc.handle("POST /sessions/s-1/calibration/camera/", streamLines(
		`{"event":"status","status":"recording"}`,
		`{"event":"status","status":"done"}`,
	))

	err := svc.client(t).CalibrateCamera(context.Background(), "s-1", cameraParams, nil)
	require.ErrorIs(t, err, domain.ErrInternal)
}
