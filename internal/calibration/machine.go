// Package calibration decodes calibration progress streams and enforces their ordering.
package calibration

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/model-health/modelhealth-go/pkg/domain"
)

// Event is one line of the calibration progress stream.
type Event struct {
	Event    string `json:"event"`
	Status   string `json:"status"`
	Uploaded *int   `json:"uploaded"`
	Total    *int   `json:"total"`
	Percent  *int   `json:"percent"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

const (
	eventStatus   = "status"
	eventComplete = "complete"
	eventError    = "error"
)

var (
	// ErrMalformed marks a line that is not a usable event.
	ErrMalformed = errors.New("malformed calibration event")
	// ErrOutOfOrder marks a status that would move the run backwards.
	ErrOutOfOrder = errors.New("calibration event out of order")
)

// Step is the effect of feeding one line to a Machine. Status is set when a snapshot
// should be delivered; Final is set once the run has resolved, with Err holding the
// failure if any.
type Step struct {
	Status *domain.CalibrationStatus
	Final  bool
	Err    error
}

// Machine tracks one calibration run. Phases only move forward; snapshots arriving
// after PhaseDone are dropped. It is not safe for concurrent use.
type Machine struct {
	started  bool
	phase    domain.CalibrationPhase
	resolved bool
}

// NewMachine returns a Machine awaiting its first event.
func NewMachine() *Machine {
	return &Machine{}
}

// Phase returns the last delivered phase and whether any status was delivered.
func (m *Machine) Phase() (domain.CalibrationPhase, bool) {
	return m.phase, m.started
}

// Resolved reports whether a complete or error event has been seen.
func (m *Machine) Resolved() bool {
	return m.resolved
}

// Feed decodes and applies one raw line. A returned error is per-line and never fatal:
// the line is wrapped in ErrMalformed or ErrOutOfOrder and should be dropped.
func (m *Machine) Feed(line []byte) (Step, error) {
	var event Event
	if err := json.Unmarshal(line, &event); err != nil {
		return Step{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return m.Apply(event)
}

// Apply applies an already decoded event.
func (m *Machine) Apply(event Event) (Step, error) {
	if m.resolved {
		return Step{}, fmt.Errorf("%w: %q after resolution", ErrOutOfOrder, event.Event)
	}

	switch event.Event {
	case eventComplete:
		m.resolved = true
		return Step{Final: true}, nil
	case eventError:
		m.resolved = true
		return Step{Final: true, Err: &domain.CalibrationError{
			Kind:    domain.ParseCalibrationErrorKind(event.Code),
			Message: event.Message,
		}}, nil
	case eventStatus:
		status, err := snapshot(event)
		if err != nil {
			return Step{}, err
		}
		if m.started && (m.phase == domain.PhaseDone || status.Phase < m.phase) {
			return Step{}, fmt.Errorf("%w: %s after %s", ErrOutOfOrder, status.Phase, m.phase)
		}
		m.started = true
		m.phase = status.Phase
		return Step{Status: &status}, nil
	}
	return Step{}, fmt.Errorf("%w: unknown event %q", ErrMalformed, event.Event)
}

// Finish resolves a stream that ended. Reaching PhaseDone counts as completion; any
// other stream that closes without a complete or error event is reported as truncated.
func (m *Machine) Finish() error {
	if m.resolved {
		return nil
	}
	m.resolved = true
	if m.started && m.phase == domain.PhaseDone {
		return nil
	}
	return &domain.InternalError{Op: "calibration", Err: errors.New("progress stream ended before completion")}
}

func snapshot(event Event) (domain.CalibrationStatus, error) {
	switch event.Status {
	case "recording":
		return domain.Recording(), nil
	case "uploading":
		if event.Uploaded == nil || event.Total == nil {
			return domain.CalibrationStatus{}, fmt.Errorf("%w: uploading without counts", ErrMalformed)
		}
		if *event.Uploaded < 0 || *event.Total < 0 || *event.Uploaded > *event.Total {
			return domain.CalibrationStatus{}, fmt.Errorf("%w: uploading(%d,%d)", ErrMalformed, *event.Uploaded, *event.Total)
		}
		return domain.Uploading(*event.Uploaded, *event.Total), nil
	case "processing":
		if event.Percent != nil && (*event.Percent < 0 || *event.Percent > 100) {
			return domain.CalibrationStatus{}, fmt.Errorf("%w: processing(%d)", ErrMalformed, *event.Percent)
		}
		var percent *int
		if event.Percent != nil {
			p := *event.Percent
			percent = &p
		}
		return domain.Processing(percent), nil
	case "done":
		return domain.Done(), nil
	}
	return domain.CalibrationStatus{}, fmt.Errorf("%w: unknown status %q", ErrMalformed, event.Status)
}
