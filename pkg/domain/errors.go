package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrClosed is returned by every call made through a released client.
	ErrClosed = errors.New("modelhealth: client closed")
	// ErrTransport matches connectivity and timeout failures.
	ErrTransport = errors.New("modelhealth: transport failure")
	// ErrClientStatus matches any 4xx response.
	ErrClientStatus = errors.New("modelhealth: client error status")
	// ErrServerStatus matches any 5xx response.
	ErrServerStatus = errors.New("modelhealth: server error status")
	// ErrUnexpectedStatus matches responses outside the 2xx/4xx/5xx ranges.
	ErrUnexpectedStatus = errors.New("modelhealth: unexpected status")
	// ErrUnauthorized matches rejected or expired credentials.
	ErrUnauthorized = errors.New("modelhealth: unauthorized")
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("modelhealth: not found")
	// ErrInternal matches boundary decoding failures.
	ErrInternal = errors.New("modelhealth: internal error")
	// ErrCalibration matches any calibration failure.
	ErrCalibration = errors.New("modelhealth: calibration failed")
	// ErrConversion matches any data conversion failure.
	ErrConversion = errors.New("modelhealth: data conversion failed")
	// ErrValidation matches client-side precondition failures.
	ErrValidation = errors.New("modelhealth: validation failed")
	// ErrJobFailed is returned by the wait helpers when a job reaches its failure state.
	ErrJobFailed = errors.New("modelhealth: job failed")
)

// TransportError wraps a failure to reach the remote service.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// HTTPError carries a non-2xx response from the remote service. Message holds the
// server-supplied error text when the response had one.
type HTTPError struct {
	Op         string
	StatusCode int
	Message    string
	RequestID  string
}

func (e *HTTPError) Error() string {
	text := e.Message
	if text == "" {
		text = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, text)
}

// Is classifies the status code into the taxonomy sentinels.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrClientStatus:
		return e.StatusCode >= 400 && e.StatusCode < 500
	case ErrServerStatus:
		return e.StatusCode >= 500 && e.StatusCode < 600
	case ErrUnexpectedStatus:
		return e.StatusCode < 400 || e.StatusCode >= 600
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Retryable reports whether the failure came from the server side.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// CalibrationErrorKind enumerates the calibration failure modes.
type CalibrationErrorKind string

const (
	CalibrationNotEnoughCameras   CalibrationErrorKind = "not_enough_cameras"
	CalibrationPatternNotDetected CalibrationErrorKind = "pattern_not_detected"
	CalibrationPoseNotDetected    CalibrationErrorKind = "pose_not_detected"
	CalibrationFailed             CalibrationErrorKind = "calibration_failed"
)

// ParseCalibrationErrorKind maps a server code onto a kind; unknown codes become CalibrationFailed.
func ParseCalibrationErrorKind(code string) CalibrationErrorKind {
	switch kind := CalibrationErrorKind(code); kind {
	case CalibrationNotEnoughCameras, CalibrationPatternNotDetected, CalibrationPoseNotDetected:
		return kind
	}
	return CalibrationFailed
}

// CalibrationError reports a calibration that the service could not complete.
type CalibrationError struct {
	Kind    CalibrationErrorKind
	Message string
}

func (e *CalibrationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("calibration: %s", e.Kind)
	}
	return fmt.Sprintf("calibration: %s: %s", e.Kind, e.Message)
}

// Is reports whether target is ErrCalibration.
func (e *CalibrationError) Is(target error) bool { return target == ErrCalibration }

// ConversionErrorKind enumerates data conversion failures.
type ConversionErrorKind string

const (
	ConversionBadEncoding           ConversionErrorKind = "bad_encoding"
	ConversionUndeterminableColumns ConversionErrorKind = "undeterminable_columns"
	ConversionEmptyFile             ConversionErrorKind = "empty_file"
)

// ConversionError reports a result file that could not be converted.
type ConversionError struct {
	Kind   ConversionErrorKind
	Detail string
}

func (e *ConversionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("conversion: %s", e.Kind)
	}
	return fmt.Sprintf("conversion: %s: %s", e.Kind, e.Detail)
}

// Is reports whether target is ErrConversion.
func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// InternalError reports a response the client could not decode: a required field was
// missing, a payload was unparseable or a discriminant code was unknown.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: internal: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Is reports whether target is ErrInternal.
func (e *InternalError) Is(target error) bool { return target == ErrInternal }

// ValidationError reports an argument rejected before any request was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IsNotFound reports whether err is a 404 from the service. Deleting an activity twice
// surfaces this way and callers may treat it as already done.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
