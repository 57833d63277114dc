package domain

import "fmt"

// CalibrationPhase orders the stages of a calibration run.
type CalibrationPhase int

const (
	PhaseRecording CalibrationPhase = iota
	PhaseUploading
	PhaseProcessing
	PhaseDone
)

func (p CalibrationPhase) String() string {
	switch p {
	case PhaseRecording:
		return "recording"
	case PhaseUploading:
		return "uploading"
	case PhaseProcessing:
		return "processing"
	case PhaseDone:
		return "done"
	}
	return fmt.Sprintf("CalibrationPhase(%d)", int(p))
}

// CalibrationStatus is one progress snapshot of a calibration run. Uploaded and Total
// are set in PhaseUploading; Percent is optional in PhaseProcessing.
type CalibrationStatus struct {
	Phase    CalibrationPhase
	Uploaded int
	Total    int
	Percent  *int
}

// Recording builds a PhaseRecording snapshot.
func Recording() CalibrationStatus { return CalibrationStatus{Phase: PhaseRecording} }

// Uploading builds a PhaseUploading snapshot.
func Uploading(uploaded, total int) CalibrationStatus {
	return CalibrationStatus{Phase: PhaseUploading, Uploaded: uploaded, Total: total}
}

// Processing builds a PhaseProcessing snapshot; percent may be nil.
func Processing(percent *int) CalibrationStatus {
	return CalibrationStatus{Phase: PhaseProcessing, Percent: percent}
}

// Done builds the terminal snapshot.
func Done() CalibrationStatus { return CalibrationStatus{Phase: PhaseDone} }

func (s CalibrationStatus) String() string {
	switch s.Phase {
	case PhaseUploading:
		return fmt.Sprintf("uploading(%d/%d)", s.Uploaded, s.Total)
	case PhaseProcessing:
		if s.Percent == nil {
			return "processing"
		}
		return fmt.Sprintf("processing(%d%%)", *s.Percent)
	}
	return s.Phase.String()
}

// BoardPlacement tells the service how the checkerboard was held.
type BoardPlacement string

const (
	PlacementPerpendicular BoardPlacement = "perpendicular"
	PlacementGround        BoardPlacement = "ground"
)

// Valid reports whether p is a known placement.
func (p BoardPlacement) Valid() bool {
	return p == PlacementPerpendicular || p == PlacementGround
}

// CameraCalibrationParams describes the checkerboard used for camera calibration.
// Rows and Columns count interior corners, not squares. SquareSizeMM must match the
// physical board; neither is checked here.
type CameraCalibrationParams struct {
	Rows         int
	Columns      int
	SquareSizeMM float64
	Placement    BoardPlacement
}

// NeutralCalibrationParams identifies the subject holding the neutral pose.
type NeutralCalibrationParams struct {
	SubjectID int
}
