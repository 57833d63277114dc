package domain

import "fmt"

// AnalysisType names the movement analysis to run on an activity.
type AnalysisType string

const (
	AnalysisGait                AnalysisType = "gait"
	AnalysisSquats              AnalysisType = "squats"
	AnalysisSitToStand          AnalysisType = "sit_to_stand"
	AnalysisCounterMovementJump AnalysisType = "counter_movement_jump"
	AnalysisDropJump            AnalysisType = "drop_jump"
	AnalysisTreadmillRunning    AnalysisType = "treadmill_running"
	AnalysisRangeOfMotion       AnalysisType = "range_of_motion"
)

// Valid reports whether t is a known analysis type.
func (t AnalysisType) Valid() bool {
	switch t {
	case AnalysisGait, AnalysisSquats, AnalysisSitToStand, AnalysisCounterMovementJump,
		AnalysisDropJump, AnalysisTreadmillRunning, AnalysisRangeOfMotion:
		return true
	}
	return false
}

// AnalysisTask is the handle returned when an analysis is submitted.
type AnalysisTask struct {
	ID string
}

// AnalysisState is the lifecycle of an analysis task.
type AnalysisState string

const (
	AnalysisProcessing AnalysisState = "processing"
	AnalysisCompleted  AnalysisState = "completed"
	AnalysisFailed     AnalysisState = "failed"
)

// ParseAnalysisState rejects values outside the lifecycle.
func ParseAnalysisState(raw string) (AnalysisState, error) {
	switch state := AnalysisState(raw); state {
	case AnalysisProcessing, AnalysisCompleted, AnalysisFailed:
		return state, nil
	}
	return "", fmt.Errorf("unknown analysis status %q", raw)
}

// Terminal reports whether no further transitions follow.
func (s AnalysisState) Terminal() bool {
	return s == AnalysisCompleted || s == AnalysisFailed
}

// TrialPhase is the lifecycle of an uploaded activity on the service.
type TrialPhase string

const (
	TrialUploading  TrialPhase = "uploading"
	TrialProcessing TrialPhase = "processing"
	TrialReady      TrialPhase = "ready"
	TrialFailed     TrialPhase = "failed"
)

// ParseTrialPhase rejects values outside the lifecycle.
func ParseTrialPhase(raw string) (TrialPhase, error) {
	switch phase := TrialPhase(raw); phase {
	case TrialUploading, TrialProcessing, TrialReady, TrialFailed:
		return phase, nil
	}
	return "", fmt.Errorf("unknown trial status %q", raw)
}

// TrialStatus is a processing snapshot of an activity. Uploaded and Total are only
// meaningful in TrialUploading.
type TrialStatus struct {
	Phase    TrialPhase
	Uploaded int
	Total    int
}

// Terminal reports whether no further transitions follow.
func (s TrialStatus) Terminal() bool {
	return s.Phase == TrialReady || s.Phase == TrialFailed
}
