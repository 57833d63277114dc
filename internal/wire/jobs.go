package wire

import (
	"fmt"

	"github.com/model-health/modelhealth-go/pkg/domain"
)

// TrialStatus is the processing snapshot of a trial.
type TrialStatus struct {
	Status   *string `json:"status"`
	Uploaded int     `json:"uploaded"`
	Total    int     `json:"total"`
}

// ToDomain converts s; unknown status values are rejected.
func (s TrialStatus) ToDomain() (domain.TrialStatus, error) {
	if s.Status == nil {
		return domain.TrialStatus{}, missing("trial status", "status")
	}
	phase, err := domain.ParseTrialPhase(*s.Status)
	if err != nil {
		return domain.TrialStatus{}, err
	}
	status := domain.TrialStatus{Phase: phase}
	if phase == domain.TrialUploading {
		status.Uploaded = s.Uploaded
		status.Total = s.Total
	}
	return status, nil
}

// StartAnalysis is the request body that submits an analysis.
type StartAnalysis struct {
	AnalysisType string `json:"analysis_type"`
	TrialID      string `json:"trial_id"`
	SessionID    string `json:"session_id"`
	TrialName    string `json:"trial_name"`
}

// AnalysisTask is the submission response.
type AnalysisTask struct {
	TaskID *string `json:"task_id"`
}

// ToDomain converts t, failing when the task id is absent.
func (t AnalysisTask) ToDomain() (domain.AnalysisTask, error) {
	if t.TaskID == nil || *t.TaskID == "" {
		return domain.AnalysisTask{}, missing("analysis task", "task_id")
	}
	return domain.AnalysisTask{ID: *t.TaskID}, nil
}

// AnalysisStatus is the polling response for an analysis task.
type AnalysisStatus struct {
	Status *string `json:"status"`
}

// ToDomain converts s; unknown status values are rejected.
func (s AnalysisStatus) ToDomain() (domain.AnalysisState, error) {
	if s.Status == nil {
		return "", missing("analysis status", "status")
	}
	return domain.ParseAnalysisState(*s.Status)
}

// AnalysisResult is one entry of a trial's analysis result manifest.
type AnalysisResult struct {
	ResultType *int    `json:"result_type"`
	Media      *string `json:"media"`
}

// AnalysisDownload is a decoded manifest entry ready for download.
type AnalysisDownload struct {
	Type domain.AnalysisResultDataType
	URL  string
}

// AnalysisDownloads decodes a manifest. Entries without a media link, without a code
// or with an unknown code are returned in rejected rather than coerced.
func AnalysisDownloads(items []AnalysisResult) (accepted []AnalysisDownload, rejected []error) {
	for i, item := range items {
		if item.ResultType == nil {
			rejected = append(rejected, fmt.Errorf("analysis results[%d]: %w", i, missing("analysis result", "result_type")))
			continue
		}
		kind, err := domain.AnalysisResultDataTypeFromCode(*item.ResultType)
		if err != nil {
			rejected = append(rejected, fmt.Errorf("analysis results[%d]: %w", i, err))
			continue
		}
		if item.Media == nil || *item.Media == "" {
			rejected = append(rejected, fmt.Errorf("analysis results[%d]: %w", i, missing("analysis result", "media")))
			continue
		}
		accepted = append(accepted, AnalysisDownload{Type: kind, URL: *item.Media})
	}
	return accepted, rejected
}

// CameraCalibration is the request body for checkerboard calibration.
type CameraCalibration struct {
	Rows         int     `json:"rows"`
	Columns      int     `json:"columns"`
	SquareSizeMM float64 `json:"square_size_mm"`
	Placement    string  `json:"placement"`
}

// NeutralCalibration is the request body for neutral pose capture.
type NeutralCalibration struct {
	SubjectID int `json:"subject_id"`
}

// User is the account behind an API key.
type User struct {
	ID       *int   `json:"id"`
	Username string `json:"username"`
}
