package domain

import "fmt"

// FileFormat is the encoding implied by a result data type.
type FileFormat string

const (
	FormatJSON FileFormat = "json"
	FormatMOT  FileFormat = "mot"
	FormatTRC  FileFormat = "trc"
	FormatCSV  FileFormat = "csv"
	FormatOSIM FileFormat = "osim"
	FormatZIP  FileFormat = "zip"
	FormatPDF  FileFormat = "pdf"
)

// Result tags the service attaches to generated activity files.
const (
	TagVideoSync    = "video-sync"
	TagAnimation    = "visualizerTransforms-json"
	TagKinematics   = "ik_results"
	TagMarkers      = "marker_data"
	TagOpenSimModel = "opensim_model"
)

// ResultDataType selects an activity-level result file. The integer value is the
// discriminant code exchanged with the service.
type ResultDataType int

const (
	ResultAnimation     ResultDataType = 0
	ResultKinematicsMOT ResultDataType = 1
	ResultKinematicsCSV ResultDataType = 2
	ResultMarkersTRC    ResultDataType = 3
	ResultMarkersCSV    ResultDataType = 4
	ResultModel         ResultDataType = 5
)

// AllResultDataTypes lists every activity-level type in code order.
var AllResultDataTypes = []ResultDataType{
	ResultAnimation, ResultKinematicsMOT, ResultKinematicsCSV, ResultMarkersTRC, ResultMarkersCSV, ResultModel,
}

// ResultDataTypeFromCode rejects codes outside the table.
func ResultDataTypeFromCode(code int) (ResultDataType, error) {
	t := ResultDataType(code)
	if t < ResultAnimation || t > ResultModel {
		return 0, fmt.Errorf("unknown result data type code %d", code)
	}
	return t, nil
}

// Tag is the result tag holding the source file for t.
func (t ResultDataType) Tag() string {
	switch t {
	case ResultAnimation:
		return TagAnimation
	case ResultKinematicsMOT, ResultKinematicsCSV:
		return TagKinematics
	case ResultMarkersTRC, ResultMarkersCSV:
		return TagMarkers
	case ResultModel:
		return TagOpenSimModel
	}
	return ""
}

// Format is the encoding of the payload delivered for t.
func (t ResultDataType) Format() FileFormat {
	switch t {
	case ResultAnimation:
		return FormatJSON
	case ResultKinematicsMOT:
		return FormatMOT
	case ResultMarkersTRC:
		return FormatTRC
	case ResultKinematicsCSV, ResultMarkersCSV:
		return FormatCSV
	case ResultModel:
		return FormatOSIM
	}
	return ""
}

// SourceFormat is the format stored by the service; it differs from Format for the
// CSV variants, which are converted client-side.
func (t ResultDataType) SourceFormat() FileFormat {
	switch t {
	case ResultKinematicsCSV:
		return FormatMOT
	case ResultMarkersCSV:
		return FormatTRC
	}
	return t.Format()
}

func (t ResultDataType) String() string {
	switch t {
	case ResultAnimation:
		return "animation"
	case ResultKinematicsMOT:
		return "kinematics_mot"
	case ResultKinematicsCSV:
		return "kinematics_csv"
	case ResultMarkersTRC:
		return "markers_trc"
	case ResultMarkersCSV:
		return "markers_csv"
	case ResultModel:
		return "model"
	}
	return fmt.Sprintf("ResultDataType(%d)", int(t))
}

// AnalysisResultDataType selects an analysis-level result file.
type AnalysisResultDataType int

const (
	AnalysisResultMetrics AnalysisResultDataType = 0
	AnalysisResultArchive AnalysisResultDataType = 1
	AnalysisResultReport  AnalysisResultDataType = 2
)

// AnalysisResultDataTypeFromCode rejects codes outside the table.
func AnalysisResultDataTypeFromCode(code int) (AnalysisResultDataType, error) {
	t := AnalysisResultDataType(code)
	if t < AnalysisResultMetrics || t > AnalysisResultReport {
		return 0, fmt.Errorf("unknown analysis result data type code %d", code)
	}
	return t, nil
}

// Format is the encoding of the payload delivered for t.
func (t AnalysisResultDataType) Format() FileFormat {
	switch t {
	case AnalysisResultMetrics:
		return FormatJSON
	case AnalysisResultArchive:
		return FormatZIP
	case AnalysisResultReport:
		return FormatPDF
	}
	return ""
}

func (t AnalysisResultDataType) String() string {
	switch t {
	case AnalysisResultMetrics:
		return "metrics"
	case AnalysisResultArchive:
		return "data"
	case AnalysisResultReport:
		return "report"
	}
	return fmt.Sprintf("AnalysisResultDataType(%d)", int(t))
}

// ResultData is one downloaded activity result payload.
type ResultData struct {
	Type ResultDataType
	Data []byte
}

// AnalysisResultData is one downloaded analysis result payload.
type AnalysisResultData struct {
	Type AnalysisResultDataType
	Data []byte
}
