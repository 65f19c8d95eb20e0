package apperr

// Code is a machine-readable error code.
type Code string

const (
	// CodeInput means the source asset is missing or cannot be decoded.
	CodeInput Code = "INPUT_ERROR"
	// CodeSegmentation means the source could not be split into chunks.
	CodeSegmentation Code = "SEGMENTATION_FAILED"
	// CodeRecognition means the recognition engine failed on a chunk.
	CodeRecognition Code = "RECOGNITION_FAILED"
	// CodeRecognitionUnavailable means the recognition engine could not be reached.
	CodeRecognitionUnavailable Code = "RECOGNITION_UNAVAILABLE"
	// CodeDiarizationUnavailable is informational; the pipeline continues without turns.
	CodeDiarizationUnavailable Code = "DIARIZATION_UNAVAILABLE"
	// CodeFormat means a per-chunk intermediate was malformed.
	CodeFormat Code = "FORMAT_ERROR"
	// CodeMerge means per-chunk transcripts could not be combined.
	CodeMerge Code = "MERGE_FAILED"
	// CodeOutput means a transcript could not be written.
	CodeOutput Code = "OUTPUT_FAILED"
	// CodeExport means an export sink rejected the transcript.
	CodeExport Code = "EXPORT_FAILED"
)

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageInput        Stage = "input"
	StageSegmentation Stage = "segmentation"
	StageRecognition  Stage = "recognition"
	StageDiarization  Stage = "diarization"
	StageMerge        Stage = "merge"
	StageOutput       Stage = "output"
	StageExport       Stage = "export"
)

var retryableCodes = map[Code]bool{
	CodeRecognitionUnavailable: true,
	CodeExport:                 true,
}

// IsRetryableCode reports whether errors with this code may succeed on retry.
func IsRetryableCode(code Code) bool {
	return retryableCodes[code]
}
