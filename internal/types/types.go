package types

import "time"

// Job status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Fallback speaker labels
const (
	SpeakerUnknown = "Unknown"
	SpeakerGeneric = "Speaker"
)

// AudioAsset describes a source audio file. Duration is zero when it could
// not be determined.
type AudioAsset struct {
	Path       string
	SizeBytes  int64
	Channels   int
	SampleRate int
	Duration   float64
}

// Chunk is one contiguous slice of an AudioAsset with its own 0-based clock.
type Chunk struct {
	Index int
	Path  string
	// Duration is the probed length in seconds, zero when unknown.
	Duration float64
	// Owned is false when the chunk is the caller's original asset.
	Owned bool
}

// RecognizedSegment is one utterance returned by the recognition engine,
// in chunk-local seconds.
type RecognizedSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SpeakerTurn is one interval reported by the diarization engine.
type SpeakerTurn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// LabeledSegment is a RecognizedSegment with a resolved speaker label.
type LabeledSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"`
	// Parts holds the recognized segments merged into this one by the
	// pause heuristic. Empty for diarized segments.
	Parts []RecognizedSegment `json:"parts,omitempty"`
}

// Recognition is the output of a recognition engine for one audio file.
type Recognition struct {
	Text     string
	Language string
	Duration float64
	Segments []RecognizedSegment
}

// Gap marks a chunk whose transcript is missing from a merged result.
type Gap struct {
	Chunk  int     `json:"chunk"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Reason string  `json:"reason,omitempty"`
}

// Transcript is the structured record written by the json style.
type Transcript struct {
	Text     string           `json:"text"`
	Language string           `json:"language,omitempty"`
	Duration float64          `json:"duration,omitempty"`
	Diarized bool             `json:"diarized"`
	Segments []LabeledSegment `json:"segments"`
	Gaps     []Gap            `json:"gaps,omitempty"`
}

// JobRecord is the persisted view of a transcription job.
type JobRecord struct {
	JobID       string
	SourcePath  string
	Status      string
	Format      string
	OutputPath  string
	GDriveURL   string
	Language    string
	Chunks      int
	Duration    float64
	WordCount   int
	Diarized    bool
	Error       string
	CreatedAt   time.Time
	CompletedAt *time.Time
}
