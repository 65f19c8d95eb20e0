// Package transcription adapts speech recognition engines to a single
// Recognizer interface.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/config"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

// Engine names accepted in configuration.
const (
	EngineWhisperCLI  = "whisper-cli"
	EngineWhisperHTTP = "whisper-http"
	EngineOpenAI      = "openai"
)

var (
	// ErrUnavailable means the engine could not be reached or started.
	// Requests failing with it may succeed on retry.
	ErrUnavailable = errors.New("recognition engine unavailable")
	// ErrFailed means the engine rejected or could not process the input.
	ErrFailed = errors.New("recognition failed")
)

// Request holds parameters for a recognition call.
type Request struct {
	// AudioPath is the normalized audio file to transcribe.
	AudioPath string
	// Language is an optional ISO language hint. Empty means auto-detect.
	Language string
	// Model overrides the configured model.
	Model string
}

// Recognizer turns an audio file into time-stamped text.
type Recognizer interface {
	Name() string
	Transcribe(ctx context.Context, req Request) (*types.Recognition, error)
}

// HealthChecker is implemented by engines that can report whether they
// are reachable before any audio is sent.
type HealthChecker interface {
	IsAvailable(ctx context.Context) bool
}

// Available reports whether r can be reached. Engines without a health
// check are assumed available.
func Available(ctx context.Context, r Recognizer) bool {
	hc, ok := r.(HealthChecker)
	return !ok || hc.IsAvailable(ctx)
}

// New creates the configured recognizer, wrapped in retries when
// cfg.MaxAttempts is above one.
func New(cfg config.Recognition, tempDir string, log zerolog.Logger) (Recognizer, error) {
	var r Recognizer
	switch cfg.Engine {
	case EngineWhisperCLI, "":
		r = NewWhisperCLI(cfg, tempDir, nil, log)
	case EngineWhisperHTTP:
		r = NewWhisperHTTP(cfg)
	case EngineOpenAI:
		r = NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown recognition engine %q", cfg.Engine)
	}
	if cfg.MaxAttempts > 1 {
		r = NewRetrying(r, cfg.MaxAttempts, log)
	}
	return r, nil
}

// clean trims segment text and repairs inverted timestamps.
func clean(rec *types.Recognition) *types.Recognition {
	rec.Text = strings.TrimSpace(rec.Text)
	for i := range rec.Segments {
		s := &rec.Segments[i]
		s.Text = strings.TrimSpace(s.Text)
		if s.End < s.Start {
			s.End = s.Start
		}
	}
	if rec.Duration == 0 && len(rec.Segments) > 0 {
		rec.Duration = rec.Segments[len(rec.Segments)-1].End
	}
	return rec
}
