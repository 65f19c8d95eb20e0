package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/audio"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/config"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

// WhisperCLI runs OpenAI Whisper as `python -m whisper`.
type WhisperCLI struct {
	python   string
	model    string
	language string
	device   string
	tempDir  string
	runner   audio.Runner
	log      zerolog.Logger
	mu       sync.Mutex // one model instance per process
}

// NewWhisperCLI creates a recognizer that shells out to Python Whisper.
func NewWhisperCLI(cfg config.Recognition, tempDir string, runner audio.Runner, log zerolog.Logger) *WhisperCLI {
	if runner == nil {
		runner = audio.ExecRunner{}
	}
	python := cfg.PythonBin
	if python == "" {
		python = "python"
	}
	model := cfg.Model
	if model == "" {
		model = "base"
	}
	return &WhisperCLI{
		python:   python,
		model:    model,
		language: cfg.Language,
		device:   cfg.Device,
		tempDir:  tempDir,
		runner:   runner,
		log:      log,
	}
}

// Name returns the engine name.
func (w *WhisperCLI) Name() string { return EngineWhisperCLI }

// Transcribe processes an audio file and returns the transcript.
func (w *WhisperCLI) Transcribe(ctx context.Context, req Request) (*types.Recognition, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	absAudioPath, err := filepath.Abs(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve path: %v", ErrFailed, err)
	}

	outDir := filepath.Join(w.tempDir, "whisper_"+uuid.New().String())
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	model := w.model
	if req.Model != "" {
		model = req.Model
	}
	args := []string{"-m", "whisper",
		absAudioPath,
		"--model", model,
		"--output_dir", outDir,
		"--output_format", "json",
		"--fp16", "False", // CPU compatibility
	}
	if lang := firstNonEmpty(req.Language, w.language); lang != "" {
		args = append(args, "--language", lang)
	}
	if w.device != "" && w.device != "auto" {
		args = append(args, "--device", w.device)
	}

	w.log.Debug().Str("audio", absAudioPath).Str("model", model).Msg("running whisper")
	if _, err := w.runner.Run(ctx, w.python, args...); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailed, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrFailed, err)
	}

	baseName := strings.TrimSuffix(filepath.Base(absAudioPath), filepath.Ext(absAudioPath))
	jsonData, err := os.ReadFile(filepath.Join(outDir, baseName+".json"))
	if err != nil {
		return nil, fmt.Errorf("%w: read whisper output: %v", ErrFailed, err)
	}

	var out whisperOutput
	if err := json.Unmarshal(jsonData, &out); err != nil {
		return nil, fmt.Errorf("%w: parse whisper JSON: %v", ErrFailed, err)
	}
	rec := clean(out.recognition())

	w.log.Debug().
		Int("segments", len(rec.Segments)).
		Float64("duration", rec.Duration).
		Msg("whisper finished")
	return rec, nil
}

// whisperOutput matches the JSON written by Whisper and served by
// faster-whisper sidecars.
type whisperOutput struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func (o *whisperOutput) recognition() *types.Recognition {
	segments := make([]types.RecognizedSegment, len(o.Segments))
	for i, seg := range o.Segments {
		segments[i] = types.RecognizedSegment{Start: seg.Start, End: seg.End, Text: seg.Text}
	}
	return &types.Recognition{
		Text:     o.Text,
		Language: o.Language,
		Duration: o.Duration,
		Segments: segments,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
