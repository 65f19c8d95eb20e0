package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Normalizer converts audio to the 16 kHz mono PCM WAV recognition engines expect.
type Normalizer struct {
	FFmpeg  string
	TempDir string
	Runner  Runner
}

// NewNormalizer creates a Normalizer writing into tempDir.
func NewNormalizer(ffmpeg, tempDir string, runner Runner) *Normalizer {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Normalizer{FFmpeg: ffmpeg, TempDir: tempDir, Runner: runner}
}

// Normalize converts any audio file to 16kHz mono WAV and returns the new
// file's path. The caller removes it when done.
func (n *Normalizer) Normalize(ctx context.Context, inputPath string) (string, error) {
	if err := os.MkdirAll(n.TempDir, 0755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	outputPath := filepath.Join(n.TempDir, fmt.Sprintf("normalized_%s.wav", uuid.New().String()))

	_, err := n.Runner.Run(ctx, n.FFmpeg,
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-ar", "16000", // 16kHz sample rate
		"-ac", "1", // Mono
		"-c:a", "pcm_s16le", // 16-bit PCM
		"-y",
		outputPath,
	)
	if err != nil {
		os.Remove(outputPath)
		return "", err
	}
	return outputPath, nil
}
