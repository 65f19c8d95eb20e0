package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/apperr"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

// Prober reads stream properties with ffprobe.
type Prober struct {
	FFprobe string
	Runner  Runner
}

// NewProber creates a Prober using the given ffprobe binary.
func NewProber(ffprobe string, runner Runner) *Prober {
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Prober{FFprobe: ffprobe, Runner: runner}
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Channels   int    `json:"channels"`
		SampleRate string `json:"sample_rate"`
		Duration   string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe describes the asset at path. A missing, unreadable or undecodable
// file yields an INPUT_ERROR.
func (p *Prober) Probe(ctx context.Context, path string) (types.AudioAsset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.AudioAsset{}, apperr.Input(path, err)
	}
	if info.IsDir() {
		return types.AudioAsset{}, apperr.Input(path, fmt.Errorf("is a directory"))
	}

	asset := types.AudioAsset{Path: path, SizeBytes: info.Size()}

	out, err := p.run(ctx, path)
	if err != nil {
		return asset, apperr.Input(path, err)
	}
	var audio bool
	for _, s := range out.Streams {
		if s.CodecType != "" && s.CodecType != "audio" {
			continue
		}
		audio = true
		asset.Channels = s.Channels
		asset.SampleRate, _ = strconv.Atoi(s.SampleRate)
		asset.Duration = parseSeconds(s.Duration)
		break
	}
	if !audio {
		return asset, apperr.Input(path, fmt.Errorf("no audio stream"))
	}
	if d := parseSeconds(out.Format.Duration); d > 0 {
		asset.Duration = d
	}
	return asset, nil
}

// Duration returns the playable length of path in seconds, or zero when it
// cannot be determined.
func (p *Prober) Duration(ctx context.Context, path string) float64 {
	out, err := p.run(ctx, path)
	if err != nil {
		return 0
	}
	if d := parseSeconds(out.Format.Duration); d > 0 {
		return d
	}
	for _, s := range out.Streams {
		if d := parseSeconds(s.Duration); d > 0 {
			return d
		}
	}
	return 0
}

func (p *Prober) run(ctx context.Context, path string) (*probeOutput, error) {
	raw, err := p.Runner.Run(ctx, p.FFprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, err
	}
	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}
	return &out, nil
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
