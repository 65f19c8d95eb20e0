// Package pipeline drives one audio asset through segmentation,
// recognition, speaker assignment, formatting and merging.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/apperr"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/audio"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/config"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/diarization"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/format"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/logger"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/merge"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/speaker"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/transcription"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

// Output name suffixes.
const (
	SpeakersSuffix = "_speakers"
	MergedSuffix   = "_merged"
)

// Prober describes a source asset.
type Prober interface {
	Probe(ctx context.Context, path string) (types.AudioAsset, error)
}

// Segmenter splits an asset into chunks.
type Segmenter interface {
	Segment(ctx context.Context, asset types.AudioAsset, maxSizeBytes int64, chunkMinutes float64) ([]types.Chunk, error)
}

// Normalizer converts a chunk to the recognition engine's input format.
type Normalizer interface {
	Normalize(ctx context.Context, path string) (string, error)
}

// Diarizer reports speaker turns for a chunk.
type Diarizer interface {
	Enabled() bool
	Diarize(ctx context.Context, path string) diarization.Result
}

// Deps are the collaborators a Pipeline drives.
type Deps struct {
	Prober     Prober
	Segmenter  Segmenter
	Normalizer Normalizer
	Recognizer transcription.Recognizer
	Diarizer   Diarizer
	Assigner   *speaker.Assigner
}

// Options are the per-pipeline settings.
type Options struct {
	MaxSizeBytes     int64
	ChunkMinutes     float64
	OffsetMode       string
	Style            format.Style
	OutputDir        string
	Language         string
	Normalize        bool
	KeepChunks       bool
	SkipFailedChunks bool
	ChunkWorkers     int
}

// Request describes one transcription run.
type Request struct {
	JobID     string
	AudioPath string
	// OutputDir defaults to the configured output directory, then to the
	// source file's directory.
	OutputDir string
	Style     format.Style
	Language  string
	// Diarize overrides whether diarization is attempted; nil follows configuration.
	Diarize *bool
}

// Result describes a finished run.
type Result struct {
	OutputPath string
	Style      format.Style
	Chunks     int
	Text       string
	Language   string
	Duration   float64
	Diarized   bool
	Gaps       []types.Gap
	Skipped    []*apperr.Error
}

// Pipeline transcribes audio assets. It holds no per-run state and may run
// several requests concurrently.
type Pipeline struct {
	deps Deps
	opts Options
	log  zerolog.Logger
}

// New creates a Pipeline.
func New(deps Deps, opts Options, log zerolog.Logger) *Pipeline {
	if opts.ChunkWorkers < 1 {
		opts.ChunkWorkers = 1
	}
	if opts.Style == "" {
		opts.Style = format.Plain
	}
	if opts.OffsetMode == "" {
		opts.OffsetMode = merge.OffsetMeasured
	}
	if deps.Assigner == nil {
		deps.Assigner = speaker.New(0, 0, "")
	}
	return &Pipeline{deps: deps, opts: opts, log: logger.WithComponent(log, "pipeline")}
}

// FromConfig wires the ffmpeg tools, recognition engine and diarization
// adapter selected in cfg.
func FromConfig(cfg *config.Config, log zerolog.Logger) (*Pipeline, error) {
	style, err := format.ParseStyle(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	recognizer, err := transcription.New(cfg.Recognition, cfg.Storage.WorkDir, logger.WithComponent(log, "recognition"))
	if err != nil {
		return nil, err
	}
	diarizer, err := diarization.New(cfg.Diarization, logger.WithComponent(log, "diarization"))
	if err != nil {
		return nil, err
	}

	runner := audio.ExecRunner{}
	prober := audio.NewProber(cfg.Segmentation.FFprobePath, runner)
	deps := Deps{
		Prober:     prober,
		Segmenter:  audio.NewSegmenter(cfg.Segmentation.FFmpegPath, cfg.Storage.WorkDir, runner, prober, logger.WithComponent(log, "segmenter")),
		Normalizer: audio.NewNormalizer(cfg.Segmentation.FFmpegPath, cfg.Storage.WorkDir, runner),
		Recognizer: recognizer,
		Diarizer:   diarizer,
		Assigner:   speaker.New(cfg.Speaker.PauseThreshold, cfg.Speaker.SentenceGap, cfg.Speaker.Heuristic),
	}
	opts := Options{
		MaxSizeBytes:     cfg.MaxSizeBytes(),
		ChunkMinutes:     cfg.Segmentation.ChunkMinutes,
		OffsetMode:       cfg.Merge.OffsetMode,
		Style:            style,
		OutputDir:        cfg.Output.Dir,
		Language:         cfg.Recognition.Language,
		Normalize:        cfg.Segmentation.Normalize,
		KeepChunks:       cfg.Segmentation.KeepChunks,
		SkipFailedChunks: cfg.Pipeline.SkipFailedChunks,
		ChunkWorkers:     cfg.Workers.Chunks,
	}
	return New(deps, opts, log), nil
}

// chunkOutput is one chunk's rendered transcript.
type chunkOutput struct {
	transcript *types.Transcript
	data       []byte
	err        error
}

// Run transcribes req.AudioPath and writes the final transcript. On failure
// the returned error names the stage and, where relevant, the chunk; chunk
// files already written are left in place.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	log := p.log.With().Str(logger.FieldJobID, req.JobID).Str("source", req.AudioPath).Logger()

	style := req.Style
	if style == "" {
		style = p.opts.Style
	}
	language := req.Language
	if language == "" {
		language = p.opts.Language
	}
	outputDir := firstNonEmpty(req.OutputDir, p.opts.OutputDir, filepath.Dir(req.AudioPath))
	base := audio.BaseName(req.AudioPath)

	asset, err := p.deps.Prober.Probe(ctx, req.AudioPath)
	if err != nil {
		return nil, err
	}
	if !transcription.Available(ctx, p.deps.Recognizer) {
		return nil, apperr.New(apperr.CodeRecognitionUnavailable, apperr.StageRecognition,
			fmt.Sprintf("engine %s is not reachable", p.deps.Recognizer.Name()))
	}

	chunks, err := p.deps.Segmenter.Segment(ctx, asset, p.opts.MaxSizeBytes, p.opts.ChunkMinutes)
	if err != nil {
		log.Warn().Err(err).Msg("segmentation failed, transcribing the whole file")
		chunks = []types.Chunk{{Index: 0, Path: asset.Path, Duration: asset.Duration}}
	}

	diarize := p.deps.Diarizer != nil && p.deps.Diarizer.Enabled()
	if req.Diarize != nil && !*req.Diarize {
		diarize = false
	}
	suffix := ""
	if diarize {
		suffix = SpeakersSuffix
	}

	log.Info().
		Int("chunks", len(chunks)).
		Float64("duration", asset.Duration).
		Int64("size", asset.SizeBytes).
		Bool("diarization", diarize).
		Str("format", string(style)).
		Msg("transcribing")

	skippable := p.opts.SkipFailedChunks && len(chunks) > 1
	outputs := make([]chunkOutput, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.ChunkWorkers)
	for i, chunk := range chunks {
		g.Go(func() error {
			clog := log.With().Int(logger.FieldChunk, chunk.Index).Logger()
			tr, err := p.transcribeChunk(gctx, clog, chunk, language, diarize)
			if err == nil {
				outputs[i].transcript = tr
				outputs[i].data, err = format.Bytes(tr, style)
				if err != nil {
					err = apperr.New(apperr.CodeOutput, apperr.StageOutput, "render transcript").WithChunk(chunk.Index).WithCause(err)
				}
			}
			if err == nil && len(chunks) > 1 {
				path := filepath.Join(filepath.Dir(chunk.Path), audio.BaseName(chunk.Path)+suffix+"."+style.Extension())
				err = writeFile(path, outputs[i].data)
			}
			if err != nil {
				if skippable && gctx.Err() == nil {
					clog.Error().Err(err).Msg("chunk failed, leaving a gap")
					outputs[i].err = err
					return nil
				}
				return err
			}
			clog.Info().Int("segments", len(tr.Segments)).Bool("diarized", tr.Diarized).Msg("chunk transcribed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(chunks) == 1 {
		path := filepath.Join(outputDir, base+suffix+"."+style.Extension())
		if err := writeFile(path, outputs[0].data); err != nil {
			return nil, err
		}
		tr := outputs[0].transcript
		log.Info().Str("output", path).Msg("transcript written")
		if !p.opts.KeepChunks && chunks[0].Owned {
			p.removeChunks(log, chunks)
		}
		return &Result{
			OutputPath: path,
			Style:      style,
			Chunks:     1,
			Text:       tr.Text,
			Language:   tr.Language,
			Duration:   firstPositive(tr.Duration, asset.Duration),
			Diarized:   tr.Diarized,
		}, nil
	}

	res, err := p.merge(chunks, outputs, style, filepath.Join(outputDir, base+MergedSuffix+"."+style.Extension()))
	if err != nil {
		return nil, err
	}
	res.Duration = firstPositive(asset.Duration, res.Duration)
	for _, s := range res.Skipped {
		log.Warn().Err(s).Msg("chunk skipped during merge")
	}
	log.Info().Str("output", res.OutputPath).Int("gaps", len(res.Gaps)).Msg("merged transcript written")

	if !p.opts.KeepChunks && chunks[0].Owned {
		p.removeChunks(log, chunks)
	}
	return res, nil
}

// transcribeChunk normalizes, diarizes, recognizes and labels one chunk.
func (p *Pipeline) transcribeChunk(ctx context.Context, log zerolog.Logger, chunk types.Chunk, language string, diarize bool) (*types.Transcript, error) {
	audioPath := chunk.Path
	if p.opts.Normalize && p.deps.Normalizer != nil {
		normalized, err := p.deps.Normalizer.Normalize(ctx, chunk.Path)
		if err != nil {
			log.Warn().Err(err).Msg("normalization failed, using chunk as is")
		} else {
			audioPath = normalized
			defer os.Remove(normalized)
		}
	}

	var turns []types.SpeakerTurn
	if diarize {
		if res := p.deps.Diarizer.Diarize(ctx, audioPath); res.Available {
			turns = res.Turns
			log.Debug().Int("turns", len(turns)).Int("speakers", res.NumSpeakers).Msg("diarization finished")
		}
	}

	rec, err := p.deps.Recognizer.Transcribe(ctx, transcription.Request{AudioPath: audioPath, Language: language})
	if err != nil {
		code := apperr.CodeRecognition
		if errors.Is(err, transcription.ErrUnavailable) {
			code = apperr.CodeRecognitionUnavailable
		}
		return nil, apperr.New(code, apperr.StageRecognition, "recognition failed").WithChunk(chunk.Index).WithCause(err)
	}

	return &types.Transcript{
		Text:     rec.Text,
		Language: rec.Language,
		Duration: firstPositive(chunk.Duration, rec.Duration),
		Diarized: turns != nil,
		Segments: p.deps.Assigner.Assign(rec.Segments, turns),
	}, nil
}

// merge combines chunk outputs in index order and writes the merged file.
func (p *Pipeline) merge(chunks []types.Chunk, outputs []chunkOutput, style format.Style, path string) (*Result, error) {
	offsets := merge.Offsets(chunks, p.opts.ChunkMinutes, p.opts.OffsetMode)
	nominal := p.opts.ChunkMinutes * 60

	res := &Result{OutputPath: path, Style: style, Chunks: len(chunks)}
	parts := make([]merge.Part, len(chunks))
	var texts []string
	for i, out := range outputs {
		parts[i] = merge.Part{Index: chunks[i].Index, Offset: offsets[i]}
		if out.err != nil {
			length := firstPositive(chunks[i].Duration, nominal)
			parts[i].Gap = &types.Gap{
				Chunk:  chunks[i].Index,
				Start:  offsets[i],
				End:    offsets[i] + length,
				Reason: out.err.Error(),
			}
			continue
		}
		parts[i].Data = out.data

		tr := out.transcript
		if t := strings.TrimSpace(tr.Text); t != "" {
			texts = append(texts, t)
		}
		if res.Language == "" {
			res.Language = tr.Language
		}
		res.Diarized = res.Diarized || tr.Diarized
		res.Duration = offsets[i] + tr.Duration
	}
	res.Text = strings.Join(texts, " ")

	data, report, err := merge.Merge(parts, style)
	if err != nil {
		return nil, err
	}
	res.Gaps = report.Gaps
	res.Skipped = report.Skipped
	if report.Merged == 0 {
		return nil, apperr.New(apperr.CodeMerge, apperr.StageMerge, fmt.Sprintf("none of %d chunks produced a usable transcript", len(chunks)))
	}
	if err := writeFile(path, data); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) removeChunks(log zerolog.Logger, chunks []types.Chunk) {
	dir := filepath.Dir(chunks[0].Path)
	if err := os.RemoveAll(dir); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("failed to remove chunk directory")
		return
	}
	// the namespace directory only holds this source's chunks
	_ = os.Remove(filepath.Dir(dir))
	log.Debug().Str("dir", dir).Msg("chunk directory removed")
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperr.Output(path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperr.Output(path, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
