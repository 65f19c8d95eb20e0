package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/apperr"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

// SegmentsSuffix names the directory holding a source's chunk files.
const SegmentsSuffix = "_segments"

// Segmenter splits assets larger than a size threshold into fixed-length chunks.
type Segmenter struct {
	FFmpeg  string
	WorkDir string
	Runner  Runner
	Prober  *Prober
	Log     zerolog.Logger
}

// NewSegmenter creates a Segmenter writing chunk directories under workDir.
func NewSegmenter(ffmpeg, workDir string, runner Runner, prober *Prober, log zerolog.Logger) *Segmenter {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Segmenter{FFmpeg: ffmpeg, WorkDir: workDir, Runner: runner, Prober: prober, Log: log}
}

// Namespace returns a short, stable directory name for a source path so
// concurrent jobs on different assets never share chunk files.
func Namespace(sourcePath string) string {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		abs = sourcePath
	}
	return strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs)).String(), "-", "")[:8]
}

// BaseName returns the source file name without its extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ChunkDir returns the directory chunks of sourcePath are written to.
func ChunkDir(workDir, sourcePath string) string {
	return filepath.Join(workDir, Namespace(sourcePath), BaseName(sourcePath)+SegmentsSuffix)
}

// Segment returns the asset as a single unowned chunk when it fits within
// maxSizeBytes. Otherwise it writes consecutive chunks of chunkMinutes into
// ChunkDir; the last chunk may be shorter. Re-running overwrites earlier chunks.
func (s *Segmenter) Segment(ctx context.Context, asset types.AudioAsset, maxSizeBytes int64, chunkMinutes float64) ([]types.Chunk, error) {
	if asset.SizeBytes <= maxSizeBytes {
		return []types.Chunk{{Index: 0, Path: asset.Path, Duration: asset.Duration}}, nil
	}
	if chunkMinutes <= 0 {
		return nil, apperr.New(apperr.CodeSegmentation, apperr.StageSegmentation, "chunk length must be positive")
	}

	dir := ChunkDir(s.WorkDir, asset.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, segmentationErr("create chunk directory", err)
	}

	base := BaseName(asset.Path)
	ext := filepath.Ext(asset.Path)
	if ext == "" {
		ext = ".wav"
	}
	pattern := filepath.Join(dir, base+"_part*"+ext)
	if err := removeMatching(pattern); err != nil {
		return nil, segmentationErr("remove stale chunks", err)
	}

	seconds := strconv.FormatFloat(chunkMinutes*60, 'f', -1, 64)
	_, err := s.Runner.Run(ctx, s.FFmpeg,
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", asset.Path,
		"-f", "segment",
		"-segment_time", seconds,
		"-reset_timestamps", "1",
		"-c", "copy",
		filepath.Join(dir, base+"_part%03d"+ext),
	)
	if err != nil {
		return nil, segmentationErr("split audio", err)
	}

	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, segmentationErr("list chunks", err)
	}
	if len(paths) == 0 {
		return nil, segmentationErr("split audio", fmt.Errorf("ffmpeg produced no chunks in %s", dir))
	}
	sortParts(paths, base+"_part", ext)

	chunks := make([]types.Chunk, 0, len(paths))
	for i, p := range paths {
		c := types.Chunk{Index: i, Path: p, Owned: true}
		if s.Prober != nil {
			c.Duration = s.Prober.Duration(ctx, p)
		}
		chunks = append(chunks, c)
	}

	s.Log.Info().
		Str("source", asset.Path).
		Str("dir", dir).
		Int("chunks", len(chunks)).
		Float64("chunk_minutes", chunkMinutes).
		Msg("split audio into chunks")
	return chunks, nil
}

// sortParts orders chunk files by their numeric part suffix so that
// _part1000 follows _part999.
func sortParts(paths []string, prefix, ext string) {
	number := func(p string) int {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), prefix), ext)
		n, err := strconv.Atoi(name)
		if err != nil {
			return -1
		}
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool {
		a, b := number(paths[i]), number(paths[j])
		if a != b {
			return a < b
		}
		return paths[i] < paths[j]
	})
}

func segmentationErr(msg string, cause error) *apperr.Error {
	return apperr.New(apperr.CodeSegmentation, apperr.StageSegmentation, msg).WithCause(cause)
}

func removeMatching(pattern string) error {
	stale, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	for _, p := range stale {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
