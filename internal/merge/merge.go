// Package merge combines per-chunk transcripts into one transcript on the
// source asset's timeline.
package merge

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/apperr"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/format"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

// Offset modes.
const (
	// OffsetNominal places chunk i at i * chunk length, assuming every
	// earlier chunk ran the full configured length.
	OffsetNominal = "nominal"
	// OffsetMeasured accumulates the probed length of every earlier chunk.
	OffsetMeasured = "measured"
)

// Part is one chunk's contribution to a merge: either its formatted
// transcript or a Gap when the chunk failed and was skipped.
type Part struct {
	Index  int
	Offset float64
	Data   []byte
	Gap    *types.Gap
}

// Report describes what a merge did with each part.
type Report struct {
	Merged  int
	Skipped []*apperr.Error
	Gaps    []types.Gap
}

// Offsets returns the global start, in seconds, of each chunk.
// In measured mode a chunk with unknown duration counts as the nominal length.
func Offsets(chunks []types.Chunk, chunkMinutes float64, mode string) []float64 {
	nominal := chunkMinutes * 60
	offsets := make([]float64, len(chunks))
	for i := range chunks {
		if mode != OffsetMeasured {
			offsets[i] = float64(chunks[i].Index) * nominal
			continue
		}
		if i == 0 {
			continue
		}
		prev := chunks[i-1].Duration
		if prev <= 0 {
			prev = nominal
		}
		offsets[i] = offsets[i-1] + prev
	}
	return offsets
}

// Merge combines parts in index order. Malformed parts are skipped and
// recorded in the report; the merge itself only fails for an unknown style.
func Merge(parts []Part, style format.Style) ([]byte, Report, error) {
	ordered := make([]Part, len(parts))
	copy(ordered, parts)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	var report Report
	for _, p := range ordered {
		if p.Gap != nil {
			report.Gaps = append(report.Gaps, *p.Gap)
		}
	}

	switch style {
	case format.Plain:
		return mergePlain(ordered, &report), report, nil
	case format.SRT, format.VTT:
		return mergeSubtitles(ordered, style, &report), report, nil
	case format.JSON:
		data, err := mergeStructured(ordered, &report)
		if err != nil {
			return nil, report, apperr.New(apperr.CodeMerge, apperr.StageMerge, "encode merged transcript").WithCause(err)
		}
		return data, report, nil
	}
	return nil, report, apperr.New(apperr.CodeMerge, apperr.StageMerge, fmt.Sprintf("unknown output format %q", style))
}

func mergePlain(parts []Part, report *Report) []byte {
	var paragraphs []string
	for _, p := range parts {
		if p.Gap != nil {
			paragraphs = append(paragraphs, fmt.Sprintf("[missing chunk %d: %s - %s]",
				p.Gap.Chunk, format.Timestamp(p.Gap.Start, '.'), format.Timestamp(p.Gap.End, '.')))
			continue
		}
		// a silent chunk still counts as merged
		report.Merged++
		if text := strings.TrimSpace(string(p.Data)); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	if len(paragraphs) == 0 {
		return nil
	}
	return []byte(strings.Join(paragraphs, "\n\n") + "\n")
}

func mergeSubtitles(parts []Part, style format.Style, report *Report) []byte {
	var cues []format.Cue
	for _, p := range parts {
		if p.Gap != nil {
			cues = append(cues, format.Cue{
				Start: p.Gap.Start,
				End:   p.Gap.End,
				Text:  fmt.Sprintf("[missing chunk %d]", p.Gap.Chunk),
			})
			continue
		}
		chunkCues, err := format.ParseSubtitles(p.Data, style)
		if err != nil {
			report.Skipped = append(report.Skipped, apperr.Format(p.Index, "malformed subtitle output").WithCause(err))
			continue
		}
		for _, c := range chunkCues {
			c.Start += p.Offset
			c.End += p.Offset
			cues = append(cues, c)
		}
		report.Merged++
	}
	for i := range cues {
		cues[i].Index = i + 1
	}

	var buf bytes.Buffer
	format.WriteCues(&buf, cues, style)
	return buf.Bytes()
}

func mergeStructured(parts []Part, report *Report) ([]byte, error) {
	merged := types.Transcript{Segments: []types.LabeledSegment{}}
	var texts []string

	for _, p := range parts {
		if p.Gap != nil {
			merged.Gaps = append(merged.Gaps, *p.Gap)
			if p.Gap.End > merged.Duration {
				merged.Duration = p.Gap.End
			}
			continue
		}
		t, err := format.ParseStructured(p.Data)
		if err != nil {
			report.Skipped = append(report.Skipped, apperr.Format(p.Index, "malformed structured output").WithCause(err))
			continue
		}

		if text := strings.TrimSpace(t.Text); text != "" {
			texts = append(texts, text)
		}
		if merged.Language == "" {
			merged.Language = t.Language
		}
		merged.Diarized = merged.Diarized || t.Diarized
		if t.Duration > 0 && p.Offset+t.Duration > merged.Duration {
			merged.Duration = p.Offset + t.Duration
		}
		for _, seg := range t.Segments {
			merged.Segments = append(merged.Segments, shift(seg, p.Offset))
		}
		for _, g := range t.Gaps {
			g.Start += p.Offset
			g.End += p.Offset
			merged.Gaps = append(merged.Gaps, g)
		}
		report.Merged++
	}
	merged.Text = strings.Join(texts, " ")

	return format.Bytes(&merged, format.JSON)
}

func shift(seg types.LabeledSegment, offset float64) types.LabeledSegment {
	seg.Start += offset
	seg.End += offset
	if len(seg.Parts) > 0 {
		parts := make([]types.RecognizedSegment, len(seg.Parts))
		for i, p := range seg.Parts {
			p.Start += offset
			p.End += offset
			parts[i] = p
		}
		seg.Parts = parts
	}
	return seg
}
