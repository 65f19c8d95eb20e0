// Package format renders labeled transcripts as plain text, SRT, WebVTT or
// JSON, and parses the subtitle and JSON forms back for merging.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/sentence"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

// Style is an output encoding.
type Style string

const (
	Plain Style = "txt"
	SRT   Style = "srt"
	VTT   Style = "vtt"
	JSON  Style = "json"
)

// vttHeader opens every WebVTT document.
const vttHeader = "WEBVTT"

// ParseStyle resolves a style name. Aliases used by older configs are accepted.
func ParseStyle(name string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "txt", "text", "plain":
		return Plain, nil
	case "srt":
		return SRT, nil
	case "vtt", "webvtt":
		return VTT, nil
	case "json":
		return JSON, nil
	}
	return "", fmt.Errorf("unknown output format %q", name)
}

// Extension returns the file extension for the style, without the dot.
func (s Style) Extension() string { return string(s) }

// IsSubtitle reports whether the style is one of the timed subtitle dialects.
func (s Style) IsSubtitle() bool { return s == SRT || s == VTT }

// Cue is one timed subtitle block.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// Render writes t to w in the given style.
func Render(w io.Writer, t *types.Transcript, style Style) error {
	data, err := Bytes(t, style)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Bytes encodes t in the given style.
func Bytes(t *types.Transcript, style Style) ([]byte, error) {
	switch style {
	case Plain:
		return []byte(plainText(t)), nil
	case SRT, VTT:
		var buf bytes.Buffer
		WriteCues(&buf, CuesFor(t.Segments), style)
		return buf.Bytes(), nil
	case JSON:
		return structured(t)
	}
	return nil, fmt.Errorf("unknown output format %q", style)
}

// plainText emits one "speaker: sentence" paragraph per sentence.
func plainText(t *types.Transcript) string {
	var paragraphs []string
	if len(t.Segments) == 0 {
		for _, s := range sentence.Split(t.Text) {
			paragraphs = append(paragraphs, types.SpeakerUnknown+": "+s)
		}
	}
	for _, seg := range t.Segments {
		for _, s := range sentence.Split(seg.Text) {
			paragraphs = append(paragraphs, seg.Speaker+": "+s)
		}
	}
	if len(paragraphs) == 0 {
		return ""
	}
	return strings.Join(paragraphs, "\n\n") + "\n"
}

// CuesFor turns labeled segments into numbered cues. Segments without text
// produce no cue.
func CuesFor(segments []types.LabeledSegment) []Cue {
	cues := make([]Cue, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		cues = append(cues, Cue{
			Index: len(cues) + 1,
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Speaker + ": " + text,
		})
	}
	return cues
}

// WriteCues encodes cues in a subtitle dialect. SRT blocks carry their
// Index; WebVTT output starts with the WEBVTT header.
func WriteCues(buf *bytes.Buffer, cues []Cue, style Style) {
	sep := byte(',')
	if style == VTT {
		sep = '.'
		buf.WriteString(vttHeader + "\n\n")
	}
	for _, c := range cues {
		if style == SRT {
			fmt.Fprintf(buf, "%d\n", c.Index)
		}
		fmt.Fprintf(buf, "%s --> %s\n%s\n\n", Timestamp(c.Start, sep), Timestamp(c.End, sep), c.Text)
	}
}

func structured(t *types.Transcript) ([]byte, error) {
	out := *t
	if out.Segments == nil {
		out.Segments = []types.LabeledSegment{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	return append(data, '\n'), nil
}

// Timestamp renders seconds as HH:MM:SS<sep>mmm, rounded to the nearest
// millisecond. Negative values clamp to zero.
func Timestamp(seconds float64, sep byte) string {
	ms := int64(math.Round(seconds * 1000))
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms%1000)
}
