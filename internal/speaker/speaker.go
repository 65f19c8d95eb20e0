// Package speaker attributes recognized segments to speakers, either from
// diarization turns or, without them, from pauses in the recognized speech.
package speaker

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

// Heuristic modes used when no diarization turns are available.
const (
	ModeParagraph = "paragraph"
	ModeAlternate = "alternate"
)

const (
	DefaultPauseThreshold = 1.5
	DefaultSentenceGap    = 0.8
)

// Assigner maps recognized segments to labeled segments.
type Assigner struct {
	// PauseThreshold starts a new block whenever the silence between two
	// segments exceeds it, in seconds.
	PauseThreshold float64
	// SentenceGap starts a new block when the previous segment ended a
	// sentence and the silence exceeds it, in seconds.
	SentenceGap float64
	Mode        string
}

// New creates an Assigner, falling back to defaults for non-positive thresholds.
func New(pauseThreshold, sentenceGap float64, mode string) *Assigner {
	if pauseThreshold <= 0 {
		pauseThreshold = DefaultPauseThreshold
	}
	if sentenceGap <= 0 {
		sentenceGap = DefaultSentenceGap
	}
	if mode == "" {
		mode = ModeParagraph
	}
	return &Assigner{PauseThreshold: pauseThreshold, SentenceGap: sentenceGap, Mode: mode}
}

// Assign labels segments using turns when diarization ran (turns non-nil,
// possibly empty) and the pause heuristic when it did not (turns nil).
func (a *Assigner) Assign(segments []types.RecognizedSegment, turns []types.SpeakerTurn) []types.LabeledSegment {
	if turns == nil {
		if a.Mode == ModeAlternate {
			return a.alternate(segments)
		}
		return a.ByPauses(segments)
	}
	return ByTurns(segments, turns)
}

// ByTurns labels each segment with the speaker whose turn contains the
// segment midpoint, using half-open [start, end) intervals. Segments with no
// matching turn are labeled Unknown.
func ByTurns(segments []types.RecognizedSegment, turns []types.SpeakerTurn) []types.LabeledSegment {
	out := make([]types.LabeledSegment, 0, len(segments))
	if len(segments) == 0 {
		return out
	}

	sorted := make([]types.SpeakerTurn, len(turns))
	copy(sorted, turns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	labels := Labels(sorted)

	for _, seg := range segments {
		mid := (seg.Start + seg.End) / 2
		label := types.SpeakerUnknown
		for _, turn := range sorted {
			if turn.Start > mid {
				break
			}
			if mid < turn.End {
				label = labels[turn.Speaker]
				break
			}
		}
		out = append(out, types.LabeledSegment{
			Start:   seg.Start,
			End:     seg.End,
			Text:    seg.Text,
			Speaker: label,
		})
	}
	return out
}

// Labels maps each distinct engine speaker id to a display label. Ids are
// sorted lexicographically and labeled A, B, ... Z, AA, AB, ...
func Labels(turns []types.SpeakerTurn) map[string]string {
	seen := make(map[string]bool)
	var ids []string
	for _, t := range turns {
		if !seen[t.Speaker] {
			seen[t.Speaker] = true
			ids = append(ids, t.Speaker)
		}
	}
	sort.Strings(ids)

	labels := make(map[string]string, len(ids))
	for i, id := range ids {
		labels[id] = LabelFor(i)
	}
	return labels
}

// LabelFor returns the display label for a 0-based speaker index.
func LabelFor(index int) string {
	label := ""
	for n := index; n >= 0; n = n/26 - 1 {
		label = string(rune('A'+n%26)) + label
	}
	return label
}

// ByPauses groups consecutive segments into paragraph blocks. A block ends
// when the next segment starts more than PauseThreshold after the previous
// one ended, or more than SentenceGap after a segment that ended a sentence.
// Every block carries the generic Speaker label.
func (a *Assigner) ByPauses(segments []types.RecognizedSegment) []types.LabeledSegment {
	out := make([]types.LabeledSegment, 0, len(segments))
	var parts []types.RecognizedSegment

	flush := func() {
		if len(parts) == 0 {
			return
		}
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p.Text); t != "" {
				texts = append(texts, t)
			}
		}
		out = append(out, types.LabeledSegment{
			Start:   parts[0].Start,
			End:     parts[len(parts)-1].End,
			Text:    strings.Join(texts, " "),
			Speaker: types.SpeakerGeneric,
			Parts:   parts,
		})
		parts = nil
	}

	for i, seg := range segments {
		if i > 0 {
			prev := segments[i-1]
			gap := seg.Start - prev.End
			if gap > a.PauseThreshold || (endsSentence(prev.Text) && gap > a.SentenceGap) {
				flush()
			}
		}
		parts = append(parts, seg)
	}
	flush()
	return out
}

// alternate keeps every segment and switches between A and B on long pauses.
func (a *Assigner) alternate(segments []types.RecognizedSegment) []types.LabeledSegment {
	out := make([]types.LabeledSegment, 0, len(segments))
	current := 0
	for i, seg := range segments {
		if i > 0 && seg.Start-segments[i-1].End > a.PauseThreshold {
			current = 1 - current
		}
		out = append(out, types.LabeledSegment{
			Start:   seg.Start,
			End:     seg.End,
			Text:    seg.Text,
			Speaker: LabelFor(current),
		})
	}
	return out
}

func endsSentence(text string) bool {
	text = strings.TrimRight(text, " \t\r\n")
	r, _ := utf8.DecodeLastRuneInString(text)
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
