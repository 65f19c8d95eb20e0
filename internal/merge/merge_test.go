package merge

import (
	"strings"
	"testing"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/apperr"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/format"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

func render(t *testing.T, tr *types.Transcript, style format.Style) []byte {
	t.Helper()
	data, err := format.Bytes(tr, style)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return data
}

func TestOffsets(t *testing.T) {
	chunks := []types.Chunk{
		{Index: 0, Duration: 290},
		{Index: 1, Duration: 0},
		{Index: 2, Duration: 120},
	}
	tests := []struct {
		mode string
		want []float64
	}{
		{OffsetNominal, []float64{0, 300, 600}},
		{OffsetMeasured, []float64{0, 290, 590}},
	}
	for _, tt := range tests {
		got := Offsets(chunks, 5, tt.mode)
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("%s: chunk %d: expected %v, got %v", tt.mode, i, tt.want[i], got[i])
			}
		}
	}
}

func TestMerge_StructuredOffsetIsExact(t *testing.T) {
	const d = 300.0
	local := []float64{0, 0.001, 12.345, 299.999}
	chunks := make([]types.Chunk, 4)
	for i := range chunks {
		chunks[i] = types.Chunk{Index: i, Duration: d}
	}

	for _, mode := range []string{OffsetNominal, OffsetMeasured} {
		offsets := Offsets(chunks, d/60, mode)
		var parts []Part
		for i := range chunks {
			var segs []types.LabeledSegment
			for _, lt := range local {
				segs = append(segs, types.LabeledSegment{Start: lt, End: lt, Text: "x", Speaker: "A"})
			}
			parts = append(parts, Part{Index: i, Offset: offsets[i], Data: render(t, &types.Transcript{Text: "x", Segments: segs}, format.JSON)})
		}

		data, _, err := Merge(parts, format.JSON)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", mode, err)
		}
		merged, err := format.ParseStructured(data)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", mode, err)
		}
		for i := range chunks {
			for j, lt := range local {
				seg := merged.Segments[i*len(local)+j]
				if want := lt + float64(i)*d; seg.Start != want {
					t.Errorf("%s: chunk %d segment %d: expected %v, got %v", mode, i, j, want, seg.Start)
				}
			}
		}
	}
}

func TestMerge_StructuredFields(t *testing.T) {
	parts := []Part{
		{Index: 1, Offset: 600, Data: render(t, &types.Transcript{
			Text: "second", Language: "de", Duration: 120,
			Segments: []types.LabeledSegment{{Start: 1, End: 2, Text: "second", Speaker: types.SpeakerGeneric,
				Parts: []types.RecognizedSegment{{Start: 1, End: 2, Text: "second"}}}},
		}, format.JSON)},
		{Index: 0, Offset: 0, Data: render(t, &types.Transcript{
			Text: " first ", Duration: 600,
			Segments: []types.LabeledSegment{{Start: 0, End: 1, Text: "first", Speaker: types.SpeakerGeneric}},
		}, format.JSON)},
	}
	data, report, err := Merge(parts, format.JSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := format.ParseStructured(data)

	if got.Text != "first second" {
		t.Errorf("expected joined text, got %q", got.Text)
	}
	if got.Language != "de" {
		t.Errorf("expected language from first reporting chunk, got %q", got.Language)
	}
	if got.Duration != 720 {
		t.Errorf("expected duration 720, got %v", got.Duration)
	}
	if len(got.Segments) != 2 || got.Segments[1].Start != 601 || got.Segments[1].Parts[0].End != 602 {
		t.Errorf("unexpected segments %+v", got.Segments)
	}
	if report.Merged != 2 || len(report.Skipped) != 0 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestMerge_Plain(t *testing.T) {
	parts := []Part{
		{Index: 0, Data: []byte("Speaker: One.\n\nSpeaker: Two.\n")},
		{Index: 1, Data: []byte("\n")},
		{Index: 2, Gap: &types.Gap{Chunk: 2, Start: 600, End: 900.5, Reason: "timeout"}},
		{Index: 3, Offset: 900.5, Data: []byte("Speaker: Three.\n")},
	}
	data, report, err := Merge(parts, format.Plain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Speaker: One.\n\nSpeaker: Two.\n\n[missing chunk 2: 00:10:00.000 - 00:15:00.500]\n\nSpeaker: Three.\n"
	if string(data) != want {
		t.Errorf("expected %q, got %q", want, data)
	}
	if report.Merged != 3 || len(report.Gaps) != 1 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestMerge_PlainSilentChunks(t *testing.T) {
	tests := []struct {
		name       string
		parts      []Part
		want       string
		wantMerged int
	}{
		{
			name:       "all silent",
			parts:      []Part{{Index: 0}, {Index: 1, Offset: 300}, {Index: 2, Offset: 600}},
			want:       "",
			wantMerged: 3,
		},
		{
			name: "silent and gap",
			parts: []Part{
				{Index: 0},
				{Index: 1, Gap: &types.Gap{Chunk: 1, Start: 300, End: 600}},
				{Index: 2, Offset: 600, Data: []byte("\n")},
			},
			want:       "[missing chunk 1: 00:05:00.000 - 00:10:00.000]\n",
			wantMerged: 2,
		},
		{
			name:       "only gaps",
			parts:      []Part{{Index: 0, Gap: &types.Gap{Chunk: 0, End: 300}}},
			want:       "[missing chunk 0: 00:00:00.000 - 00:05:00.000]\n",
			wantMerged: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, report, err := Merge(tt.parts, format.Plain)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("expected %q, got %q", tt.want, data)
			}
			if report.Merged != tt.wantMerged {
				t.Errorf("expected %d merged, got %d", tt.wantMerged, report.Merged)
			}
		})
	}
}

func TestMerge_SubtitlesRenumberAndShift(t *testing.T) {
	chunk := &types.Transcript{Segments: []types.LabeledSegment{
		{Start: 0.5, End: 1.5, Text: "hi", Speaker: "A"},
		{Start: 2, End: 3, Text: "bye", Speaker: "B"},
	}}
	for _, style := range []format.Style{format.SRT, format.VTT} {
		parts := []Part{
			{Index: 0, Offset: 0, Data: render(t, chunk, style)},
			{Index: 1, Offset: 600, Data: render(t, chunk, style)},
		}
		data, _, err := Merge(parts, style)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", style, err)
		}
		cues, err := format.ParseSubtitles(data, style)
		if err != nil {
			t.Fatalf("%s: merged output does not parse: %v", style, err)
		}
		if len(cues) != 4 {
			t.Fatalf("%s: expected 4 cues, got %d", style, len(cues))
		}
		for i, c := range cues {
			if c.Index != i+1 {
				t.Errorf("%s: cue %d: expected index %d, got %d", style, i, i+1, c.Index)
			}
		}
		if cues[2].Start != 600.5 || cues[3].End != 603 {
			t.Errorf("%s: expected shifted cues, got %+v", style, cues[2:])
		}
	}
}

func TestMerge_MalformedChunkSkipped(t *testing.T) {
	good := render(t, &types.Transcript{Segments: []types.LabeledSegment{{Start: 0, End: 1, Text: "ok", Speaker: "A"}}}, format.SRT)
	parts := []Part{
		{Index: 0, Data: good},
		{Index: 1, Offset: 300, Data: []byte("garbage without markers\n")},
		{Index: 2, Offset: 600, Data: good},
	}
	data, report, err := Merge(parts, format.SRT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Chunk != 1 || report.Skipped[0].Code != apperr.CodeFormat {
		t.Fatalf("expected chunk 1 skipped with FORMAT_ERROR, got %+v", report.Skipped)
	}
	if report.Merged != 2 {
		t.Errorf("expected 2 merged chunks, got %d", report.Merged)
	}
	if !strings.Contains(string(data), "2\n00:10:00,000 --> 00:10:01,000\nA: ok") {
		t.Errorf("expected remaining chunks renumbered, got %q", data)
	}
}

func TestMerge_SubtitleGapMarker(t *testing.T) {
	parts := []Part{{Index: 0, Gap: &types.Gap{Chunk: 0, Start: 0, End: 300}}}
	data, _, _ := Merge(parts, format.VTT)
	want := "WEBVTT\n\n00:00:00.000 --> 00:05:00.000\n[missing chunk 0]\n\n"
	if string(data) != want {
		t.Errorf("expected %q, got %q", want, data)
	}
}

func TestMerge_StructuredGaps(t *testing.T) {
	parts := []Part{
		{Index: 0, Data: render(t, &types.Transcript{Text: "a"}, format.JSON)},
		{Index: 1, Offset: 300, Gap: &types.Gap{Chunk: 1, Start: 300, End: 600, Reason: "boom"}},
	}
	data, _, _ := Merge(parts, format.JSON)
	got, _ := format.ParseStructured(data)
	if len(got.Gaps) != 1 || got.Gaps[0].Chunk != 1 || got.Duration != 600 {
		t.Errorf("unexpected merged transcript %+v", got)
	}
}

func TestMerge_UnknownStyle(t *testing.T) {
	_, _, err := Merge(nil, format.Style("docx"))
	if !apperr.HasCode(err, apperr.CodeMerge) {
		t.Errorf("expected MERGE_FAILED, got %v", err)
	}
}
