package format

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

func sample() *types.Transcript {
	return &types.Transcript{
		Text:     "Hello there. How are you? Fine.",
		Language: "en",
		Diarized: true,
		Segments: []types.LabeledSegment{
			{Start: 0, End: 1.5, Text: "Hello there. How are you?", Speaker: "A"},
			{Start: 1.5, End: 2, Text: "   ", Speaker: "A"},
			{Start: 2, End: 3723.4567, Text: "Fine.", Speaker: "B"},
		},
	}
}

func TestParseStyle(t *testing.T) {
	tests := []struct {
		in      string
		want    Style
		wantErr bool
	}{
		{"txt", Plain, false},
		{"plain", Plain, false},
		{"SRT", SRT, false},
		{"webvtt", VTT, false},
		{" json ", JSON, false},
		{"docx", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStyle(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStyle(%q): unexpected error state %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStyle(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		sec  float64
		sep  byte
		want string
	}{
		{0, ',', "00:00:00,000"},
		{1.5, ',', "00:00:01,500"},
		{61.0004, '.', "00:01:01.000"},
		{59.9996, '.', "00:01:00.000"},
		{3723.4567, ',', "01:02:03,457"},
		{360000, '.', "100:00:00.000"},
		{-2, ',', "00:00:00,000"},
	}
	for _, tt := range tests {
		if got := Timestamp(tt.sec, tt.sep); got != tt.want {
			t.Errorf("Timestamp(%v): expected %s, got %s", tt.sec, tt.want, got)
		}
	}
}

func TestRender_Plain(t *testing.T) {
	got, err := Bytes(sample(), Plain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "A: Hello there.\n\nA: How are you?\n\nB: Fine.\n"
	if string(got) != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRender_PlainWithoutSegments(t *testing.T) {
	got, _ := Bytes(&types.Transcript{Text: "Dr. Smith arrived. He left."}, Plain)
	want := "Unknown: Dr. Smith arrived.\n\nUnknown: He left.\n"
	if string(got) != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	empty, _ := Bytes(&types.Transcript{}, Plain)
	if len(empty) != 0 {
		t.Errorf("expected empty output, got %q", empty)
	}
}

func TestRender_SRT(t *testing.T) {
	var sb strings.Builder
	if err := Render(&sb, sample(), SRT); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:01,500\nA: Hello there. How are you?\n\n" +
		"2\n00:00:02,000 --> 01:02:03,457\nB: Fine.\n\n"
	if sb.String() != want {
		t.Errorf("expected %q, got %q", want, sb.String())
	}
}

func TestRender_VTT(t *testing.T) {
	got, _ := Bytes(sample(), VTT)
	want := "WEBVTT\n\n00:00:00.000 --> 00:00:01.500\nA: Hello there. How are you?\n\n" +
		"00:00:02.000 --> 01:02:03.457\nB: Fine.\n\n"
	if string(got) != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRender_JSONKeepsEmptySegments(t *testing.T) {
	data, err := Bytes(sample(), JSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"text\"") {
		t.Errorf("expected two-space indentation, got %s", data)
	}
	back, err := ParseStructured(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(back, sample()) {
		t.Errorf("round trip mismatch:\nexpected %+v\ngot      %+v", sample(), back)
	}
}

func TestRender_JSONRoundTripParts(t *testing.T) {
	in := &types.Transcript{
		Text: "a b",
		Segments: []types.LabeledSegment{{
			Start: 0.1, End: 2.3, Text: "a b", Speaker: types.SpeakerGeneric,
			Parts: []types.RecognizedSegment{{Start: 0.1, End: 1.2, Text: "a"}, {Start: 1.25, End: 2.3, Text: "b"}},
		}},
		Gaps: []types.Gap{{Chunk: 1, Start: 600, End: 1200, Reason: "timeout"}},
	}
	data, _ := Bytes(in, JSON)
	back, err := ParseStructured(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(back, in) {
		t.Errorf("round trip mismatch:\nexpected %+v\ngot      %+v", in, back)
	}
}

func TestRender_JSONEmptySegmentsArray(t *testing.T) {
	data, _ := Bytes(&types.Transcript{Text: ""}, JSON)
	if !strings.Contains(string(data), `"segments": []`) {
		t.Errorf("expected empty segments array, got %s", data)
	}
}

func TestParseSubtitles_RoundTrip(t *testing.T) {
	for _, style := range []Style{SRT, VTT} {
		data, _ := Bytes(sample(), style)
		cues, err := ParseSubtitles(data, style)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", style, err)
		}
		want := CuesFor(sample().Segments)
		if len(cues) != len(want) {
			t.Fatalf("%s: expected %d cues, got %d", style, len(want), len(cues))
		}
		for i, c := range cues {
			if c.Index != want[i].Index || c.Text != want[i].Text {
				t.Errorf("%s: cue %d: expected %+v, got %+v", style, i, want[i], c)
			}
			if math.Abs(c.Start-want[i].Start) > 0.0005 || math.Abs(c.End-want[i].End) > 0.0005 {
				t.Errorf("%s: cue %d: timing drifted: %+v", style, i, c)
			}
		}
	}
}

func TestParseSubtitles_Tolerant(t *testing.T) {
	srt := "\ufeff1\r\n00:00:01,000 --> 00:00:02,000\r\nA: one\r\nline two\r\n\r\n\r\n2\r\n00:00:03,000 --> 00:00:04,000\r\nB: x\r\n"
	cues, err := ParseSubtitles([]byte(srt), SRT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cues) != 2 || cues[0].Text != "A: one\nline two" || cues[1].Start != 3 {
		t.Errorf("unexpected cues %+v", cues)
	}

	vtt := "WEBVTT\n\nNOTE produced elsewhere\n\nintro\n00:01.000 --> 00:02.500 align:start\nhello\n"
	cues, err = ParseSubtitles([]byte(vtt), VTT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cues) != 1 || cues[0].Start != 1 || cues[0].End != 2.5 || cues[0].Text != "hello" {
		t.Errorf("unexpected cues %+v", cues)
	}
}

func TestParseSubtitles_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		style Style
	}{
		{"srt missing index", "00:00:01,000 --> 00:00:02,000\nhi\n", SRT},
		{"srt missing timing", "1\nhi\n", SRT},
		{"srt bad timestamp", "1\n00:00:xx,000 --> 00:00:02,000\nhi\n", SRT},
		{"vtt missing header", "00:00:01.000 --> 00:00:02.000\nhi\n", VTT},
		{"vtt empty", "", VTT},
	}
	for _, tt := range tests {
		if _, err := ParseSubtitles([]byte(tt.data), tt.style); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestParseSubtitles_EmptySRT(t *testing.T) {
	cues, err := ParseSubtitles(nil, SRT)
	if err != nil || len(cues) != 0 {
		t.Errorf("expected no cues and no error, got %v, %v", cues, err)
	}
}

func TestParseStructured_Invalid(t *testing.T) {
	if _, err := ParseStructured([]byte("{not json")); err == nil {
		t.Error("expected error")
	}
}
