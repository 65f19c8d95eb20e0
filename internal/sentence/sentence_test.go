package sentence

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"abbreviation protected", "Dr. Smith arrived. He left.", []string{"Dr. Smith arrived.", "He left."}},
		{"no boundary", "just some words", []string{"just some words"}},
		{"no trailing punctuation", "First one. second part stays", []string{"First one. second part stays"}},
		{"punctuation runs", "Wait... What?! Yes.", []string{"Wait...", "What?!", "Yes."}},
		{"latin abbreviation", "Bring tools, e.g. a hammer. Then start.", []string{"Bring tools, e.g. a hammer.", "Then start."}},
		{"time of day", "We met at 5 p.m. Then we left.", []string{"We met at 5 p.m. Then we left."}},
		{"country", "He moved to the U.S. Last year.", []string{"He moved to the U.S. Last year."}},
		{"case insensitive", "ask mr. Jones. Okay.", []string{"ask mr. Jones.", "Okay."}},
		{"surrounding whitespace", "  Hello there.   General Kenobi.  ", []string{"Hello there.", "General Kenobi."}},
		{"newline separator", "One.\nTwo.", []string{"One.", "Two."}},
		{"lowercase after period", "version 2. and more", []string{"version 2. and more"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split(%q): expected %q, got %q", tt.in, tt.want, got)
			}
		})
	}
}

func TestSplit_Blank(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t"} {
		if got := Split(in); len(got) != 0 {
			t.Errorf("Split(%q): expected no sentences, got %q", in, got)
		}
	}
}

func TestSplit_Idempotent(t *testing.T) {
	inputs := []string{
		"Dr. Smith arrived. He left.",
		"Is it? It is! Fine then.",
		"One sentence only",
		"Mrs. Brown said hello. Prof. Green waved back. Done.",
	}
	for _, in := range inputs {
		first := Split(in)
		second := Split(strings.Join(first, " "))
		if len(first) != len(second) {
			t.Errorf("%q: %d sentences, re-split gives %d", in, len(first), len(second))
		}
	}
}

func TestSplit_PreservesOrder(t *testing.T) {
	got := Split("Alpha. Beta. Gamma.")
	want := []string{"Alpha.", "Beta.", "Gamma."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}
