// Package sentence splits recognized text into sentences for readable
// transcript output.
package sentence

import (
	"regexp"
	"strings"
	"unicode"
)

// mask temporarily replaces the period of a protected abbreviation.
const mask = '\uE000'

// abbreviations lists titles, Latin abbreviations, time-of-day markers and
// country abbreviations whose trailing period never ends a sentence.
var abbreviations = regexp.MustCompile(`(?i)\b(Mr|Mrs|Ms|Dr|Prof|Sr|Jr|St|vs|etc|i\.e|e\.g|a\.m|p\.m|U\.S|U\.K)\.`)

// Split breaks text into trimmed, non-empty sentences in input order.
// A boundary is a run of '.', '!' or '?' followed by whitespace and then
// an upper-case letter or the end of the text. Text without a boundary is
// returned as a single sentence; blank text yields no sentences.
func Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	protected := []rune(abbreviations.ReplaceAllString(text, "${1}"+string(mask)))

	var sentences []string
	emit := func(rs []rune) {
		s := strings.TrimSpace(strings.ReplaceAll(string(rs), string(mask), "."))
		if s != "" {
			sentences = append(sentences, s)
		}
	}

	start := 0
	for i := 0; i < len(protected); {
		if !isTerminal(protected[i]) {
			i++
			continue
		}
		end := i
		for end < len(protected) && isTerminal(protected[end]) {
			end++
		}
		next := end
		for next < len(protected) && unicode.IsSpace(protected[next]) {
			next++
		}
		if next > end && (next == len(protected) || unicode.IsUpper(protected[next])) {
			emit(protected[start:end])
			start = next
		}
		i = next
	}
	emit(protected[start:])

	if len(sentences) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
