package format

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

// ParseSubtitles reads back SRT or WebVTT produced by Render. It returns an
// error when a block lacks its index or timing line, or when a WebVTT
// document lacks its header.
func ParseSubtitles(data []byte, style Style) ([]Cue, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")
	blocks := splitBlocks(text)

	if style == VTT {
		if len(blocks) == 0 || !strings.HasPrefix(blocks[0], vttHeader) {
			return nil, fmt.Errorf("missing %s header", vttHeader)
		}
		blocks = blocks[1:]
	}

	cues := make([]Cue, 0, len(blocks))
	for n, block := range blocks {
		lines := strings.Split(block, "\n")
		if style == VTT && (strings.HasPrefix(lines[0], "NOTE") || strings.HasPrefix(lines[0], "STYLE")) {
			continue
		}

		cue := Cue{Index: len(cues) + 1}
		if style == SRT {
			idx, err := strconv.Atoi(strings.TrimSpace(lines[0]))
			if err != nil {
				return nil, fmt.Errorf("block %d: missing sequence number", n+1)
			}
			cue.Index = idx
			lines = lines[1:]
		} else if len(lines) > 1 && !strings.Contains(lines[0], "-->") {
			// cue identifier
			lines = lines[1:]
		}

		if len(lines) == 0 || !strings.Contains(lines[0], "-->") {
			return nil, fmt.Errorf("block %d: missing timing line", n+1)
		}
		start, end, err := parseTiming(lines[0])
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", n+1, err)
		}
		cue.Start, cue.End = start, end
		cue.Text = strings.Join(lines[1:], "\n")
		cues = append(cues, cue)
	}
	return cues, nil
}

// ParseStructured decodes a JSON transcript.
func ParseStructured(data []byte) (*types.Transcript, error) {
	var t types.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return &t, nil
}

// ParseTimestamp reads HH:MM:SS,mmm, HH:MM:SS.mmm or MM:SS.mmm into seconds.
func ParseTimestamp(ts string) (float64, error) {
	ts = strings.TrimSpace(ts)
	fields := strings.Split(strings.Replace(ts, ",", ".", 1), ":")
	if len(fields) < 2 || len(fields) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", ts)
	}
	var total float64
	for i, f := range fields {
		last := i == len(fields)-1
		if last {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil || v < 0 {
				return 0, fmt.Errorf("invalid timestamp %q", ts)
			}
			total = total*60 + v
			continue
		}
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", ts)
		}
		total = total*60 + float64(v)
	}
	return total, nil
}

func parseTiming(line string) (float64, float64, error) {
	from, to, ok := strings.Cut(line, "-->")
	if !ok {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	// WebVTT cue settings follow the end time.
	if f := strings.Fields(to); len(f) > 0 {
		to = f[0]
	}
	start, err := ParseTimestamp(from)
	if err != nil {
		return 0, 0, err
	}
	end, err := ParseTimestamp(to)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func splitBlocks(text string) []string {
	var blocks []string
	for _, b := range strings.Split(text, "\n\n") {
		b = strings.Trim(b, "\n")
		if strings.TrimSpace(b) == "" {
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks
}
