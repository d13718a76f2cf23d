package transcript

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseVTT reads a WebVTT (.vtt) document from r and returns its cues.
//
// Differences from SRT that matter here: the file opens with a "WEBVTT"
// header line, cue identifiers are optional free text rather than sequence
// numbers, timestamps use '.' as the decimal separator and may omit the
// hours field, and the timing line may carry cue settings after the end
// timestamp (discarded). NOTE, STYLE, and REGION blocks are skipped.
func ParseVTT(r io.Reader) ([]Cue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("transcript: read vtt: %w", err)
		}
		return nil, fmt.Errorf("transcript: vtt: empty input")
	}
	header := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\uFEFF"))
	if !strings.HasPrefix(header, "WEBVTT") {
		return nil, fmt.Errorf("transcript: vtt: missing WEBVTT header, got %q", header)
	}

	var (
		cues      []Cue
		current   *Cue
		textLines []string
		skipBlock bool
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.Join(textLines, "\n")
		if keepCue(*current) {
			cues = append(cues, *current)
		}
		current = nil
		textLines = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			flush()
			skipBlock = false
			continue
		}
		if skipBlock {
			continue
		}

		if current == nil {
			if strings.HasPrefix(line, "NOTE") || strings.HasPrefix(line, "STYLE") || strings.HasPrefix(line, "REGION") {
				skipBlock = true
				continue
			}
			if start, end, ok := parseTimingLine(line); ok {
				current = &Cue{Start: start, End: end}
			}
			// Anything else before a timing line is a cue identifier.
			continue
		}

		textLines = append(textLines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("transcript: read vtt: %w", err)
	}
	flush()

	return cues, nil
}
