package transcript

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseSRT reads a SubRip (.srt) document from r and returns its cues.
//
// An SRT file is a sequence of blocks:
//
//	1
//	00:00:00,000 --> 00:00:01,830
//	I'm happy to
//	have you here today.
//
// Sequence numbers are ignored; multi-line text is joined with newlines.
// Parsing is best-effort in the same spirit as the importers elsewhere in
// this codebase: blocks without a timestamp line are skipped with a warning
// rather than failing the whole file, and a cue whose end precedes its start
// is dropped so degenerate spans never reach the analyzers.
func ParseSRT(r io.Reader) ([]Cue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		cues      []Cue
		current   *Cue
		textLines []string
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
			continue
		}

		if start, end, ok := parseTimingLine(line); ok {
			flush()
			current = &Cue{Start: start, End: end}
			continue
		}

		// Sequence numbers only appear between blocks.
		if current == nil && isDigitsOnly(line) {
			continue
		}

		if current == nil {
			slog.Warn("srt: stray line outside cue block, skipping", "line", line)
			continue
		}
		textLines = append(textLines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("transcript: read srt: %w", err)
	}
	flush()

	return cues, nil
}

// parseTimingLine splits a "start --> end" line. VTT variants append cue
// settings after the end timestamp; everything past the first field is
// discarded.
func parseTimingLine(line string) (start, end string, ok bool) {
	before, after, found := strings.Cut(line, "-->")
	if !found {
		return "", "", false
	}
	start = strings.TrimSpace(before)
	endFields := strings.Fields(after)
	if start == "" || len(endFields) == 0 {
		return "", "", false
	}
	return start, endFields[0], true
}

func isDigitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// keepCue rejects cues whose end precedes their start. Such spans come from
// corrupt files and would otherwise surface as confusing zero-coverage
// artifacts downstream.
func keepCue(c Cue) bool {
	start, errStart := ParseTimestamp(c.Start)
	end, errEnd := ParseTimestamp(c.End)
	if errStart != nil || errEnd != nil {
		// Unparseable timestamps pass through; the validator reports them
		// with the item index, which is more actionable than dropping here.
		return true
	}
	if end < start {
		slog.Warn("transcript: dropping cue with end before start", "start", c.Start, "end", c.End)
		return false
	}
	return true
}
