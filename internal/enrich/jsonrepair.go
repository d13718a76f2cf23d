package enrich

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON recovers a JSON object from a model response. Models wrap
// output in markdown fences, prepend prose, or truncate mid-string when they
// hit their token limit; all three happen in practice. The recovery order:
//
//  1. Strip ```json fences and surrounding text outside the outermost braces.
//  2. Close an unterminated trailing string when the quote count is odd.
//  3. Unmarshal; on failure, truncate from the end one byte at a time,
//     appending a closing brace, until a prefix parses.
//
// The result unmarshals into out. Returns an error only when no recoverable
// object exists in raw.
func extractJSON(raw string, out any) error {
	s := strings.TrimSpace(raw)

	if rest, ok := strings.CutPrefix(s, "```json"); ok {
		s = rest
	} else if rest, ok := strings.CutPrefix(s, "```"); ok {
		s = rest
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	s = strings.TrimSpace(s)

	// Drop prose around the outermost object.
	if start := strings.IndexByte(s, '{'); start > 0 {
		s = s[start:]
	} else if start < 0 {
		return fmt.Errorf("enrich: no JSON object in response")
	}
	if end := strings.LastIndexByte(s, '}'); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}

	if err := json.Unmarshal([]byte(s), out); err == nil {
		return nil
	}

	// An odd quote count usually means the model stopped mid-string. Cut at
	// the last complete quote and close the enclosing array and object.
	if strings.Count(s, `"`)%2 != 0 {
		if idx := strings.LastIndexByte(s, '"'); idx != -1 {
			trailing := strings.TrimSpace(s[idx+1:])
			if trailing != "" && !strings.ContainsAny(trailing[:1], ":,}]") {
				candidate := s[:idx+1] + `"]}`
				if err := json.Unmarshal([]byte(candidate), out); err == nil {
					return nil
				}
			}
		}
	}

	// Progressive truncation: find the longest prefix that parses once a
	// closing brace is appended.
	for end := len(s); end > 0; end-- {
		candidate := s[:end]
		if !strings.HasSuffix(candidate, "}") {
			candidate += "}"
		}
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return nil
		}
	}

	return fmt.Errorf("enrich: unrecoverable JSON in response (%d bytes)", len(raw))
}
