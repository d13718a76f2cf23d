package transcript

import (
	"fmt"
	"strconv"
	"strings"
)

// Timestamp is a point on the transcript timeline, expressed in seconds since
// transcript start. It is the canonical form of the many textual timestamp
// shapes found in subtitle files and LLM output.
type Timestamp float64

// Seconds returns t as a plain float64 second count.
func (t Timestamp) Seconds() float64 { return float64(t) }

// String renders t with one decimal place, e.g. "65.5s".
func (t Timestamp) String() string { return fmt.Sprintf("%.1fs", float64(t)) }

// FormatError reports a timestamp string that could not be normalised.
// It is distinct from generic parse failures so that callers can decide
// whether to abort the whole validation or skip the offending item.
type FormatError struct {
	// Input is the original timestamp string as received.
	Input string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed timestamp %q", e.Input)
}

// ParseTimestamp converts a textual timestamp into a [Timestamp].
//
// Accepted shapes, detected by counting ':' separators:
//
//	H:MM:SS.mmm   (2 colons; "," also accepted as decimal separator)
//	M:SS.mmm      (1 colon)
//	SS.mmm        (no colon; bare seconds)
//
// The fractional part is read as integer milliseconds. No semantic
// validation is performed: negative components and out-of-range minutes are
// passed through as-is. A [*FormatError] is returned only when a component
// is not numeric.
func ParseTimestamp(s string) (Timestamp, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")

	switch strings.Count(cleaned, ":") {
	case 2:
		parts := strings.SplitN(cleaned, ":", 3)
		hours, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, &FormatError{Input: s}
		}
		minutes, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, &FormatError{Input: s}
		}
		seconds, err := parseSecondsField(parts[2])
		if err != nil {
			return 0, &FormatError{Input: s}
		}
		return Timestamp(float64(hours)*3600 + float64(minutes)*60 + seconds), nil

	case 1:
		parts := strings.SplitN(cleaned, ":", 2)
		minutes, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, &FormatError{Input: s}
		}
		seconds, err := parseSecondsField(parts[1])
		if err != nil {
			return 0, &FormatError{Input: s}
		}
		return Timestamp(float64(minutes)*60 + seconds), nil

	default:
		v, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, &FormatError{Input: s}
		}
		return Timestamp(v), nil
	}
}

// parseSecondsField parses the "SS" or "SS.mmm" tail of a colon-separated
// timestamp. The fractional digits are interpreted as integer milliseconds,
// mirroring the SRT convention.
func parseSecondsField(field string) (float64, error) {
	whole, frac, hasFrac := strings.Cut(field, ".")

	seconds, err := strconv.Atoi(whole)
	if err != nil {
		return 0, err
	}
	if !hasFrac {
		return float64(seconds), nil
	}

	millis, err := strconv.Atoi(frac)
	if err != nil {
		return 0, err
	}
	return float64(seconds) + float64(millis)/1000.0, nil
}
