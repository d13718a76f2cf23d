package transcript_test

import (
	"errors"
	"math"
	"testing"

	"github.com/katha-archive/katha/internal/transcript"
)

const epsilon = 1e-6

// TestParseTimestamp_Formats verifies that every accepted textual shape
// resolves to the documented second count, exercising each format-detection
// branch independently.
func TestParseTimestamp_Formats(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"0:01:05.500", 65.5},
		{"0:01:05,500", 65.5}, // comma decimal separator (SRT)
		{"00:01:05.500", 65.5},
		{"1:05.500", 65.5}, // minutes form: 1 minute + 5.5s
		{"1:05", 65},
		{"0:00:01", 1},
		{"2:03:04.250", 2*3600 + 3*60 + 4.25},
		{"65.5", 65.5}, // bare seconds
		{"0", 0},
		{" 0:00:10.000 ", 10},
	}

	for _, c := range cases {
		got, err := transcript.ParseTimestamp(c.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q): unexpected error: %v", c.in, err)
			continue
		}
		if math.Abs(got.Seconds()-c.want) > epsilon {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", c.in, got.Seconds(), c.want)
		}
	}
}

// TestParseTimestamp_Malformed verifies that non-numeric components produce a
// *FormatError rather than a generic conversion error or a panic.
func TestParseTimestamp_Malformed(t *testing.T) {
	for _, in := range []string{"", "abc", "0:xx:05", "1:2:3:4", "0:01:ab.500", "0:01:05.xyz", "--:--"} {
		_, err := transcript.ParseTimestamp(in)
		if err == nil {
			t.Errorf("ParseTimestamp(%q): expected error, got nil", in)
			continue
		}
		var fe *transcript.FormatError
		if !errors.As(err, &fe) {
			t.Errorf("ParseTimestamp(%q): error %v is not a *FormatError", in, err)
		}
	}
}

// TestParseTimestamp_NoSemanticValidation confirms the parser does not judge
// component sanity; that is the analyzers' job.
func TestParseTimestamp_NoSemanticValidation(t *testing.T) {
	got, err := transcript.ParseTimestamp("0:99:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got.Seconds()-99*60) > epsilon {
		t.Errorf("99-minute field = %v, want %v", got.Seconds(), 99*60)
	}
}
