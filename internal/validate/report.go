// Package validate implements the transcript coverage validation engine.
//
// Given the original subtitle cues and the chunks an LLM produced from them,
// it verifies that the chunks faithfully cover the cues both in time and in
// text, and reports gaps, overlaps, and duplicated content. The LLM call that
// produces chunks is unconstrained and can silently drop or alter text; this
// package is the guard that makes such loss visible before anything is
// embedded and stored.
//
// The engine is a pure, synchronous computation over its inputs. It holds no
// state between calls and is safe to invoke concurrently.
package validate

import (
	"fmt"
	"strings"

	"github.com/katha-archive/katha/internal/transcript"
)

// missingRenderLimit caps how many missing subtitles the detailed report
// lists before truncating with a "... and N more" line.
const missingRenderLimit = 5

// Thresholds holds the tunable limits of the validation engine. The zero
// value of any field means "use the default for that field", so
// Thresholds{} behaves exactly like [DefaultThresholds].
type Thresholds struct {
	// MinTextCoverage is the minimum acceptable text coverage percentage.
	MinTextCoverage float64

	// MinTimelineCoverage is the minimum acceptable timeline coverage
	// percentage.
	MinTimelineCoverage float64

	// GapTolerance is the largest span, in seconds, allowed between two
	// time-adjacent chunks before a gap is reported. The default absorbs
	// normal rounding jitter between subtitle timestamps and the copies the
	// LLM echoes back.
	GapTolerance float64

	// DuplicateSimilarity is the Jaccard word-set similarity above which two
	// chunks are flagged as duplicated content.
	DuplicateSimilarity float64
}

// DefaultThresholds matches the reference behaviour of the validation engine.
var DefaultThresholds = Thresholds{
	MinTextCoverage:     95,
	MinTimelineCoverage: 95,
	GapTolerance:        1.0,
	DuplicateSimilarity: 0.5,
}

// orDefaults fills zero fields from [DefaultThresholds].
func (t Thresholds) orDefaults() Thresholds {
	if t.MinTextCoverage == 0 {
		t.MinTextCoverage = DefaultThresholds.MinTextCoverage
	}
	if t.MinTimelineCoverage == 0 {
		t.MinTimelineCoverage = DefaultThresholds.MinTimelineCoverage
	}
	if t.GapTolerance == 0 {
		t.GapTolerance = DefaultThresholds.GapTolerance
	}
	if t.DuplicateSimilarity == 0 {
		t.DuplicateSimilarity = DefaultThresholds.DuplicateSimilarity
	}
	return t
}

// Report is the complete outcome of one validation run. It is created fresh
// per call and has no lifecycle beyond it.
type Report struct {
	// CoverageComplete is the single pass/fail verdict: every cue covered,
	// both coverage percentages at or above their thresholds, and no errors.
	CoverageComplete bool

	// MissingSubtitles lists the cues no chunk overlaps, in start-time order.
	MissingSubtitles []CoverageRecord

	// TimelineGaps lists uncovered spans between time-adjacent chunks.
	TimelineGaps []Gap

	// OverlappingChunks lists spans claimed by two adjacent chunks at once.
	OverlappingChunks []Overlap

	// DuplicateContent lists chunk pairs with highly similar vocabularies.
	DuplicateContent []DuplicatePair

	TextCoveragePct     float64
	TimelineCoveragePct float64

	// Errors are findings that fail the verdict. Warnings are advisory and
	// never block it, regardless of count.
	Errors   []string
	Warnings []string

	// DetailedReport is a deterministic multi-line rendering of everything
	// above, suitable for logs or debug responses. Callers treat it as
	// opaque text and never parse it back.
	DetailedReport string

	cueCount   int
	chunkCount int
}

// Validate checks that chunks faithfully cover cues, using
// [DefaultThresholds].
//
// Empty inputs never produce an error return; they degrade to a hard-fail
// report so the caller decides the consequence. The only error condition is
// an unparseable timestamp, surfaced as a wrapped
// [*transcript.FormatError] naming the offending item.
func Validate(cues []transcript.Cue, chunks []transcript.Chunk) (*Report, error) {
	return Thresholds{}.Validate(cues, chunks)
}

// Validate is like the package-level [Validate] with explicit thresholds.
func (t Thresholds) Validate(cues []transcript.Cue, chunks []transcript.Chunk) (*Report, error) {
	t = t.orDefaults()

	r := &Report{cueCount: len(cues), chunkCount: len(chunks)}

	if len(cues) == 0 {
		r.Errors = append(r.Errors, "No original subtitles provided")
		r.DetailedReport = r.render()
		return r, nil
	}
	if len(chunks) == 0 {
		r.Errors = append(r.Errors, "No processed chunks provided")
		r.DetailedReport = r.render()
		return r, nil
	}

	cueSpans, err := parseCueSpans(cues)
	if err != nil {
		return nil, err
	}
	chunkSpans, err := parseChunkSpans(chunks)
	if err != nil {
		return nil, err
	}

	timeline := analyzeTimeline(cueSpans, chunkSpans, t.GapTolerance)
	r.TimelineCoveragePct = timeline.pct
	r.TimelineGaps = timeline.gaps
	r.OverlappingChunks = timeline.overlaps
	for _, rec := range timeline.records {
		if !rec.Covered {
			r.MissingSubtitles = append(r.MissingSubtitles, rec)
		}
	}

	r.TextCoveragePct = analyzeText(cues, chunks)
	r.DuplicateContent = findDuplicates(chunks, t.DuplicateSimilarity)

	if n := len(r.MissingSubtitles); n > 0 {
		r.Errors = append(r.Errors, fmt.Sprintf("Missing %d subtitles in chunks", n))
	}
	if r.TextCoveragePct < t.MinTextCoverage {
		r.Errors = append(r.Errors, fmt.Sprintf("Text coverage is only %.1f%%", r.TextCoveragePct))
	}
	if r.TimelineCoveragePct < t.MinTimelineCoverage {
		r.Errors = append(r.Errors, fmt.Sprintf("Timeline coverage is only %.1f%%", r.TimelineCoveragePct))
	}

	if n := len(r.TimelineGaps); n > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("Found %d timeline gaps", n))
	}
	if n := len(r.OverlappingChunks); n > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("Found %d overlapping chunks", n))
	}
	if n := len(r.DuplicateContent); n > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("Found %d duplicate content sections", n))
	}

	// The first three conditions are already encoded in Errors; the verdict
	// keeps the redundancy on purpose so it cannot drift from the reference
	// behaviour if the error messages change.
	r.CoverageComplete = len(r.MissingSubtitles) == 0 &&
		r.TextCoveragePct >= t.MinTextCoverage &&
		r.TimelineCoveragePct >= t.MinTimelineCoverage &&
		len(r.Errors) == 0

	r.DetailedReport = r.render()
	return r, nil
}

// render builds the human-readable multi-line report. The output is fully
// determined by the report's contents.
func (r *Report) render() string {
	var b strings.Builder

	b.WriteString("TRANSCRIPT VALIDATION REPORT\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")

	if r.CoverageComplete {
		b.WriteString("VALIDATION PASSED - All subtitles covered\n")
	} else {
		b.WriteString("VALIDATION FAILED - Issues detected\n")
	}

	b.WriteString("\nCoverage statistics:\n")
	fmt.Fprintf(&b, "   Text coverage:      %.1f%%\n", r.TextCoveragePct)
	fmt.Fprintf(&b, "   Timeline coverage:  %.1f%%\n", r.TimelineCoveragePct)
	fmt.Fprintf(&b, "   Original subtitles: %d\n", r.cueCount)
	fmt.Fprintf(&b, "   Generated chunks:   %d\n", r.chunkCount)

	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "\nERRORS (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "   - %s\n", e)
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "\nWARNINGS (%d):\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "   - %s\n", w)
		}
	}

	if len(r.MissingSubtitles) > 0 {
		fmt.Fprintf(&b, "\nMISSING SUBTITLES (%d):\n", len(r.MissingSubtitles))
		for i, rec := range r.MissingSubtitles {
			if i == missingRenderLimit {
				fmt.Fprintf(&b, "   ... and %d more\n", len(r.MissingSubtitles)-missingRenderLimit)
				break
			}
			fmt.Fprintf(&b, "   - %s - %s: %s\n", rec.Start, rec.End, truncateText(rec.Text, 50))
		}
	}

	if len(r.TimelineGaps) > 0 {
		fmt.Fprintf(&b, "\nTIMELINE GAPS (%d):\n", len(r.TimelineGaps))
		for _, g := range r.TimelineGaps {
			fmt.Fprintf(&b, "   - gap %s - %s (duration %.1fs)\n", g.Start, g.End, g.Duration)
		}
	}

	if len(r.OverlappingChunks) > 0 {
		fmt.Fprintf(&b, "\nOVERLAPPING CHUNKS (%d):\n", len(r.OverlappingChunks))
		for _, o := range r.OverlappingChunks {
			fmt.Fprintf(&b, "   - chunks %d & %d: %.1fs overlap\n", o.ChunkA, o.ChunkB, o.Duration)
		}
	}

	if len(r.DuplicateContent) > 0 {
		fmt.Fprintf(&b, "\nDUPLICATE CONTENT (%d):\n", len(r.DuplicateContent))
		for _, d := range r.DuplicateContent {
			fmt.Fprintf(&b, "   - chunks %d & %d: %.0f%% similarity\n", d.ChunkA, d.ChunkB, d.Similarity*100)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// truncateText shortens s to at most n runes, appending "..." when cut.
func truncateText(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
