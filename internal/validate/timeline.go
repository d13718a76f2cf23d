package validate

import (
	"fmt"
	"sort"

	"github.com/katha-archive/katha/internal/transcript"
)

// CoverageRecord tracks whether a single cue's time span is touched by at
// least one chunk.
type CoverageRecord struct {
	// CueIndex is the cue's position in the original input order.
	CueIndex int

	Start transcript.Timestamp
	End   transcript.Timestamp
	Text  string

	// Covered is true once any chunk's interval strictly overlaps the cue's.
	Covered bool
}

// Gap is a span between two time-adjacent chunks that exceeds the gap
// tolerance and is therefore covered by neither.
type Gap struct {
	// AfterChunk and BeforeChunk are the input indices of the chunks
	// bounding the gap (earlier chunk first, in start-time order).
	AfterChunk  int
	BeforeChunk int

	Start    transcript.Timestamp
	End      transcript.Timestamp
	Duration float64
}

// Overlap is a span claimed by two time-adjacent chunks simultaneously.
type Overlap struct {
	ChunkA int
	ChunkB int

	Start    transcript.Timestamp
	End      transcript.Timestamp
	Duration float64
}

// span is a parsed cue or chunk interval tagged with its input position.
type span struct {
	index int
	start transcript.Timestamp
	end   transcript.Timestamp
	text  string
}

// parseCueSpans normalises all cue timestamps. The index of the offending cue
// is included when a timestamp cannot be parsed.
func parseCueSpans(cues []transcript.Cue) ([]span, error) {
	spans := make([]span, len(cues))
	for i, c := range cues {
		start, err := transcript.ParseTimestamp(c.Start)
		if err != nil {
			return nil, fmt.Errorf("validate: cue %d start: %w", i, err)
		}
		end, err := transcript.ParseTimestamp(c.End)
		if err != nil {
			return nil, fmt.Errorf("validate: cue %d end: %w", i, err)
		}
		spans[i] = span{index: i, start: start, end: end, text: c.Text}
	}
	return spans, nil
}

func parseChunkSpans(chunks []transcript.Chunk) ([]span, error) {
	spans := make([]span, len(chunks))
	for i, c := range chunks {
		start, err := transcript.ParseTimestamp(c.Start)
		if err != nil {
			return nil, fmt.Errorf("validate: chunk %d start: %w", i, err)
		}
		end, err := transcript.ParseTimestamp(c.End)
		if err != nil {
			return nil, fmt.Errorf("validate: chunk %d end: %w", i, err)
		}
		spans[i] = span{index: i, start: start, end: end, text: c.Text}
	}
	return spans, nil
}

// sortByStart orders spans by start time ascending. The sort is stable and
// spans carry their input index, so equal start times keep input order and
// the result is deterministic.
func sortByStart(spans []span) {
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].start < spans[j].start
	})
}

// timelineResult bundles everything the timeline analysis produces.
type timelineResult struct {
	records  []CoverageRecord
	gaps     []Gap
	overlaps []Overlap
	pct      float64
}

// analyzeTimeline computes interval coverage of cues by chunks, plus gaps and
// overlaps between time-adjacent chunks.
//
// Coverage uses strict interval overlap (cue.start < chunk.end AND
// cue.end > chunk.start). Overlap durations only accumulate when positive so
// that degenerate spans (end < start) cannot subtract from the total. The
// pairwise scan is O(cues x chunks), which is fine at transcript scale
// (low thousands of cues).
func analyzeTimeline(cueSpans, chunkSpans []span, gapTolerance float64) timelineResult {
	cues := make([]span, len(cueSpans))
	copy(cues, cueSpans)
	chunks := make([]span, len(chunkSpans))
	copy(chunks, chunkSpans)
	sortByStart(cues)
	sortByStart(chunks)

	records := make([]CoverageRecord, len(cues))
	for i, c := range cues {
		records[i] = CoverageRecord{
			CueIndex: c.index,
			Start:    c.start,
			End:      c.end,
			Text:     c.text,
		}
	}

	var covered float64
	for _, chunk := range chunks {
		for i := range records {
			rec := &records[i]
			if rec.Start < chunk.end && rec.End > chunk.start {
				rec.Covered = true
				overlapStart := max(rec.Start, chunk.start)
				overlapEnd := min(rec.End, chunk.end)
				if overlapEnd > overlapStart {
					covered += float64(overlapEnd - overlapStart)
				}
			}
		}
	}

	res := timelineResult{records: records}

	total := totalCueDuration(cues)
	if total > 0 {
		res.pct = covered / total * 100
	}

	// Gap and overlap detection needs at least two chunks; with fewer the
	// loops below simply do not run.
	for i := 0; i+1 < len(chunks); i++ {
		cur, next := chunks[i], chunks[i+1]

		if float64(next.start-cur.end) > gapTolerance {
			res.gaps = append(res.gaps, Gap{
				AfterChunk:  cur.index,
				BeforeChunk: next.index,
				Start:       cur.end,
				End:         next.start,
				Duration:    float64(next.start - cur.end),
			})
		}

		if next.start < cur.end {
			res.overlaps = append(res.overlaps, Overlap{
				ChunkA:   cur.index,
				ChunkB:   next.index,
				Start:    next.start,
				End:      cur.end,
				Duration: float64(cur.end - next.start),
			})
		}
	}

	return res
}

// totalCueDuration is the span from the earliest cue start to the latest cue
// end. Returns 0 for an empty cue list.
func totalCueDuration(cues []span) float64 {
	if len(cues) == 0 {
		return 0
	}
	minStart := cues[0].start
	maxEnd := cues[0].end
	for _, c := range cues[1:] {
		if c.start < minStart {
			minStart = c.start
		}
		if c.end > maxEnd {
			maxEnd = c.end
		}
	}
	return float64(maxEnd - minStart)
}
