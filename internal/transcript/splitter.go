package transcript

import "strings"

// Splitter window defaults, in words. Tuned for embedding models with
// ~512-token windows: 400 words leaves headroom for metadata prefixes.
const (
	DefaultChunkSize    = 400
	DefaultChunkOverlap = 75
)

// SplitterConfig controls the fixed-window fallback chunker. The zero value
// is replaced with the defaults above.
type SplitterConfig struct {
	// ChunkSize is the target word count per chunk.
	ChunkSize int
	// ChunkOverlap is the number of words shared between consecutive chunks.
	// Must be smaller than ChunkSize.
	ChunkOverlap int
}

func (c SplitterConfig) orDefaults() SplitterConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = DefaultChunkOverlap
		if c.ChunkOverlap >= c.ChunkSize {
			c.ChunkOverlap = c.ChunkSize / 4
		}
	}
	return c
}

// splitText slices a block of text into fixed-size word windows with
// overlap. Text at most ChunkSize words long comes back as a single chunk.
// SplitCues uses it to break up cues that are individually larger than the
// window.
func splitText(text string, cfg SplitterConfig) []string {
	cfg = cfg.orDefaults()

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= cfg.ChunkSize {
		return []string{strings.Join(words, " ")}
	}

	step := cfg.ChunkSize - cfg.ChunkOverlap
	var chunks []string
	for i := 0; i < len(words); i += step {
		end := i + cfg.ChunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

// SplitCues groups cues into chunks of roughly ChunkSize words, preserving
// timestamps: each chunk spans from its first cue's start to its last cue's
// end. Cues smaller than ChunkSize are never split mid-cue, so chunks may
// overshoot ChunkSize by up to one cue's worth of words; a cue larger than
// ChunkSize is word-windowed with every piece spanning the cue's own
// timestamps. Consecutive chunks share the trailing cues of
// the previous chunk up to ChunkOverlap words, so timeline coverage stays
// contiguous even when a boundary lands mid-sentence.
func SplitCues(cues []Cue, cfg SplitterConfig) []Chunk {
	cfg = cfg.orDefaults()

	if len(cues) == 0 {
		return nil
	}

	var (
		chunks  []Chunk
		window  []Cue
		wordCnt int
	)

	finalize := func() {
		if len(window) == 0 {
			return
		}
		texts := make([]string, len(window))
		for i, c := range window {
			texts[i] = c.Text
		}
		chunks = append(chunks, Chunk{
			Start: window[0].Start,
			End:   window[len(window)-1].End,
			Text:  strings.Join(texts, " "),
		})
	}

	carryOverlap := func() {
		var (
			kept  []Cue
			words int
		)
		// Walk back from the end of the window until the overlap budget
		// is spent. With overlap 0 nothing carries over.
		for i := len(window) - 1; i >= 0; i-- {
			n := len(strings.Fields(window[i].Text))
			if words+n > cfg.ChunkOverlap {
				break
			}
			kept = append([]Cue{window[i]}, kept...)
			words += n
		}
		window = kept
		wordCnt = words
	}

	for _, cue := range cues {
		n := len(strings.Fields(cue.Text))

		// A cue bigger than the whole window (some files carry an entire
		// talk in one cue) gets its text word-windowed instead. Every piece
		// keeps the cue's timestamps, so timeline coverage is unaffected.
		if n > cfg.ChunkSize {
			finalize()
			window, wordCnt = nil, 0
			for _, part := range splitText(cue.Text, cfg) {
				chunks = append(chunks, Chunk{Start: cue.Start, End: cue.End, Text: part})
			}
			continue
		}

		window = append(window, cue)
		wordCnt += n

		if wordCnt >= cfg.ChunkSize {
			finalize()
			carryOverlap()
		}
	}

	// Flush the tail, unless it is purely overlap already emitted.
	if len(window) > 0 && (len(chunks) == 0 || chunks[len(chunks)-1].End != window[len(window)-1].End) {
		finalize()
	}

	return chunks
}
