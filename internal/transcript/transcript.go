// Package transcript defines the cue and chunk types shared across the Katha
// pipeline and provides parsers for the subtitle formats Katha ingests
// (SRT and WebVTT) plus a fixed-window splitter used when no LLM chunker is
// available.
//
// Timestamps travel as free-form strings on cues and chunks. Subtitle files
// are loose about format (comma vs period decimal separators, optional hours
// field) and the LLM echoes timestamps back in whatever shape it likes;
// [ParseTimestamp] is the single normalisation entry point every consumer
// goes through.
package transcript

// Cue is one original subtitle entry: a time span and the text spoken in it.
// Cues are immutable once parsed.
type Cue struct {
	// Start and End are free-form timestamp strings as they appeared in the
	// source file (e.g. "0:01:05,500" or "00:01:05.500").
	Start string
	End   string

	// Text is the spoken content, arbitrary UTF-8.
	Text string
}

// Chunk is one candidate segment covering a contiguous run of cues. Chunks
// are produced by the LLM chunker (or the fallback window splitter) and carry
// optional enrichment metadata that plays no role in coverage validation.
type Chunk struct {
	Start string
	End   string
	Text  string

	// Summary is a short LLM-written abstract of the chunk. Optional.
	Summary string

	// Tags are topical labels assigned by the chunker. Optional.
	Tags []string
}
