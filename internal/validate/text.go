package validate

import (
	"strings"

	"github.com/katha-archive/katha/internal/transcript"
)

// normalizeText collapses runs of whitespace (including newlines) to single
// spaces, trims, and lowercases. Both sides of every text comparison go
// through this so that formatting differences between the subtitle file and
// the LLM output do not count against coverage.
func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// tokenSet splits normalised text on whitespace into a word set. Duplicates
// collapse, so the set measures vocabulary rather than verbatim content.
func tokenSet(texts []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range texts {
		for _, w := range strings.Fields(normalizeText(t)) {
			set[w] = struct{}{}
		}
	}
	return set
}

// analyzeText computes the percentage of the cue vocabulary that appears in
// the chunk vocabulary.
//
// This is a word-set measure, not a multiset one: repeated or reordered words
// are invisible to it. Duplication is caught separately by the duplicate
// detector; reordering is a known blind spot. An empty cue vocabulary yields
// 0 rather than a division by zero; the report assembler turns that into a
// coverage error.
func analyzeText(cues []transcript.Cue, chunks []transcript.Chunk) float64 {
	cueTexts := make([]string, len(cues))
	for i, c := range cues {
		cueTexts[i] = c.Text
	}
	chunkTexts := make([]string, len(chunks))
	for i, c := range chunks {
		chunkTexts[i] = c.Text
	}

	cueWords := tokenSet(cueTexts)
	if len(cueWords) == 0 {
		return 0
	}
	chunkWords := tokenSet(chunkTexts)

	common := 0
	for w := range cueWords {
		if _, ok := chunkWords[w]; ok {
			common++
		}
	}
	return float64(common) / float64(len(cueWords)) * 100
}
