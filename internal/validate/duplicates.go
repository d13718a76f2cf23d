package validate

import "github.com/katha-archive/katha/internal/transcript"

// DuplicatePair flags two chunks whose vocabularies are similar enough to
// suggest the LLM emitted the same content twice.
type DuplicatePair struct {
	ChunkA int
	ChunkB int

	// Similarity is the Jaccard ratio of the two chunks' word sets, in (0.5, 1].
	Similarity float64
}

// findDuplicates compares every unordered chunk pair and reports those whose
// word-set Jaccard similarity exceeds threshold. Pairs where either side has
// an empty vocabulary are skipped: no division by zero and no false positive
// on blank chunks.
//
// O(n^2) in chunk count. Transcripts produce tens to low hundreds of chunks,
// so this is not worth an index.
func findDuplicates(chunks []transcript.Chunk, threshold float64) []DuplicatePair {
	sets := make([]map[string]struct{}, len(chunks))
	for i, c := range chunks {
		sets[i] = tokenSet([]string{c.Text})
	}

	var pairs []DuplicatePair
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			a, b := sets[i], sets[j]
			if len(a) == 0 || len(b) == 0 {
				continue
			}

			intersection := 0
			for w := range a {
				if _, ok := b[w]; ok {
					intersection++
				}
			}
			union := len(a) + len(b) - intersection

			if ratio := float64(intersection) / float64(union); ratio > threshold {
				pairs = append(pairs, DuplicatePair{ChunkA: i, ChunkB: j, Similarity: ratio})
			}
		}
	}
	return pairs
}
