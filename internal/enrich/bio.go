package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/katha-archive/katha/pkg/provider/llm"
	"github.com/katha-archive/katha/pkg/vectorstore"
)

const bioSystemPrompt = "You are an expert at extracting specific biographical information about Gurudev from transcripts, " +
	"outputting a JSON object with predefined keys like early_life_childhood, education_learning, etc. " +
	"Only include verbatim quotes. If no information for a category, use an empty list []."

// BioExtractor pulls verbatim biographical quotes out of chunk text, filed
// under the fixed vectorstore.BioCategories keys. A fine-tuned model is the
// intended backend, but any llm.Provider works.
type BioExtractor struct {
	llm llm.Provider
}

// NewBioExtractor creates a BioExtractor backed by provider.
func NewBioExtractor(provider llm.Provider) *BioExtractor {
	return &BioExtractor{llm: provider}
}

// Extract returns the biographical quotes found in text, keyed by category.
// Keys outside vectorstore.BioCategories are discarded, so a drifting model
// cannot grow the payload schema. Empty text yields an empty map.
func (b *BioExtractor) Extract(ctx context.Context, text string) (map[string][]string, error) {
	if strings.TrimSpace(text) == "" {
		return map[string][]string{}, nil
	}

	resp, err := b.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: bioSystemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf("Transcript Chunk: %q", text)},
		},
		Temperature: 0,
		MaxTokens:   4096,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("enrich: extract bio: %w", err)
	}

	var raw map[string][]string
	if err := extractJSON(resp.Content, &raw); err != nil {
		return nil, fmt.Errorf("enrich: extract bio: %w", err)
	}

	result := make(map[string][]string, len(raw))
	for _, cat := range vectorstore.BioCategories {
		if quotes := raw[cat]; len(quotes) > 0 {
			result[cat] = quotes
		}
	}
	return result, nil
}
