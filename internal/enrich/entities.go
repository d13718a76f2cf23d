package enrich

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/katha-archive/katha/pkg/provider/llm"
)

// aliasThreshold is the Jaro-Winkler similarity above which two extracted
// names within a category are treated as the same entity. Transcription
// variance ("Saubhagbhai" vs "Saubhagbhai Shah" vs "Sobhagbhai") sits well
// above it; genuinely distinct names sit below.
const aliasThreshold = 0.92

const entitySystemPrompt = "You are an expert at extracting named entities from spiritual discourse transcripts."

// EntityExtractor pulls categorised entity mentions out of chunk text.
type EntityExtractor struct {
	llm llm.Provider
}

// NewEntityExtractor creates an EntityExtractor backed by provider.
func NewEntityExtractor(provider llm.Provider) *EntityExtractor {
	return &EntityExtractor{llm: provider}
}

// Extract returns the entities mentioned in text, keyed by the categories in
// EntityCategories. Categories the model invents are discarded; names that
// are near-duplicates within a category are merged onto their longest form.
func (e *EntityExtractor) Extract(ctx context.Context, text string) (map[string][]string, error) {
	if strings.TrimSpace(text) == "" {
		return map[string][]string{}, nil
	}

	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: entitySystemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: buildEntityPrompt(text)},
		},
		Temperature: 0,
		MaxTokens:   2048,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("enrich: extract entities: %w", err)
	}

	var raw map[string][]string
	if err := extractJSON(resp.Content, &raw); err != nil {
		return nil, fmt.Errorf("enrich: extract entities: %w", err)
	}

	result := make(map[string][]string, len(EntityCategories))
	for category := range EntityCategories {
		result[category] = MergeAliases(raw[category])
	}
	return result, nil
}

func buildEntityPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("Extract every entity mentioned in the transcript chunk below into these categories:\n\n")

	// Deterministic category order keeps prompts stable across runs.
	categories := make([]string, 0, len(EntityCategories))
	for c := range EntityCategories {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(&sb, "- %q: %s\n", c, EntityCategories[c])
	}

	sb.WriteString("\nRespond with a single JSON object mapping each category to an array of strings. Use [] for categories with no mentions.\n\nChunk:\n")
	sb.WriteString(text)
	return sb.String()
}

// MergeAliases deduplicates near-identical names, keeping the longest
// spelling of each group as the canonical form. Comparison is
// case-insensitive Jaro-Winkler over the full strings and over their
// space-stripped forms, so "Param Krupalu Dev" and "Paramkrupaludev" merge.
func MergeAliases(names []string) []string {
	var cleaned []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	if len(cleaned) == 0 {
		return []string{}
	}

	// Longest first, so every later name merges into an equal-or-longer
	// canonical form.
	sort.SliceStable(cleaned, func(i, j int) bool {
		return len(cleaned[i]) > len(cleaned[j])
	})

	var canonical []string
	for _, name := range cleaned {
		merged := false
		for _, existing := range canonical {
			if sameEntity(name, existing) {
				merged = true
				break
			}
		}
		if !merged {
			canonical = append(canonical, name)
		}
	}

	sort.Strings(canonical)
	return canonical
}

func sameEntity(a, b string) bool {
	al, bl := strings.ToLower(a), strings.ToLower(b)
	if al == bl {
		return true
	}
	if matchr.JaroWinkler(al, bl, false) >= aliasThreshold {
		return true
	}
	ac := strings.ReplaceAll(al, " ", "")
	bc := strings.ReplaceAll(bl, " ", "")
	return matchr.JaroWinkler(ac, bc, false) >= aliasThreshold
}
