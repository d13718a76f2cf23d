package enrich_test

import (
	"context"
	"testing"

	"github.com/katha-archive/katha/internal/enrich"
	"github.com/katha-archive/katha/pkg/provider/llm/mock"
)

func TestBioExtractor(t *testing.T) {
	provider := &mock.Provider{
		Response: `{
			"early_life_childhood": ["I grew up in a small village near Sayla."],
			"books_read": [],
			"favourite_colour": ["saffron"]
		}`,
	}

	extractor := enrich.NewBioExtractor(provider)
	got, err := extractor.Extract(context.Background(), "I grew up in a small village near Sayla.")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if len(got["early_life_childhood"]) != 1 {
		t.Errorf("got %v", got)
	}
	if _, ok := got["books_read"]; ok {
		t.Error("empty categories should be omitted")
	}
	if _, ok := got["favourite_colour"]; ok {
		t.Error("unknown category should be discarded")
	}
}

func TestBioExtractorEmptyText(t *testing.T) {
	provider := &mock.Provider{}
	extractor := enrich.NewBioExtractor(provider)

	got, err := extractor.Extract(context.Background(), "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty map", got)
	}
	if provider.CallCount() != 0 {
		t.Error("empty text should not reach the model")
	}
}

func TestBioExtractorTruncatedResponse(t *testing.T) {
	provider := &mock.Provider{
		Response: `{"books_read": ["the Atmasiddhi"], "travel_experiences": ["we walked to`,
	}

	extractor := enrich.NewBioExtractor(provider)
	got, err := extractor.Extract(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got["books_read"]) != 1 {
		t.Errorf("got %v, want books_read recovered", got)
	}
}
