package vectorstore

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPayloadMarshalAddsBioFlags(t *testing.T) {
	p := Payload{
		OriginalText:   "On pilgrimage we walked to the river.",
		TranscriptName: "1998-sayla-morning",
		BiographicalExtractions: map[string][]string{
			"travel_experiences": {"walked to the river on pilgrimage"},
		},
	}

	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if doc["has_travel_experiences"] != true {
		t.Errorf("has_travel_experiences = %v, want true", doc["has_travel_experiences"])
	}
	if doc["has_books_read"] != false {
		t.Errorf("has_books_read = %v, want false", doc["has_books_read"])
	}

	// Every category gets a flag, even on a payload with no extractions.
	for _, cat := range BioCategories {
		if _, ok := doc["has_"+cat]; !ok {
			t.Errorf("missing flag has_%s", cat)
		}
	}
}

func TestPayloadRoundTripIgnoresFlags(t *testing.T) {
	p := Payload{
		OriginalText: "text",
		Category:     "Pravachan",
		BiographicalExtractions: map[string][]string{
			"books_read": {"the Atmasiddhi"},
		},
	}
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Payload
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Category != "Pravachan" || len(back.BiographicalExtractions["books_read"]) != 1 {
		t.Errorf("round trip lost fields: %+v", back)
	}
}

func TestPayloadHasHelpers(t *testing.T) {
	var empty Payload
	if empty.HasBio() || empty.HasEntities() {
		t.Error("zero payload should report no bio and no entities")
	}

	p := Payload{
		Entities:                map[string][]string{"people": {"Gurudev"}},
		BiographicalExtractions: map[string][]string{"legacy_impact": {}},
	}
	if !p.HasEntities() {
		t.Error("HasEntities() = false with one person present")
	}
	if p.HasBio() {
		t.Error("HasBio() = true with only an empty category")
	}
}

func TestBuildFilter(t *testing.T) {
	args := []any{"queryvec"}
	where := buildFilter(Filter{}, &args)
	if where != "" || len(args) != 1 {
		t.Fatalf("empty filter: where=%q args=%d", where, len(args))
	}

	args = []any{"queryvec"}
	where = buildFilter(Filter{
		TranscriptName: "1998-sayla-morning",
		Category:       "Pravachan",
		BioCategory:    "books_read",
	}, &args)

	if !strings.HasPrefix(where, "WHERE ") {
		t.Fatalf("where = %q", where)
	}
	for _, want := range []string{"transcript_name = $2", "payload->>'category' = $3", "payload->>$4 = 'true'"} {
		if !strings.Contains(where, want) {
			t.Errorf("where %q missing %q", where, want)
		}
	}
	if len(args) != 4 {
		t.Fatalf("got %d args, want 4", len(args))
	}
	if args[3] != "has_books_read" {
		t.Errorf("bio flag arg = %v, want has_books_read", args[3])
	}
}
