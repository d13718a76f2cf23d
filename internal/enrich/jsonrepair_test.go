package enrich

import "testing"

func TestExtractJSONClean(t *testing.T) {
	var out map[string][]string
	if err := extractJSON(`{"people": ["Gurudev"]}`, &out); err != nil {
		t.Fatalf("extractJSON: %v", err)
	}
	if len(out["people"]) != 1 {
		t.Fatalf("got %v", out)
	}
}

func TestExtractJSONFenced(t *testing.T) {
	var out map[string][]string
	raw := "```json\n{\"people\": [\"Gurudev\"]}\n```"
	if err := extractJSON(raw, &out); err != nil {
		t.Fatalf("extractJSON: %v", err)
	}
	if len(out["people"]) != 1 {
		t.Fatalf("got %v", out)
	}
}

func TestExtractJSONSurroundingProse(t *testing.T) {
	var out map[string][]string
	raw := `Here is the extraction: {"people": ["Gurudev"]} hope that helps!`
	if err := extractJSON(raw, &out); err != nil {
		t.Fatalf("extractJSON: %v", err)
	}
	if len(out["people"]) != 1 {
		t.Fatalf("got %v", out)
	}
}

func TestExtractJSONUnterminatedString(t *testing.T) {
	var out map[string][]string
	raw := `{"early_life_childhood": ["quote 1", "quote 2`
	if err := extractJSON(raw, &out); err != nil {
		t.Fatalf("extractJSON: %v", err)
	}
	if len(out["early_life_childhood"]) == 0 {
		t.Fatalf("got %v, want at least quote 1 recovered", out)
	}
}

func TestExtractJSONTruncatedMidObject(t *testing.T) {
	// A complete first key followed by a truncated second one: the repair
	// keeps the complete part.
	var out map[string][]string
	raw := `{"books_read": ["the Atmasiddhi"], "travel_experiences": ["walked to`
	if err := extractJSON(raw, &out); err != nil {
		t.Fatalf("extractJSON: %v", err)
	}
	if len(out["books_read"]) != 1 {
		t.Fatalf("got %v, want books_read preserved", out)
	}
}

func TestExtractJSONNoObject(t *testing.T) {
	var out map[string]any
	if err := extractJSON("the model refused to answer", &out); err == nil {
		t.Fatal("expected error for response without JSON")
	}
}
