package vectorstore

import "encoding/json"

// BioCategories is the fixed set of biographical extraction keys. Each chunk
// payload carries a has_<category> flag per key so stored chunks can be
// filtered to those containing material for a given category without
// unpacking the extraction maps.
var BioCategories = []string{
	"early_life_childhood",
	"education_learning",
	"spiritual_journey_influences",
	"professional_social_contributions",
	"travel_experiences",
	"meetings_notable_personalities",
	"hobbies_interests",
	"food_preferences_lifestyle",
	"family_personal_relationships",
	"health_wellbeing",
	"life_philosophy_core_values",
	"major_life_events",
	"legacy_impact",
	"miscellaneous_personal_details",
	"spiritual_training_discipleship",
	"ashram_infrastructure_development",
	"experiences_emotions",
	"organisation_events_milestones",
	"prophecy_future_revelations",
	"people_mentions_guidance",
	"people_mentions_praises",
	"people_mentions_general",
	"people_mentions_callouts",
	"pkd_relationship",
	"pkd_incidents",
	"pkd_stories",
	"pkd_references",
	"books_read",
	"books_recommended",
	"books_contributed_to",
	"books_references_general",
}

// Payload is the per-chunk metadata document stored in the payload JSONB
// column. It travels alongside the embedding and is returned verbatim by
// search and listing operations.
type Payload struct {
	// OriginalText is the chunk text exactly as produced by enrichment,
	// before any embedding-side preprocessing.
	OriginalText string `json:"original_text"`

	// Timestamp is the human-readable span, "start - end", in the source
	// transcript's own timestamp format.
	Timestamp string `json:"timestamp"`

	TranscriptName string `json:"transcript_name"`

	// Date is the recording date in YYYY-MM-DD form.
	Date string `json:"date"`

	Category string `json:"category"`
	Location string `json:"location"`
	Speaker  string `json:"speaker"`

	// EventName and EventCode identify the specific recorded event within
	// a series, when known.
	EventName string `json:"event_name"`
	EventCode string `json:"event_code"`

	// MiscTags are operator-supplied tags attached at upload time.
	MiscTags []string `json:"misc_tags"`

	// Summary and Tags come from the LLM per chunk; GlobalTags apply to the
	// whole transcript and are copied onto every chunk for filterability.
	Summary    string   `json:"summary"`
	Tags       []string `json:"tags"`
	GlobalTags []string `json:"global_tags"`

	// Entities maps entity category (people, places, ...) to the names
	// extracted from this chunk.
	Entities map[string][]string `json:"entities"`

	// BiographicalExtractions maps a BioCategories key to the biographical
	// statements extracted for it.
	BiographicalExtractions map[string][]string `json:"biographical_extractions"`
}

// MarshalJSON emits the payload with one has_<category> boolean per
// BioCategories entry, true when that category holds at least one
// extraction. The flags are derived, never stored on the struct, so they can
// not drift from the extraction maps.
func (p Payload) MarshalJSON() ([]byte, error) {
	type alias Payload
	base, err := json.Marshal(alias(p))
	if err != nil {
		return nil, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(base, &doc); err != nil {
		return nil, err
	}
	for _, cat := range BioCategories {
		val := json.RawMessage("false")
		if len(p.BiographicalExtractions[cat]) > 0 {
			val = json.RawMessage("true")
		}
		doc["has_"+cat] = val
	}
	return json.Marshal(doc)
}

// HasBio reports whether any biographical category holds extractions.
func (p Payload) HasBio() bool {
	for _, vals := range p.BiographicalExtractions {
		if len(vals) > 0 {
			return true
		}
	}
	return false
}

// HasEntities reports whether any entity category holds names.
func (p Payload) HasEntities() bool {
	for _, vals := range p.Entities {
		if len(vals) > 0 {
			return true
		}
	}
	return false
}
