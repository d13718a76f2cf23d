package enrich

// SatsangCategories are the recognised discourse categories a transcript can
// be filed under at upload time.
var SatsangCategories = []string{
	"Pravachan",
	"Udgosh",
	"Meetings",
	"Prasangik Bodh",
	"Ashirvachan",
	"Experiences",
	"Miscellaneous",
}

// Locations are the recognised recording locations.
var Locations = []string{
	"Sayla", "Surat", "Vadodara", "Ahmedabad", "Mumbai", "Rajkot",
	"Bhavnagar", "Morbi", "Junagadh", "Jamnagar", "Gandhinagar",
	"Nadiad", "Anand", "Bharuch", "Navsari", "Vapi",
}

// Speakers are the recognised speakers.
var Speakers = []string{"Gurudev"}

// EntityCategories maps each entity extraction category to the description
// given to the model. The keys define the only categories accepted back from
// an extraction response; anything else the model invents is discarded.
var EntityCategories = map[string]string{
	"people":        "Names of individuals mentioned (spiritual teachers, devotees, historical figures, etc.)",
	"places":        "Geographical locations, cities, ashrams, sacred sites, countries",
	"concepts":      "Spiritual concepts, philosophical ideas, states of consciousness, practices",
	"scriptures":    "Religious texts, holy books, chapters, verses, spiritual literature",
	"dates":         "Specific dates, time periods, festivals, ceremonies, events",
	"organizations": "Spiritual organizations, ashrams, institutions, groups",
	"events":        "Spiritual gatherings, ceremonies, festivals, satsangs, conferences",
	"objects":       "Sacred objects, ritual items, symbols, artifacts, tools",
}

// IsKnownCategory reports whether name is a recognised satsang category.
func IsKnownCategory(name string) bool {
	for _, c := range SatsangCategories {
		if c == name {
			return true
		}
	}
	return false
}
