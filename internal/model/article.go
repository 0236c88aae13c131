package model

import (
	"strings"
	"time"
)

// Bundesland identifies one of the 16 German federal states.
type Bundesland string

const (
	BadenWuerttemberg     Bundesland = "baden-wuerttemberg"
	Bayern                Bundesland = "bayern"
	Berlin                Bundesland = "berlin"
	Brandenburg           Bundesland = "brandenburg"
	Bremen                Bundesland = "bremen"
	Hamburg               Bundesland = "hamburg"
	Hessen                Bundesland = "hessen"
	MecklenburgVorpommern Bundesland = "mecklenburg-vorpommern"
	Niedersachsen         Bundesland = "niedersachsen"
	NordrheinWestfalen    Bundesland = "nordrhein-westfalen"
	RheinlandPfalz        Bundesland = "rheinland-pfalz"
	Saarland              Bundesland = "saarland"
	Sachsen               Bundesland = "sachsen"
	SachsenAnhalt         Bundesland = "sachsen-anhalt"
	SchleswigHolstein     Bundesland = "schleswig-holstein"
	Thueringen            Bundesland = "thueringen"
)

// AllBundeslaender lists the 16 states in stable order. Chunk completion
// tracking and the live loop iterate this slice.
var AllBundeslaender = []Bundesland{
	BadenWuerttemberg, Bayern, Berlin, Brandenburg, Bremen, Hamburg,
	Hessen, MecklenburgVorpommern, Niedersachsen, NordrheinWestfalen,
	RheinlandPfalz, Saarland, Sachsen, SachsenAnhalt, SchleswigHolstein,
	Thueringen,
}

// ParseBundesland maps a state tag to its Bundesland, tolerating case and
// the common umlaut spellings.
func ParseBundesland(s string) (Bundesland, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("ü", "ue", "ä", "ae", "ö", "oe", "ß", "ss", " ", "-", "_", "-").Replace(norm)
	for _, b := range AllBundeslaender {
		if string(b) == norm {
			return b, true
		}
	}
	return "", false
}

// GermanMonths maps month number (1-12) to the lowercase German month name
// used in chunk data file names.
var GermanMonths = [13]string{"", "januar", "februar", "maerz", "april", "mai",
	"juni", "juli", "august", "september", "oktober", "november", "dezember"}

// Article is the raw output of a scraper. URL uniquely identifies a source
// article across all scrapers; articles are immutable once emitted.
type Article struct {
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	PublishedAt  time.Time  `json:"published_at"`
	City         string     `json:"city,omitempty"`
	Bundesland   Bundesland `json:"bundesland"`
	SourceAgency string     `json:"source_agency,omitempty"`
	AgencyCode   string     `json:"agency_code,omitempty"`

	// Hints carries optional scraper-specific fields (listing-page date,
	// department codes) that downstream stages may consult but not rely on.
	Hints map[string]string `json:"hints,omitempty"`

	// Grouping fields, filled in by the pre-filter.
	IncidentGroupID string    `json:"incident_group_id,omitempty"`
	GroupRole       GroupRole `json:"group_role,omitempty"`
}

// RemovedArticle is an article dropped by the pre-filter or classified as
// junk/feuerwehr by the model, tagged with the removal reason.
type RemovedArticle struct {
	Article
	RemovalReason string `json:"_removal_reason"`
}
