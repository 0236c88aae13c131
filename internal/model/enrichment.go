package model

import "encoding/json"

// Classification is the model's verdict for one incident inside an article.
type Classification string

const (
	ClassificationCrime     Classification = "crime"
	ClassificationJunk      Classification = "junk"
	ClassificationFeuerwehr Classification = "feuerwehr"
	ClassificationUpdate    Classification = "update"
)

// TimePrecision qualifies an extracted incident time.
type TimePrecision string

const (
	TimeExact       TimePrecision = "exact"
	TimeApproximate TimePrecision = "approximate"
	TimeUnknown     TimePrecision = "unknown"
)

// Location holds the extracted and geocoded incident location.
type Location struct {
	Street       string     `json:"street,omitempty"`
	HouseNumber  string     `json:"house_number,omitempty"`
	District     string     `json:"district,omitempty"`
	City         string     `json:"city,omitempty"`
	LocationHint string     `json:"location_hint,omitempty"`
	CrossStreet  string     `json:"cross_street,omitempty"`
	Confidence   float64    `json:"confidence,omitempty"`
	Lat          *float64   `json:"lat,omitempty"`
	Lon          *float64   `json:"lon,omitempty"`
	Precision    string     `json:"precision,omitempty"`
	Bundesland   Bundesland `json:"bundesland,omitempty"`
}

// IncidentTime is the extracted time of the incident (not publication).
type IncidentTime struct {
	Date      string        `json:"date,omitempty"` // YYYY-MM-DD
	Time      string        `json:"time,omitempty"` // HH:MM
	Precision TimePrecision `json:"precision,omitempty"`
	EndDate   string        `json:"end_date,omitempty"`
	EndTime   string        `json:"end_time,omitempty"`
}

// Crime holds the PKS classification of the incident.
type Crime struct {
	PKSCode     string  `json:"pks_code,omitempty"` // 4-digit PKS key
	PKSCategory string  `json:"pks_category,omitempty"`
	SubType     string  `json:"sub_type,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// Party describes victims or suspects as reported.
type Party struct {
	Count       int    `json:"count,omitempty"`
	Age         string `json:"age,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Origin      string `json:"origin,omitempty"`
	Description string `json:"description,omitempty"`
}

// Details carries the incident-level extraction fields.
type Details struct {
	WeaponType      string `json:"weapon_type,omitempty"`
	DrugType        string `json:"drug_type,omitempty"`
	Victim          *Party `json:"victim,omitempty"`
	Suspect         *Party `json:"suspect,omitempty"`
	Severity        string `json:"severity,omitempty"`
	Motive          string `json:"motive,omitempty"`
	DamageAmount    *int   `json:"damage_amount,omitempty"`
	DamagePrecision string `json:"damage_estimate_precision,omitempty"`
}

// Enrichment is the LLM output for one incident inside an article. An
// article may produce zero, one, or several enrichments.
//
// The Classification field is the discriminator: junk and feuerwehr carry
// only Reason, crime and update carry the full extraction.
type Enrichment struct {
	Classification Classification `json:"_classification"`
	Reason         string         `json:"reason,omitempty"`

	CleanTitle   string        `json:"clean_title,omitempty"`
	Summary      string        `json:"summary,omitempty"`
	Location     *Location     `json:"location,omitempty"`
	IncidentTime *IncidentTime `json:"incident_time,omitempty"`
	Crime        *Crime        `json:"crime,omitempty"`
	Details      *Details      `json:"details,omitempty"`
	IsUpdate     bool          `json:"is_update,omitempty"`
	UpdateType   string        `json:"update_type,omitempty"`
}

// IsRemoval reports whether this enrichment removes its article from the
// pipeline rather than producing a record.
func (e *Enrichment) IsRemoval() bool {
	switch e.Classification {
	case ClassificationJunk, ClassificationFeuerwehr:
		return true
	case ClassificationUpdate:
		// An update with neither location nor crime fields carries nothing
		// worth persisting.
		return e.Location == nil && e.Crime == nil
	}
	return false
}

// EnrichedArticle joins an article with one of its enrichments; this is the
// unit handed to the transformer.
type EnrichedArticle struct {
	Article    Article    `json:"article"`
	Enrichment Enrichment `json:"enrichment"`
}

// DecodeCachedEnrichments parses a cached enrichment list. Legacy cache
// entries predate the _classification discriminator: an object that has
// extraction fields but no discriminator is read as a crime enrichment, a
// bare {reason} object as junk.
func DecodeCachedEnrichments(raw json.RawMessage) ([]Enrichment, error) {
	var list []Enrichment
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].Classification != "" {
			continue
		}
		if list[i].Crime != nil || list[i].Location != nil || list[i].CleanTitle != "" {
			list[i].Classification = ClassificationCrime
		} else {
			list[i].Classification = ClassificationJunk
		}
	}
	return list, nil
}
