package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// GroupRole positions a record inside its incident group.
type GroupRole string

const (
	RolePrimary    GroupRole = "primary"
	RoleFollowUp   GroupRole = "follow_up"
	RoleUpdate     GroupRole = "update"
	RoleResolution GroupRole = "resolution"
	RoleRelated    GroupRole = "related"
)

// Record is the normalized row persisted to the external store. Writes are
// idempotent by ID.
type Record struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CleanTitle   string    `json:"clean_title,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	Body         string    `json:"body"`
	PublishedAt  time.Time `json:"published_at"`
	SourceURL    string    `json:"source_url"`
	SourceAgency string    `json:"source_agency,omitempty"`

	LocationText string   `json:"location_text,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Precision    string   `json:"precision,omitempty"`
	Bundesland   string   `json:"bundesland,omitempty"`
	City         string   `json:"city,omitempty"`

	Categories   []string `json:"categories,omitempty"`
	PKSCode      string   `json:"pks_code,omitempty"`
	PKSCategory  string   `json:"pks_category,omitempty"`
	CrimeSubType string   `json:"crime_sub_type,omitempty"`
	Confidence   float64  `json:"confidence,omitempty"`

	IncidentDate      string `json:"incident_date,omitempty"`
	IncidentTime      string `json:"incident_time,omitempty"`
	IncidentPrecision string `json:"incident_precision,omitempty"`
	IncidentEndDate   string `json:"incident_end_date,omitempty"`
	IncidentEndTime   string `json:"incident_end_time,omitempty"`

	WeaponType      string `json:"weapon_type,omitempty"`
	DrugType        string `json:"drug_type,omitempty"`
	VictimCount     *int   `json:"victim_count,omitempty"`
	VictimAge       string `json:"victim_age,omitempty"`
	VictimGender    string `json:"victim_gender,omitempty"`
	SuspectCount    *int   `json:"suspect_count,omitempty"`
	SuspectAge      string `json:"suspect_age,omitempty"`
	SuspectGender   string `json:"suspect_gender,omitempty"`
	Severity        string `json:"severity,omitempty"`
	Motive          string `json:"motive,omitempty"`
	DamageAmount    *int   `json:"damage_amount,omitempty"`
	DamagePrecision string `json:"damage_precision,omitempty"`

	IncidentGroupID string    `json:"incident_group_id,omitempty"`
	GroupRole       GroupRole `json:"group_role,omitempty"`
	PipelineRun     string    `json:"pipeline_run"`
	Classification  string    `json:"classification"`
}

// DeterministicID derives the record primary key from the identifying tuple.
// A re-run with the same pipeline-run tag upserts the same row; different
// tags coexist for A/B comparison.
func DeterministicID(url string, publishedAt time.Time, locationText, pksCode, pipelineRun string) string {
	input := fmt.Sprintf("%s:%s:%s:%s:%s",
		url, publishedAt.UTC().Format(time.RFC3339), locationText, pksCode, pipelineRun)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}
