// Package transform turns enriched articles into normalized records:
// enum and numeric normalization, timestamp sanitizing, PKS category
// mapping, deterministic IDs and in-batch dedup.
package transform

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/geocode"
	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
	"github.com/blaulichtkarte/blaulicht-cli/internal/pks"
)

// Allowed value sets for the enumerated detail fields. Out-of-set values
// are dropped rather than guessed.
var (
	weaponTypes = set("knife", "firearm", "blunt_object", "explosive",
		"pepper_spray", "vehicle", "axe", "other", "none")
	drugTypes = set("cannabis", "cocaine", "heroin", "amphetamine",
		"methamphetamine", "ecstasy", "synthetic", "other")
	severities = set("minor", "moderate", "severe", "fatal")
	motives    = set("financial", "domestic", "political", "hate_crime",
		"drug_related", "conflict", "jealousy", "revenge", "unknown")
	genders          = set("male", "female", "diverse", "mixed", "unknown")
	timePrecisions   = set("exact", "approximate", "unknown")
	damagePrecisions = set("exact", "estimated", "unknown")
)

func set(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

var (
	dateShape = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeShape = regexp.MustCompile(`^\d{1,2}:\d{2}(?::\d{2})?$`)
)

// Records converts a batch of enriched articles, deduplicating by ID
// within the batch.
func Records(enriched []model.EnrichedArticle, runTag string) []model.Record {
	seen := make(map[string]struct{}, len(enriched))
	records := make([]model.Record, 0, len(enriched))

	for _, ea := range enriched {
		rec := Record(ea, runTag)
		if _, dup := seen[rec.ID]; dup {
			zap.L().Debug("transform: dropping in-batch duplicate",
				zap.String("id", rec.ID), zap.String("url", ea.Article.URL))
			continue
		}
		seen[rec.ID] = struct{}{}
		records = append(records, rec)
	}
	return records
}

// Record normalizes one enrichment into its store row.
func Record(ea model.EnrichedArticle, runTag string) model.Record {
	a, e := ea.Article, ea.Enrichment

	rec := model.Record{
		Title:           a.Title,
		CleanTitle:      e.CleanTitle,
		Summary:         e.Summary,
		Body:            a.Body,
		PublishedAt:     a.PublishedAt,
		SourceURL:       a.URL,
		SourceAgency:    a.SourceAgency,
		Bundesland:      string(a.Bundesland),
		City:            a.City,
		IncidentGroupID: a.IncidentGroupID,
		GroupRole:       a.GroupRole,
		PipelineRun:     runTag,
		Classification:  string(e.Classification),
	}

	if loc := e.Location; loc != nil {
		rec.LocationText = locationText(loc)
		rec.Precision = loc.Precision
		if loc.City != "" {
			rec.City = loc.City
		}
		if loc.Bundesland != "" {
			rec.Bundesland = string(loc.Bundesland)
		}
		// Coordinates outside Germany keep their location text but are
		// never persisted as points on the map.
		if loc.Precision != geocode.PrecisionOutsideGermany {
			rec.Latitude = loc.Lat
			rec.Longitude = loc.Lon
		}
	}

	if c := e.Crime; c != nil {
		if pks.IsValidCode(c.PKSCode) {
			rec.PKSCode = c.PKSCode
		}
		rec.PKSCategory = pks.Category(rec.PKSCode, c.PKSCategory)
		rec.CrimeSubType = c.SubType
		rec.Confidence = clampConfidence(c.Confidence)
		rec.Categories = []string{rec.PKSCategory}
	}

	if it := e.IncidentTime; it != nil {
		rec.IncidentDate = sanitizeDate(it.Date)
		rec.IncidentTime = sanitizeTime(it.Time, rec.IncidentDate != "")
		rec.IncidentPrecision = inSet(string(it.Precision), timePrecisions)
		rec.IncidentEndDate = sanitizeDate(it.EndDate)
		rec.IncidentEndTime = sanitizeTime(it.EndTime, false)
	}

	if d := e.Details; d != nil {
		rec.WeaponType = inSet(d.WeaponType, weaponTypes)
		rec.DrugType = inSet(d.DrugType, drugTypes)
		rec.Severity = inSet(d.Severity, severities)
		rec.Motive = inSet(d.Motive, motives)
		rec.DamageAmount = nonNegative(d.DamageAmount)
		rec.DamagePrecision = inSet(d.DamagePrecision, damagePrecisions)
		if v := d.Victim; v != nil {
			rec.VictimCount = nonNegativeInt(v.Count)
			rec.VictimAge = v.Age
			rec.VictimGender = inSet(v.Gender, genders)
		}
		if s := d.Suspect; s != nil {
			rec.SuspectCount = nonNegativeInt(s.Count)
			rec.SuspectAge = s.Age
			rec.SuspectGender = inSet(s.Gender, genders)
		}
	}

	rec.ID = model.DeterministicID(rec.SourceURL, rec.PublishedAt, rec.LocationText, rec.PKSCode, runTag)
	return rec
}

// locationText renders the human-readable location the map shows and the
// deterministic ID hashes.
func locationText(loc *model.Location) string {
	q := geocode.Query{
		Street:       loc.Street,
		HouseNumber:  loc.HouseNumber,
		District:     loc.District,
		City:         loc.City,
		LocationHint: loc.LocationHint,
		CrossStreet:  loc.CrossStreet,
	}
	addr := geocode.BuildAddress(q)
	return strings.TrimSuffix(addr, ", Germany")
}

// inSet lowercases v and keeps it only when the allowed set contains it.
func inSet(v string, allowed map[string]struct{}) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if _, ok := allowed[v]; ok {
		return v
	}
	return ""
}

// sanitizeDate keeps only well-formed YYYY-MM-DD values.
func sanitizeDate(d string) string {
	d = strings.TrimSpace(d)
	if dateShape.MatchString(d) {
		return d
	}
	return ""
}

// sanitizeTime keeps well-formed clock times, padding a bare HH:MM with
// seconds. A missing or literally "unknown" time becomes midnight when a
// date exists, else empty.
func sanitizeTime(t string, haveDate bool) string {
	t = strings.TrimSpace(strings.ToLower(t))
	if t == "" || t == "unknown" {
		if haveDate {
			return "00:00:00"
		}
		return ""
	}
	if !timeShape.MatchString(t) {
		return ""
	}
	if strings.Count(t, ":") == 1 {
		t += ":00"
	}
	if len(t) == 7 {
		t = "0" + t
	}
	return t
}

func nonNegative(v *int) *int {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

func nonNegativeInt(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
