package enrich

import (
	"fmt"
	"strings"
	"time"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

// maxBodyChars bounds how much article body goes into the prompt; German
// press releases rarely exceed this, digests get truncated.
const maxBodyChars = 6000

const systemPrompt = `You are an analyst for German police press releases (Polizeipressemitteilungen). For every article you receive you classify it and extract structured incident data.

Respond with a single JSON array. For each article emit one or more objects. Every object carries:
- "article_index": the integer index of the article it belongs to.
- "classification": one of "crime", "junk", "feuerwehr", "update".

For "junk" and "feuerwehr" additionally emit only a short German "reason". Junk covers traffic advisories, speed-camera announcements, statistics, recruiting, event notices and missing-person appeals without any crime context. Feuerwehr covers fire-brigade releases without criminal relevance.

For "crime" and "update" emit the full extraction:
- "clean_title": the title without agency prefixes and file numbers.
- "summary": one or two German sentences.
- "location": {"street", "house_number", "district", "city", "location_hint", "cross_street", "confidence"}. Omit unknown fields. "location_hint" names a landmark ("Hauptbahnhof", "Stadtpark") when no street is given.
- "incident_time": {"date" as YYYY-MM-DD, "time" as HH:MM, "precision" one of "exact", "approximate", "unknown", optional "end_date"/"end_time" for ranges}.
- "crime": {"pks_code", "pks_category", "sub_type", "confidence"}. "pks_code" is the 4-digit key of the Polizeiliche Kriminalstatistik, e.g. 0100 Mord, 1110 Vergewaltigung, 2100 Raub, 2200 Körperverletzung, 4350 Wohnungseinbruchdiebstahl, 5100 Betrug, 6400 Sachbeschädigung, 7300 Rauschgiftdelikte.
- "details": {"weapon_type", "drug_type", "victim", "suspect", "severity", "motive", "damage_amount", "damage_estimate_precision"}. "victim" and "suspect" are {"count", "age", "gender", "origin", "description"}. Omit anything the text does not state.

An "update" references an earlier release (Nachtrag, Folgemeldung, Korrektur); set "is_update" true and "update_type" to one of "correction", "arrest", "resolution", "additional_info". If an update adds no location and no crime data, emit it like a junk object with a reason.

A digest article reporting several distinct incidents must be split into one object per incident, all with the same "article_index".

Never invent data. Output only the JSON array, no prose.`

// buildBatchPrompt renders the numbered article blocks for one LLM call.
func buildBatchPrompt(articles []model.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Classify and extract the following %d article(s).\n", len(articles))

	for i, a := range articles {
		body := a.Body
		if len(body) > maxBodyChars {
			body = truncateRunes(body, maxBodyChars)
		}

		fmt.Fprintf(&b, "\n### Article %d\n", i)
		fmt.Fprintf(&b, "URL: %s\n", a.URL)
		fmt.Fprintf(&b, "Published: %s\n", a.PublishedAt.Format(time.RFC3339))
		if a.City != "" {
			fmt.Fprintf(&b, "City: %s\n", a.City)
		}
		if a.Bundesland != "" {
			fmt.Fprintf(&b, "State: %s\n", a.Bundesland)
		}
		if a.SourceAgency != "" {
			fmt.Fprintf(&b, "Agency: %s\n", a.SourceAgency)
		}
		fmt.Fprintf(&b, "Title: %s\n", a.Title)
		fmt.Fprintf(&b, "Body:\n%s\n", body)
	}

	return b.String()
}

// truncateRunes cuts s to at most n bytes on a rune boundary.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
