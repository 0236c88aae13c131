// Package filter removes junk articles before they reach the model and
// assigns incident groups to the survivors. All rules are cheap and
// deterministic; anything borderline is left for the LLM.
package filter

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

// feuerwehr sources and title prefixes are excluded outright; this is a
// crime pipeline.
var (
	feuerwehrSource = regexp.MustCompile(`(?i)feuerwehr|\bFW\b`)
	feuerwehrTitle  = regexp.MustCompile(`(?i)^FW[- ]`)
)

// namedPattern couples a junk rule with a stable reason tag.
type namedPattern struct {
	name string
	re   *regexp.Regexp
}

var junkTitlePatterns = []namedPattern{
	{"verkehr", regexp.MustCompile(`(?i)verkehrsbehinderung|verkehrslage|verkehrshinweis|stau(?:warnung|prognose)|vollsperrung`)},
	{"blitzer", regexp.MustCompile(`(?i)blitzer|geschwindigkeitskontroll|geschwindigkeitsmess|radarkontroll|mobile kontrollstellen`)},
	{"bilanz", regexp.MustCompile(`(?i)\bbilanz\b|jahresbericht|jahresstatistik|kriminalstatistik|halbjahresbilanz|einsatzbilanz|abschlussmeldung`)},
	{"versammlung", regexp.MustCompile(`(?i)versammlungsgeschehen|demonstrationsgeschehen|\bdemo-abschluss`)},
	{"karriere", regexp.MustCompile(`(?i)einstellungsberat|berufsinfo|karrieretag|nachwuchswerbung|bewerbungsfrist`)},
	{"veranstaltung", regexp.MustCompile(`(?i)tag der offenen t(?:ü|ue)r|pr(?:ä|ae)ventionsveranstaltung|b(?:ü|ue)rgersprechstunde|infostand`)},
}

var junkBodyPatterns = []namedPattern{
	{"fahndung_erledigt", regexp.MustCompile(`(?i)vermisstenfahndung wird zur(?:ü|ue)ckgenommen|fahndung erledigt|wohlbehalten (?:angetroffen|zur(?:ü|ue)ck)`)},
	{"pressestelle", regexp.MustCompile(`(?i)(?:ö|oe)ffnungszeiten der pressestelle|pressestelle ist .{0,40}erreichbar`)},
}

// Missing-person bulletins are junk only when nothing suggests a crime;
// public appeals around violent offenses must reach the model.
var (
	missingPersonLexeme = regexp.MustCompile(`(?i)vermisst|vermissten`)
	crimeContextLexeme  = regexp.MustCompile(`(?i)straftat|verbrechen|entf(?:ü|ue)hr|raub|mord|t(?:ö|oe)tungsdelikt|(?:ü|ue)berfall|gewalt|leiche|tatverd(?:ä|ae)chtig`)
)

const bodyCheckLimit = 500

// IsFeuerwehr reports whether title or source identify a fire-brigade
// release. The scraper framework uses this to skip such articles before
// they are even fetched.
func IsFeuerwehr(title, source string) bool {
	return feuerwehrSource.MatchString(source) || feuerwehrTitle.MatchString(title)
}

// Check returns a removal reason for a junk article, or "" to keep it.
func Check(a model.Article) string {
	if feuerwehrSource.MatchString(a.SourceAgency) {
		return "feuerwehr_source"
	}
	if feuerwehrTitle.MatchString(a.Title) {
		return "feuerwehr_title"
	}

	if missingPersonLexeme.MatchString(a.Title) &&
		!crimeContextLexeme.MatchString(a.Title) &&
		!crimeContextLexeme.MatchString(head(a.Body, bodyCheckLimit)) {
		return "junk_title:vermisst"
	}

	for _, p := range junkTitlePatterns {
		if p.re.MatchString(a.Title) {
			return "junk_title:" + p.name
		}
	}

	body := head(a.Body, bodyCheckLimit)
	for _, p := range junkBodyPatterns {
		if p.re.MatchString(body) {
			return "junk_body:" + p.name
		}
	}

	return ""
}

// Apply splits articles into kept and removed.
func Apply(articles []model.Article) (kept []model.Article, removed []model.RemovedArticle) {
	for _, a := range articles {
		if reason := Check(a); reason != "" {
			removed = append(removed, model.RemovedArticle{Article: a, RemovalReason: reason})
			continue
		}
		kept = append(kept, a)
	}
	zap.L().Info("pre-filter complete",
		zap.Int("kept", len(kept)),
		zap.Int("removed", len(removed)),
	)
	return kept, removed
}

// head returns the first n bytes of s on a rune boundary.
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
