// Package sites holds the per-portal listing and article parsers. Every
// site is a scraper.Site; the framework in internal/scraper does the rest.
package sites

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
	"github.com/blaulichtkarte/blaulicht-cli/internal/scraper"
)

// berlinTZ is the timezone all portals publish in.
var berlinTZ = mustLoadLocation("Europe/Berlin")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// All returns every registered site. Presseportal is instantiated once per
// Bundesland so each (state x month) chunk scrapes only its own slice.
func All() []scraper.Site {
	var sites []scraper.Site
	for _, bl := range model.AllBundeslaender {
		sites = append(sites, NewPresseportal(bl))
	}
	sites = append(sites,
		&Berlin{},
		&Brandenburg{},
		&Sachsen{},
		&MecklenburgVorpommern{},
		&Thueringen{},
	)
	return sites
}

// ForBundesland returns the sites that cover one state: the presseportal
// slice plus the dedicated portal where one exists.
func ForBundesland(bl model.Bundesland) []scraper.Site {
	sites := []scraper.Site{NewPresseportal(bl)}
	switch bl {
	case model.Berlin:
		sites = append(sites, &Berlin{})
	case model.Brandenburg:
		sites = append(sites, &Brandenburg{})
	case model.Sachsen:
		sites = append(sites, &Sachsen{})
	case model.MecklenburgVorpommern:
		sites = append(sites, &MecklenburgVorpommern{})
	case model.Thueringen:
		sites = append(sites, &Thueringen{})
	}
	return sites
}

// ByName resolves a site by its Name(); nil if unknown.
func ByName(name string) scraper.Site {
	for _, s := range All() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// cleanText collapses all whitespace runs to single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// absURL resolves href against base.
func absURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}

// numericDate finds "10.01.2026" with an optional "14:30" anywhere in the
// surrounding text ("Polizeimeldung vom 10.01.2026", "10.01.2026 – 09:30").
var numericDate = regexp.MustCompile(`(\d{1,2}\.\d{1,2}\.\d{4})(?:\D{0,3}(\d{1,2}:\d{2}))?`)

// parseGermanDate parses the common numeric forms and the spelled-out
// "2. Januar 2006", tolerating prefixes and the trailing "Uhr".
func parseGermanDate(s string) (time.Time, bool) {
	s = cleanText(s)

	if m := numericDate.FindStringSubmatch(s); m != nil {
		candidate, layout := m[1], "2.1.2006"
		if m[2] != "" {
			candidate += " " + m[2]
			layout = "2.1.2006 15:04"
		}
		if t, err := time.ParseInLocation(layout, candidate, berlinTZ); err == nil {
			return t, true
		}
	}

	// "2. Januar 2006" style. Umlauts are folded so "März" matches.
	folded := strings.ToLower(strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue").Replace(s))
	for m := 1; m <= 12; m++ {
		month := model.GermanMonths[m]
		idx := strings.Index(folded, month)
		if idx <= 0 {
			continue
		}
		numeric := strings.TrimSuffix(strings.TrimSpace(folded[:idx]), ".")
		rest := strings.TrimSpace(folded[idx+len(month):])
		candidate := numeric + "." + itoa2(m) + "." + rest
		for _, layout := range []string{"2.01.2006 15:04", "2.01.2006"} {
			if t, err := time.ParseInLocation(layout, candidate, berlinTZ); err == nil {
				return t, true
			}
		}
	}

	return time.Time{}, false
}

func itoa2(n int) string {
	if n < 10 {
		return string([]byte{'0', byte('0' + n)})
	}
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}
