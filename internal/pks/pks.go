// Package pks maps Polizeiliche Kriminalstatistik (PKS) keys to the crime
// map's category tags. PKS keys are four-digit strings; the leading digits
// select the offense group, specific keys override their group.
package pks

import "strings"

// Category tags understood by the crime map frontend.
const (
	CategoryHomicide  = "homicide"
	CategoryAssault   = "assault"
	CategorySexual    = "sexual_offense"
	CategoryRobbery   = "robbery"
	CategoryTheft     = "theft"
	CategoryBurglary  = "burglary"
	CategoryFraud     = "fraud"
	CategoryDrugs     = "drugs"
	CategoryArson     = "arson"
	CategoryVandalism = "vandalism"
	CategoryWeapons   = "weapons"
	CategoryTraffic   = "traffic"
	CategoryOther     = "other"
)

// exact maps specific 4-digit PKS keys that deviate from their group.
var exact = map[string]string{
	"0100": CategoryHomicide,  // Mord
	"0200": CategoryHomicide,  // Totschlag und Tötung auf Verlangen
	"1110": CategorySexual,    // Vergewaltigung, sexuelle Nötigung
	"2100": CategoryRobbery,   // Raub, räuberische Erpressung
	"2160": CategoryRobbery,   // Handtaschenraub
	"2200": CategoryAssault,   // Körperverletzung
	"2220": CategoryAssault,   // gefährliche und schwere Körperverletzung
	"2240": CategoryAssault,   // (vorsätzliche einfache) Körperverletzung
	"4350": CategoryBurglary,  // Wohnungseinbruchdiebstahl
	"4780": CategoryTheft,     // Taschendiebstahl
	"5100": CategoryFraud,     // Betrug
	"5110": CategoryFraud,     // Waren- und Warenkreditbetrug
	"6400": CategoryArson,     // Brandstiftung
	"6740": CategoryVandalism, // Sachbeschädigung
	"7260": CategoryWeapons,   // Verstöße gegen das Waffengesetz
	"7300": CategoryDrugs,     // Rauschgiftdelikte
}

// groups maps leading PKS digits to a category when no exact key matches.
var groups = []struct {
	prefix   string
	category string
}{
	{"0", CategoryHomicide},
	{"1", CategorySexual},
	{"21", CategoryRobbery},
	{"22", CategoryAssault},
	{"23", CategoryAssault},
	{"3", CategoryTheft},
	{"4", CategoryBurglary},
	{"5", CategoryFraud},
	{"64", CategoryArson},
	{"674", CategoryVandalism},
	{"726", CategoryWeapons},
	{"73", CategoryDrugs},
}

// german maps lowercase German category names emitted by the model to tags;
// used as a fallback when the PKS key is missing or unknown.
var german = map[string]string{
	"mord":                   CategoryHomicide,
	"totschlag":              CategoryHomicide,
	"tötungsdelikt":          CategoryHomicide,
	"körperverletzung":       CategoryAssault,
	"raub":                   CategoryRobbery,
	"räuberische erpressung": CategoryRobbery,
	"diebstahl":              CategoryTheft,
	"einbruch":               CategoryBurglary,
	"wohnungseinbruch":       CategoryBurglary,
	"betrug":                 CategoryFraud,
	"sexualdelikt":           CategorySexual,
	"vergewaltigung":         CategorySexual,
	"rauschgift":             CategoryDrugs,
	"drogen":                 CategoryDrugs,
	"brandstiftung":          CategoryArson,
	"sachbeschädigung":       CategoryVandalism,
	"waffen":                 CategoryWeapons,
	"verkehr":                CategoryTraffic,
	"verkehrsunfall":         CategoryTraffic,
}

// IsValidCode reports whether code is a well-formed 4-digit PKS key.
func IsValidCode(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Category resolves a PKS key to a category tag, falling back to the German
// category name and finally to "other".
func Category(code, germanCategory string) string {
	if IsValidCode(code) {
		if cat, ok := exact[code]; ok {
			return cat
		}
		// Longest-prefix wins so 674x beats 6xx.
		best := ""
		bestLen := 0
		for _, g := range groups {
			if strings.HasPrefix(code, g.prefix) && len(g.prefix) > bestLen {
				best = g.category
				bestLen = len(g.prefix)
			}
		}
		if best != "" {
			return best
		}
	}

	name := strings.ToLower(strings.TrimSpace(germanCategory))
	if cat, ok := german[name]; ok {
		return cat
	}
	for key, cat := range german {
		if name != "" && strings.Contains(name, key) {
			return cat
		}
	}
	return CategoryOther
}
