package filter

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// wordRun matches runs of 3+ letters, umlauts included.
var wordRun = regexp.MustCompile(`[\p{L}]{3,}`)

// stopwords are high-frequency German function words plus the agency
// boilerplate every title carries.
var stopwords = map[string]struct{}{
	"und": {}, "der": {}, "die": {}, "das": {}, "den": {}, "dem": {},
	"des": {}, "ein": {}, "eine": {}, "einer": {}, "eines": {}, "einem": {},
	"einen": {}, "von": {}, "nach": {}, "mit": {}, "bei": {}, "aus": {},
	"auf": {}, "für": {}, "fuer": {}, "zum": {}, "zur": {}, "durch": {},
	"gegen": {}, "über": {}, "ueber": {}, "unter": {}, "polizei": {},
	"pol": {}, "nr": {}, "uhr": {},
}

// Tokenize lowercases, NFC-normalizes and extracts letter runs of 3+,
// dropping stopwords. Order is preserved, duplicates are kept.
func Tokenize(s string) []string {
	s = strings.ToLower(norm.NFC.String(s))
	raw := wordRun.FindAllString(s, -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if _, stop := stopwords[t]; stop {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// TokenSet returns the unique token set of s.
func TokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Tokenize(s) {
		set[t] = struct{}{}
	}
	return set
}

// Jaccard computes |a∩b| / |a∪b| over two token sets.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
