package filter

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

// pmSuffix strips the running "PM Nr. N" counter agencies append to
// follow-up releases of the same incident.
var pmSuffix = regexp.MustCompile(`(?i)\s*[-–—:,]?\s*(?:PM|Pressemitteilung|Pressemeldung)\s*[- ]?Nr\.?\s*\d+\s*$`)

// followUpMarker identifies explicit follow-up titles; the remainder after
// the marker names the parent.
var followUpMarker = regexp.MustCompile(`(?i)^\s*(nachtrag|folgemeldung|korrektur|update)\s*[:\-–]\s*`)

// urlInBody finds back-reference links inside article bodies.
var urlInBody = regexp.MustCompile(`https?://[^\s"'<>)]+`)

// GroupID derives the 12-hex-digit deterministic incident group id.
func GroupID(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:12]
}

// stripPM removes the PM-counter suffix and agency prefix noise.
func stripPM(title string) string {
	return strings.TrimSpace(pmSuffix.ReplaceAllString(title, ""))
}

// normalizeTitle reduces a title to its token join for parent matching.
func normalizeTitle(title string) string {
	return strings.Join(Tokenize(stripPM(title)), " ")
}

// Group assigns every article an incident group id and role. It mutates
// copies, returning articles in the input order. Grouping is deterministic:
// ties break on (published-at, url).
func Group(articles []model.Article) []model.Article {
	out := make([]model.Article, len(articles))
	copy(out, articles)

	// Stable processing order independent of input order.
	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ai, bi := out[order[a]], out[order[b]]
		if !ai.PublishedAt.Equal(bi.PublishedAt) {
			return ai.PublishedAt.Before(bi.PublishedAt)
		}
		return ai.URL < bi.URL
	})

	grouped := make([]bool, len(out))

	tier1BaseTitle(out, order, grouped)
	tier1FollowUpMarkers(out, order, grouped)
	tier1BackReferences(out, order, grouped)
	tier2Heuristic(out, order, grouped)

	// Solo: everything left gets its own group keyed by URL.
	solo := 0
	for _, i := range order {
		if grouped[i] {
			continue
		}
		out[i].IncidentGroupID = GroupID(out[i].URL)
		out[i].GroupRole = model.RolePrimary
		grouped[i] = true
		solo++
	}

	zap.L().Debug("incident grouping complete",
		zap.Int("articles", len(out)),
		zap.Int("solo", solo),
	)
	return out
}

// tier1BaseTitle groups same-agency articles sharing a stripped base title:
// the earliest is primary, later ones are updates.
func tier1BaseTitle(out []model.Article, order []int, grouped []bool) {
	buckets := make(map[string][]int)
	for _, i := range order {
		base := stripPM(out[i].Title)
		if base == "" {
			continue
		}
		// Only titles that actually carried a PM counter, or that recur
		// verbatim, are deterministic duplicates.
		key := out[i].SourceAgency + "|" + strings.ToLower(base)
		buckets[key] = append(buckets[key], i)
	}

	for key, members := range buckets {
		if len(members) < 2 {
			continue
		}
		id := GroupID("t1a|" + key)
		for rank, i := range members {
			if grouped[i] {
				continue
			}
			out[i].IncidentGroupID = id
			if rank == 0 {
				out[i].GroupRole = model.RolePrimary
			} else {
				out[i].GroupRole = model.RoleUpdate
			}
			grouped[i] = true
		}
	}
}

// tier1FollowUpMarkers links Nachtrag/Folgemeldung/Korrektur/Update titles
// to the parent with the matching stripped-normalized title.
func tier1FollowUpMarkers(out []model.Article, order []int, grouped []bool) {
	// Parent lookup by normalized title within the same agency.
	parents := make(map[string]int)
	for _, i := range order {
		if followUpMarker.MatchString(out[i].Title) {
			continue
		}
		key := out[i].SourceAgency + "|" + normalizeTitle(out[i].Title)
		if _, seen := parents[key]; !seen {
			parents[key] = i
		}
	}

	for _, i := range order {
		if grouped[i] {
			continue
		}
		m := followUpMarker.FindString(out[i].Title)
		if m == "" {
			continue
		}
		rest := strings.TrimSpace(out[i].Title[len(m):])
		key := out[i].SourceAgency + "|" + normalizeTitle(rest)
		parent, ok := parents[key]
		if !ok {
			continue
		}
		if !grouped[parent] {
			out[parent].IncidentGroupID = GroupID(out[parent].URL)
			out[parent].GroupRole = model.RolePrimary
			grouped[parent] = true
		}
		out[i].IncidentGroupID = out[parent].IncidentGroupID
		out[i].GroupRole = model.RoleFollowUp
		grouped[i] = true
	}
}

// tier1BackReferences links articles whose body references another batch
// article's URL.
func tier1BackReferences(out []model.Article, order []int, grouped []bool) {
	byURL := make(map[string]int, len(out))
	for _, i := range order {
		byURL[out[i].URL] = i
	}

	for _, i := range order {
		if grouped[i] {
			continue
		}
		for _, ref := range urlInBody.FindAllString(out[i].Body, -1) {
			ref = strings.TrimRight(ref, ".,;")
			parent, ok := byURL[ref]
			if !ok || parent == i {
				continue
			}
			if !grouped[parent] {
				out[parent].IncidentGroupID = GroupID(out[parent].URL)
				out[parent].GroupRole = model.RolePrimary
				grouped[parent] = true
			}
			out[i].IncidentGroupID = out[parent].IncidentGroupID
			out[i].GroupRole = model.RoleFollowUp
			grouped[i] = true
			break
		}
	}
}

// tier2Heuristic merges remaining articles bucketed by (agency, city,
// ISO-week) when title similarity is high and dates are close.
func tier2Heuristic(out []model.Article, order []int, grouped []bool) {
	type bucketKey struct {
		agency, city string
		year, week   int
	}
	buckets := make(map[bucketKey][]int)
	for _, i := range order {
		if grouped[i] {
			continue
		}
		year, week := out[i].PublishedAt.ISOWeek()
		key := bucketKey{
			agency: out[i].SourceAgency,
			city:   strings.ToLower(out[i].City),
			year:   year,
			week:   week,
		}
		buckets[key] = append(buckets[key], i)
	}

	const similarityThreshold = 0.5
	const maxDaySpan = 7 * 24 // hours

	for _, members := range buckets {
		if len(members) < 2 {
			continue
		}
		tokens := make([]map[string]struct{}, len(members))
		for k, i := range members {
			tokens[k] = TokenSet(out[i].Title)
		}
		for a := 0; a < len(members); a++ {
			i := members[a]
			if grouped[i] {
				continue
			}
			for b := a + 1; b < len(members); b++ {
				j := members[b]
				if grouped[j] {
					continue
				}
				if Jaccard(tokens[a], tokens[b]) < similarityThreshold {
					continue
				}
				if out[j].PublishedAt.Sub(out[i].PublishedAt).Hours() > maxDaySpan {
					continue
				}
				if !grouped[i] {
					out[i].IncidentGroupID = GroupID(out[i].URL)
					out[i].GroupRole = model.RolePrimary
					grouped[i] = true
				}
				out[j].IncidentGroupID = out[i].IncidentGroupID
				out[j].GroupRole = model.RoleRelated
				grouped[j] = true
			}
		}
	}
}
