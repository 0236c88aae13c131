package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

func art(title, body, agency string) model.Article {
	return model.Article{
		URL:          "https://example.org/" + title,
		Title:        title,
		Body:         body,
		SourceAgency: agency,
		PublishedAt:  time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestCheck_FeuerwehrSource(t *testing.T) {
	a := art("FW-Bremerhaven: Kellerbrand schnell gelöscht", "…", "Feuerwehr Bremerhaven")
	assert.Equal(t, "feuerwehr_source", Check(a))
}

func TestCheck_FeuerwehrTitle(t *testing.T) {
	a := art("FW-HH: Wohnungsbrand in Altona", "…", "Presseportal")
	assert.Equal(t, "feuerwehr_title", Check(a))
}

func TestCheck_DemoAbschlussmeldungIsJunk(t *testing.T) {
	a := art("POL-HH: Demo-Abschlussmeldung", "Die Versammlung verlief störungsfrei, es kam zu keinen Straftaten im Versammlungsverlauf.", "Polizei Hamburg")
	reason := Check(a)
	assert.Contains(t, reason, "junk")
}

func TestCheck_BlitzerAnnouncement(t *testing.T) {
	a := art("POL-GÖ: Geschwindigkeitskontrollen in der kommenden Woche", "…", "Polizei Göttingen")
	assert.Equal(t, "junk_title:blitzer", Check(a))
}

func TestCheck_MissingPersonConservative(t *testing.T) {
	plain := art("POL-B: 84-Jährige aus Spandau vermisst", "Die Seniorin verließ gestern ihre Wohnung…", "Polizei Berlin")
	assert.Equal(t, "junk_title:vermisst", Check(plain))

	// Crime context keeps the article.
	withCrime := art("POL-B: Vermisste Jugendliche – Verdacht einer Straftat", "…", "Polizei Berlin")
	assert.Equal(t, "", Check(withCrime))

	bodyCrime := art("POL-B: 17-Jähriger vermisst", "Die Polizei schließt ein Gewaltverbrechen nicht aus.", "Polizei Berlin")
	assert.Equal(t, "", Check(bodyCrime))
}

func TestCheck_JunkBodyPressestelle(t *testing.T) {
	a := art("POL-K: Hinweis", "Die Pressestelle ist am Wochenende von 10 bis 18 Uhr erreichbar.", "Polizei Köln")
	assert.Equal(t, "junk_body:pressestelle", Check(a))
}

func TestCheck_CrimeArticleKept(t *testing.T) {
	a := art("POL-F: Messerangriff in der Innenstadt", "Ein 34-Jähriger wurde in der Hauptstraße 12 in Frankfurt (Main) gegen 23:15 Uhr durch Messerstiche schwer verletzt.", "Polizei Frankfurt")
	assert.Equal(t, "", Check(a))
}

func TestApply_SplitsKeptAndRemoved(t *testing.T) {
	articles := []model.Article{
		art("POL-F: Raubüberfall auf Tankstelle", "…", "Polizei Frankfurt"),
		art("FW-HB: Containerbrand", "…", "Feuerwehr Bremen"),
		art("POL-M: Verkehrslage zum Oktoberfest", "…", "Polizei München"),
	}
	kept, removed := Apply(articles)

	assert.Len(t, kept, 1)
	assert.Len(t, removed, 2)
	assert.Equal(t, "feuerwehr_source", removed[0].RemovalReason)
	assert.Equal(t, "junk_title:verkehr", removed[1].RemovalReason)
}

func TestHead_RuneBoundary(t *testing.T) {
	s := "Straße" // ß is two bytes
	assert.Equal(t, "Stra", head(s, 5))
	assert.Equal(t, s, head(s, 100))
}
