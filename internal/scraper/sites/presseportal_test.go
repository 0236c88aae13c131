package sites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

const presseportalListingHTML = `<html><body>
<article class="news">
  <div class="news-datetime">10.01.2026 – 09:30</div>
  <h3 class="news-headline-clamp">
    <a href="/blaulicht/pm/11559/5943210">POL-B: Raubüberfall auf Spätkauf in Neukölln</a>
  </h3>
</article>
<article class="news">
  <div class="news-datetime">09.01.2026 – 22:10</div>
  <h3 class="news-headline-clamp">
    <a href="/blaulicht/pm/11559/5943188">POL-B: Wohnungseinbruch in Charlottenburg</a>
  </h3>
</article>
</body></html>`

const presseportalArticleHTML = `<html><body>
<article class="news">
  <h1>POL-B: Raubüberfall auf Spätkauf in Neukölln</h1>
  <p class="news-datetime">10.01.2026 – 09:30</p>
  <p class="news-customer">Polizei Berlin</p>
  <p>Berlin (ots) - In der Nacht zu Samstag überfiel ein maskierter Mann einen Spätkauf in der Sonnenallee.</p>
  <p>Der Täter flüchtete mit der Tageseinnahme in unbekannte Richtung.</p>
</article>
</body></html>`

func TestPresseportal_ParseListing(t *testing.T) {
	pp := NewPresseportal(model.Berlin)
	entries, err := pp.ParseListing(presseportalListingHTML)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "https://www.presseportal.de/blaulicht/pm/11559/5943210", entries[0].URL)
	assert.Equal(t, "POL-B: Raubüberfall auf Spätkauf in Neukölln", entries[0].Title)
	assert.Equal(t, "2026-01-10 09:30", entries[0].Date.Format("2006-01-02 15:04"))
}

func TestPresseportal_ParseArticle(t *testing.T) {
	pp := NewPresseportal(model.Berlin)
	a, err := pp.ParseArticle(presseportalArticleHTML, "https://www.presseportal.de/blaulicht/pm/11559/5943210")
	require.NoError(t, err)
	require.NotNil(t, a)

	assert.Equal(t, "POL-B: Raubüberfall auf Spätkauf in Neukölln", a.Title)
	assert.Contains(t, a.Body, "maskierter Mann")
	assert.NotContains(t, a.Body, "10.01.2026")
	assert.Equal(t, "Berlin", a.City)
	assert.Equal(t, "Polizei Berlin", a.SourceAgency)
	assert.Equal(t, "11559", a.AgencyCode)
	assert.Equal(t, model.Berlin, a.Bundesland)
	assert.Equal(t, "2026-01-10 09:30", a.PublishedAt.Format("2006-01-02 15:04"))
}

func TestPresseportal_ParseArticle_NotAnArticle(t *testing.T) {
	pp := NewPresseportal(model.Berlin)
	a, err := pp.ParseArticle("<html><body><h1></h1></body></html>", "https://x")
	require.NoError(t, err)
	assert.Nil(t, a)
}
