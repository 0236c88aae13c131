package sites

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
	"github.com/blaulichtkarte/blaulicht-cli/internal/scraper"
)

const brandenburgBase = "https://polizei.brandenburg.de"

// Brandenburg scrapes the polizei.brandenburg.de Meldungen search.
type Brandenburg struct{}

func (b *Brandenburg) Name() string                 { return "polizei_brandenburg" }
func (b *Brandenburg) Bundesland() model.Bundesland { return model.Brandenburg }

func (b *Brandenburg) ListingURL(page int) string {
	return fmt.Sprintf("%s/suche/typ/Meldungen/kategorie/null/seite/%d", brandenburgBase, page)
}

func (b *Brandenburg) ParseListing(html string) ([]scraper.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "brandenburg: parse listing")
	}

	var entries []scraper.Listing
	doc.Find("article.pbb-search-result").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		entry := scraper.Listing{
			URL:   absURL(brandenburgBase, href),
			Title: cleanText(link.Text()),
			City:  cleanText(sel.Find(".pbb-region").Text()),
		}
		if t, ok := parseGermanDate(sel.Find(".pbb-date").Text()); ok {
			entry.Date = t
		}
		entries = append(entries, entry)
	})
	return entries, nil
}

func (b *Brandenburg) ParseArticle(html, url string) (*model.Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrapf(err, "brandenburg: parse article %s", url)
	}

	title := cleanText(doc.Find("h1").First().Text())
	if title == "" {
		return nil, nil
	}

	var paragraphs []string
	doc.Find("div.pbb-article-text p").Each(func(_ int, sel *goquery.Selection) {
		if text := cleanText(sel.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	body := strings.Join(paragraphs, "\n\n")
	if body == "" {
		return nil, nil
	}

	a := &model.Article{
		URL:          url,
		Title:        title,
		Body:         body,
		City:         cleanText(doc.Find(".pbb-region").First().Text()),
		Bundesland:   model.Brandenburg,
		SourceAgency: cleanText(doc.Find(".pbb-source").First().Text()),
	}
	if a.SourceAgency == "" {
		a.SourceAgency = "Polizei Brandenburg"
	}
	if t, ok := parseGermanDate(doc.Find(".pbb-date").First().Text()); ok {
		a.PublishedAt = t
	}

	return a, nil
}
