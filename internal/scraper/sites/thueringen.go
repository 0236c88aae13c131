package sites

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
	"github.com/blaulichtkarte/blaulicht-cli/internal/scraper"
)

const thueringenBase = "https://polizei.thueringen.de"

// Thueringen scrapes the Thuringian state police press releases.
type Thueringen struct{}

func (t *Thueringen) Name() string                 { return "polizei_thueringen" }
func (t *Thueringen) Bundesland() model.Bundesland { return model.Thueringen }

func (t *Thueringen) ListingURL(page int) string {
	return fmt.Sprintf("%s/medieninformationen/?tx_news_pi1%%5BcurrentPage%%5D=%d", thueringenBase, page)
}

func (t *Thueringen) ParseListing(html string) ([]scraper.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "thueringen: parse listing")
	}

	var entries []scraper.Listing
	doc.Find("div.news-list-item").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("h3 a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		entry := scraper.Listing{
			URL:   absURL(thueringenBase, href),
			Title: cleanText(link.Text()),
		}
		if t, ok := parseGermanDate(sel.Find("time, span.news-date").Text()); ok {
			entry.Date = t
		}
		entries = append(entries, entry)
	})
	return entries, nil
}

func (t *Thueringen) ParseArticle(html, url string) (*model.Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrapf(err, "thueringen: parse article %s", url)
	}

	title := cleanText(doc.Find("h1").First().Text())
	if title == "" {
		return nil, nil
	}

	var paragraphs []string
	doc.Find("div.news-text-wrap p").Each(func(_ int, sel *goquery.Selection) {
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
		Bundesland:   model.Thueringen,
		SourceAgency: cleanText(doc.Find("span.news-author").First().Text()),
	}
	if a.SourceAgency == "" {
		a.SourceAgency = "Polizei Thüringen"
	}
	if ts, ok := parseGermanDate(doc.Find("time, span.news-date").First().Text()); ok {
		a.PublishedAt = ts
	}
	if m := otsCity.FindStringSubmatch(body); m != nil {
		a.City = cleanText(m[1])
	}

	return a, nil
}
