package sites

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
	"github.com/blaulichtkarte/blaulicht-cli/internal/scraper"
)

const berlinBase = "https://www.berlin.de"

// Berlin scrapes the Polizei Berlin press portal on berlin.de.
type Berlin struct{}

func (b *Berlin) Name() string                 { return "polizei_berlin" }
func (b *Berlin) Bundesland() model.Bundesland { return model.Berlin }

func (b *Berlin) ListingURL(page int) string {
	return fmt.Sprintf("%s/polizei/polizeimeldungen/?page_at_1_0=%d", berlinBase, page)
}

func (b *Berlin) ParseListing(html string) ([]scraper.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "berlin: parse listing")
	}

	var entries []scraper.Listing
	doc.Find("ul.list--tablelist > li").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		entry := scraper.Listing{
			URL:   absURL(berlinBase, href),
			Title: cleanText(link.Text()),
			City:  "Berlin",
		}
		if t, ok := parseGermanDate(sel.Find(".date").Text()); ok {
			entry.Date = t
		}
		// "Ereignisort: Spandau" narrows the district.
		if ort := cleanText(sel.Find(".category").Text()); ort != "" {
			district := strings.TrimSpace(strings.TrimPrefix(ort, "Ereignisort:"))
			if district != "" {
				entry.Hints = map[string]string{"district": district}
			}
		}
		entries = append(entries, entry)
	})
	return entries, nil
}

func (b *Berlin) ParseArticle(html, url string) (*model.Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrapf(err, "berlin: parse article %s", url)
	}

	title := cleanText(doc.Find("h1.title").First().Text())
	if title == "" {
		return nil, nil
	}

	var paragraphs []string
	doc.Find("div.textile p").Each(func(_ int, sel *goquery.Selection) {
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
		City:         "Berlin",
		Bundesland:   model.Berlin,
		SourceAgency: "Polizei Berlin",
	}

	if t, ok := parseGermanDate(doc.Find(".polizeimeldung").First().Text()); ok {
		a.PublishedAt = t
	}
	// "Nr. 0123" is the running bulletin number.
	if nr := cleanText(doc.Find(".nummer").First().Text()); nr != "" {
		a.AgencyCode = strings.TrimSpace(strings.TrimPrefix(nr, "Nr."))
	}

	return a, nil
}
