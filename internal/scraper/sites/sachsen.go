package sites

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
	"github.com/blaulichtkarte/blaulicht-cli/internal/scraper"
)

const sachsenBase = "https://www.polizei.sachsen.de"

// Sachsen scrapes the Medieninformationen of the Saxon police directorates.
type Sachsen struct{}

func (s *Sachsen) Name() string                 { return "polizei_sachsen" }
func (s *Sachsen) Bundesland() model.Bundesland { return model.Sachsen }

func (s *Sachsen) ListingURL(page int) string {
	return fmt.Sprintf("%s/de/medieninformationen.htm?page=%d", sachsenBase, page)
}

func (s *Sachsen) ParseListing(html string) ([]scraper.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "sachsen: parse listing")
	}

	var entries []scraper.Listing
	doc.Find("ul.mi-list > li").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		entry := scraper.Listing{
			URL:   absURL(sachsenBase, href),
			Title: cleanText(link.Text()),
			City:  cleanText(sel.Find(".mi-ort").Text()),
		}
		if t, ok := parseGermanDate(sel.Find(".mi-datum").Text()); ok {
			entry.Date = t
		}
		entries = append(entries, entry)
	})
	return entries, nil
}

func (s *Sachsen) ParseArticle(html, url string) (*model.Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrapf(err, "sachsen: parse article %s", url)
	}

	title := cleanText(doc.Find("h1").First().Text())
	if title == "" {
		return nil, nil
	}

	var paragraphs []string
	doc.Find("div#content p, div.mi-text p").Each(func(_ int, sel *goquery.Selection) {
		if sel.HasClass("quelle") || sel.HasClass("mi-datum") {
			return
		}
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
		City:         cleanText(doc.Find(".mi-ort").First().Text()),
		Bundesland:   model.Sachsen,
		SourceAgency: cleanText(doc.Find("p.quelle").First().Text()),
	}
	if a.SourceAgency == "" {
		a.SourceAgency = "Polizei Sachsen"
	}
	if t, ok := parseGermanDate(doc.Find(".mi-datum").First().Text()); ok {
		a.PublishedAt = t
	}

	return a, nil
}
