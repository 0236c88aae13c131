package sites

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
	"github.com/blaulichtkarte/blaulicht-cli/internal/scraper"
)

const mvBase = "https://www.polizei.mvnet.de"

// MecklenburgVorpommern scrapes the presse portal of the state police.
type MecklenburgVorpommern struct{}

func (m *MecklenburgVorpommern) Name() string                 { return "polizei_mv" }
func (m *MecklenburgVorpommern) Bundesland() model.Bundesland { return model.MecklenburgVorpommern }

func (m *MecklenburgVorpommern) ListingURL(page int) string {
	return fmt.Sprintf("%s/Presse/Pressemitteilungen/?page=%d", mvBase, page)
}

func (m *MecklenburgVorpommern) ParseListing(html string) ([]scraper.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "mv: parse listing")
	}

	var entries []scraper.Listing
	doc.Find("div.teaser").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("h3 a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		entry := scraper.Listing{
			URL:   absURL(mvBase, href),
			Title: cleanText(link.Text()),
		}
		if t, ok := parseGermanDate(sel.Find("p.date").Text()); ok {
			entry.Date = t
		}
		entries = append(entries, entry)
	})
	return entries, nil
}

func (m *MecklenburgVorpommern) ParseArticle(html, url string) (*model.Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrapf(err, "mv: parse article %s", url)
	}

	title := cleanText(doc.Find("h1").First().Text())
	if title == "" {
		return nil, nil
	}

	var paragraphs []string
	doc.Find("div.body p").Each(func(_ int, sel *goquery.Selection) {
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
		Bundesland:   model.MecklenburgVorpommern,
		SourceAgency: cleanText(doc.Find("p.author").First().Text()),
	}
	if a.SourceAgency == "" {
		a.SourceAgency = "Polizei Mecklenburg-Vorpommern"
	}
	if t, ok := parseGermanDate(doc.Find("p.date").First().Text()); ok {
		a.PublishedAt = t
	}
	if m := otsCity.FindStringSubmatch(body); m != nil {
		a.City = cleanText(m[1])
	}

	return a, nil
}
