package sites

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
	"github.com/blaulichtkarte/blaulicht-cli/internal/scraper"
)

const presseportalBase = "https://www.presseportal.de"

// presseportalPageSize is the fixed listing page size of the portal.
const presseportalPageSize = 30

// otsCity pulls the dateline city out of a presseportal body, which always
// opens "Stadt (ots)".
var otsCity = regexp.MustCompile(`^([\p{L}\s./()-]+?)\s*\(ots\)`)

// pmCode extracts the agency code from a /blaulicht/pm/<code>/<id> URL.
var pmCode = regexp.MustCompile(`/blaulicht/pm/(\d+)/`)

// Presseportal scrapes the central blaulicht portal, one Bundesland slice
// at a time.
type Presseportal struct {
	bundesland model.Bundesland
}

// NewPresseportal creates the presseportal site for one state.
func NewPresseportal(bl model.Bundesland) *Presseportal {
	return &Presseportal{bundesland: bl}
}

func (p *Presseportal) Name() string {
	return "presseportal_" + string(p.bundesland)
}

func (p *Presseportal) Bundesland() model.Bundesland { return p.bundesland }

func (p *Presseportal) ListingURL(page int) string {
	offset := (page - 1) * presseportalPageSize
	return fmt.Sprintf("%s/blaulicht/l/%s/%d", presseportalBase, p.bundesland, offset)
}

func (p *Presseportal) ParseListing(html string) ([]scraper.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "presseportal: parse listing")
	}

	var entries []scraper.Listing
	doc.Find("article.news").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("h3 a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		entry := scraper.Listing{
			URL:   absURL(presseportalBase, href),
			Title: cleanText(link.Text()),
		}
		if t, ok := parseGermanDate(sel.Find(".news-datetime").Text()); ok {
			entry.Date = t
		}
		entries = append(entries, entry)
	})
	return entries, nil
}

func (p *Presseportal) ParseArticle(html, url string) (*model.Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrapf(err, "presseportal: parse article %s", url)
	}

	title := cleanText(doc.Find("article.news h1, h1.news-title").First().Text())
	if title == "" {
		return nil, nil
	}

	var paragraphs []string
	doc.Find("article.news p").Each(func(_ int, sel *goquery.Selection) {
		if sel.HasClass("news-datetime") || sel.HasClass("news-customer") {
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
		Bundesland:   p.bundesland,
		SourceAgency: cleanText(doc.Find(".news-customer").First().Text()),
	}

	if t, ok := parseGermanDate(doc.Find(".news-datetime").First().Text()); ok {
		a.PublishedAt = t
	}
	if m := otsCity.FindStringSubmatch(body); m != nil {
		a.City = cleanText(m[1])
	}
	if m := pmCode.FindStringSubmatch(url); m != nil {
		a.AgencyCode = m[1]
	}

	return a, nil
}
