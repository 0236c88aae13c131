package scraper

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blaulichtkarte/blaulicht-cli/internal/cache"
	"github.com/blaulichtkarte/blaulicht-cli/internal/config"
	"github.com/blaulichtkarte/blaulicht-cli/internal/filter"
	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

// maxPages is a hard cap on listing pagination per run.
const maxPages = 500

// Listing is one entry of a listing page, before the article is fetched.
type Listing struct {
	URL   string
	Title string
	Date  time.Time // zero when the listing carries no date
	City  string
	Hints map[string]string
}

// Site is one press portal: a listing URL scheme plus two pure parsers.
type Site interface {
	Name() string
	Bundesland() model.Bundesland
	// ListingURL returns the URL of listing page n, starting at 1.
	ListingURL(page int) string
	ParseListing(html string) ([]Listing, error)
	// ParseArticle returns nil, nil for pages that are not articles.
	ParseArticle(html, url string) (*model.Article, error)
}

// Range is the scrape date window, inclusive on both ends.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range (day granularity on
// the end side).
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End.Add(24*time.Hour))
}

// Meta is the sidecar written next to every article chunk file.
type Meta struct {
	Source        string    `json:"source"`
	Bundesland    string    `json:"bundesland"`
	Start         string    `json:"start"`
	End           string    `json:"end"`
	PagesFetched  int       `json:"pages_fetched"`
	ArticlesFound int       `json:"articles_found"`
	ArticlesNew   int       `json:"articles_new"`
	StopReason    string    `json:"stop_reason"`
	ScrapedAt     time.Time `json:"scraped_at"`
	Fetch         Stats     `json:"fetch"`
}

// Runner drives discovery, parsing and emission for one site at a time.
type Runner struct {
	fetcher  *Fetcher
	cfg      config.ScrapeConfig
	cacheDir string
}

// NewRunner creates a Runner; per-site URL caches live under cacheDir.
func NewRunner(fetcher *Fetcher, cfg config.ScrapeConfig, cacheDir string) *Runner {
	if cfg.ListingBatchSize <= 0 {
		cfg.ListingBatchSize = 5
	}
	if cfg.MaxEmptyPages <= 0 {
		cfg.MaxEmptyPages = 3
	}
	return &Runner{fetcher: fetcher, cfg: cfg, cacheDir: cacheDir}
}

// Scrape walks the site's listing pages for the range and returns the new
// articles sorted by (published_at, url). The URL cache is flushed before
// returning, also on cancellation.
func (r *Runner) Scrape(ctx context.Context, site Site, rng Range) ([]model.Article, *Meta, error) {
	urls, err := NewURLCache(filepath.Join(r.cacheDir, "scraped_urls_"+site.Name()+".json"))
	if err != nil {
		return nil, nil, eris.Wrapf(err, "scraper: open url cache for %s", site.Name())
	}
	defer func() {
		if err := urls.Flush(); err != nil {
			zap.L().Error("url cache flush failed",
				zap.String("source", site.Name()), zap.Error(err))
		}
	}()

	meta := &Meta{
		Source:     site.Name(),
		Bundesland: string(site.Bundesland()),
		Start:      rng.Start.Format("2006-01-02"),
		End:        rng.End.Format("2006-01-02"),
		ScrapedAt:  time.Now().UTC(),
	}

	var candidates []Listing
	emptyStreak := 0
	stop := ""

	for page := 1; page <= maxPages && stop == ""; page += r.cfg.ListingBatchSize {
		if ctx.Err() != nil {
			stop = "cancelled"
			break
		}

		pages, err := r.fetchListingBatch(ctx, site, page)
		if err != nil {
			stop = "cancelled"
			break
		}

		for _, p := range pages {
			meta.PagesFetched++
			if len(p.entries) == 0 {
				emptyStreak++
				if emptyStreak >= r.cfg.MaxEmptyPages {
					stop = "empty_pages"
					break
				}
				continue
			}
			emptyStreak = 0
			meta.ArticlesFound += len(p.entries)

			for _, e := range p.entries {
				if e.Date.IsZero() || rng.Contains(e.Date) {
					candidates = append(candidates, e)
				}
			}

			// Newest-first portals: a fully dated page entirely before the
			// range means nothing older is relevant.
			if allBefore(p.entries, rng.Start) {
				stop = "before_range"
				break
			}
		}
	}
	if stop == "" {
		stop = "max_pages"
	}
	meta.StopReason = stop

	articles := r.fetchArticles(ctx, site, rng, candidates, urls)
	meta.ArticlesNew = len(articles)
	meta.Fetch = r.fetcher.Stats()

	sort.Slice(articles, func(i, j int) bool {
		if !articles[i].PublishedAt.Equal(articles[j].PublishedAt) {
			return articles[i].PublishedAt.Before(articles[j].PublishedAt)
		}
		return articles[i].URL < articles[j].URL
	})

	zap.L().Info("scrape complete",
		zap.String("source", site.Name()),
		zap.Int("pages", meta.PagesFetched),
		zap.Int("found", meta.ArticlesFound),
		zap.Int("new", len(articles)),
		zap.String("stop_reason", stop),
	)

	return articles, meta, nil
}

type listingPage struct {
	page    int
	entries []Listing
}

// fetchListingBatch fetches cfg.ListingBatchSize listing pages concurrently
// and returns them in page order. Failed pages come back empty; only
// cancellation is an error.
func (r *Runner) fetchListingBatch(ctx context.Context, site Site, first int) ([]listingPage, error) {
	n := r.cfg.ListingBatchSize
	pages := make([]listingPage, n)

	g, gCtx := errgroup.WithContext(ctx)
	for k := 0; k < n; k++ {
		pageNo := first + k
		g.Go(func() error {
			pages[k] = listingPage{page: pageNo}
			html, err := r.fetcher.Fetch(gCtx, site.ListingURL(pageNo))
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				zap.L().Warn("listing page fetch failed",
					zap.String("source", site.Name()), zap.Int("page", pageNo), zap.Error(err))
				return nil
			}
			entries, err := site.ParseListing(html)
			if err != nil {
				zap.L().Warn("listing page parse failed",
					zap.String("source", site.Name()), zap.Int("page", pageNo), zap.Error(err))
				return nil
			}
			pages[k].entries = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

// fetchArticles downloads and parses the candidate articles, skipping seen
// URLs and feuerwehr sources. URLs are marked only after a successful
// parse.
func (r *Runner) fetchArticles(ctx context.Context, site Site, rng Range, candidates []Listing, urls *URLCache) []model.Article {
	var mu sync.Mutex
	var articles []model.Article

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)

	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		if urls.Seen(c.URL) {
			continue
		}
		if filter.IsFeuerwehr(c.Title, "") {
			urls.Mark(c.URL)
			continue
		}

		cand := c
		g.Go(func() error {
			html, err := r.fetcher.Fetch(ctx, cand.URL)
			if err != nil {
				if eris.Is(err, ErrNotFound) {
					urls.Mark(cand.URL)
				}
				return nil
			}

			a, err := site.ParseArticle(html, cand.URL)
			if err != nil {
				zap.L().Warn("article parse failed",
					zap.String("url", cand.URL), zap.Error(err))
				return nil
			}
			if a == nil {
				urls.Mark(cand.URL)
				return nil
			}

			if a.Bundesland == "" {
				a.Bundesland = site.Bundesland()
			}
			if a.City == "" {
				a.City = cand.City
			}
			if len(cand.Hints) > 0 && a.Hints == nil {
				a.Hints = cand.Hints
			}

			if filter.IsFeuerwehr(a.Title, a.SourceAgency) {
				urls.Mark(cand.URL)
				return nil
			}
			if !rng.Contains(a.PublishedAt) {
				// Out-of-range articles stay unmarked; another chunk may
				// still want them.
				return nil
			}

			urls.Mark(cand.URL)
			mu.Lock()
			articles = append(articles, *a)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return articles
}

func allBefore(entries []Listing, start time.Time) bool {
	for _, e := range entries {
		if e.Date.IsZero() || !e.Date.Before(start) {
			return false
		}
	}
	return len(entries) > 0
}

// SaveChunk writes the article array and its .meta.json sidecar atomically.
func SaveChunk(path string, articles []model.Article, meta *Meta) error {
	data, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return eris.Wrap(err, "scraper: marshal articles")
	}
	if err := cache.WriteFileAtomic(path, data); err != nil {
		return eris.Wrapf(err, "scraper: write %s", path)
	}

	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return eris.Wrap(err, "scraper: marshal meta")
	}
	return cache.WriteFileAtomic(metaPath(path), metaData)
}

// LoadChunk reads an article chunk file written by SaveChunk. Older chunk
// files wrap the array in {"articles": [...]}; both shapes are accepted.
func LoadChunk(path string) ([]model.Article, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var articles []model.Article
	if err := json.Unmarshal(data, &articles); err == nil {
		return articles, nil
	}
	var wrapped struct {
		Articles []model.Article `json:"articles"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, eris.Wrapf(err, "scraper: parse %s", path)
	}
	return wrapped.Articles, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scraper: read %s", path)
	}
	return data, nil
}

func metaPath(chunkPath string) string {
	ext := filepath.Ext(chunkPath)
	return chunkPath[:len(chunkPath)-len(ext)] + ".meta.json"
}
