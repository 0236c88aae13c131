package scraper

import (
	"time"

	"github.com/blaulichtkarte/blaulicht-cli/internal/cache"
)

// URLCache is one scraper's persistent set of already-scraped URLs, stored
// as url -> ISO timestamp. A URL is marked only after its article parsed
// successfully, so a crash re-scrapes rather than skips.
type URLCache struct {
	m *cache.Map[string]
}

// NewURLCache loads (or creates) the cache at path.
func NewURLCache(path string) (*URLCache, error) {
	m, err := cache.NewMap[string](path, 50)
	if err != nil {
		return nil, err
	}
	return &URLCache{m: m}, nil
}

// Seen reports whether url was already scraped.
func (c *URLCache) Seen(url string) bool {
	_, ok := c.m.Get(url)
	return ok
}

// Mark records url as scraped now.
func (c *URLCache) Mark(url string) {
	c.m.Put(url, time.Now().UTC().Format(time.RFC3339))
}

// Len returns the number of known URLs.
func (c *URLCache) Len() int { return c.m.Len() }

// Flush persists the cache to disk.
func (c *URLCache) Flush() error { return c.m.Flush() }
