// Package scraper is the shared framework all site scrapers run on: a
// rate-limited HTTP fetcher with a retry ladder, a persistent seen-URL
// cache and the discovery/parse/emit runner.
package scraper

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/blaulichtkarte/blaulicht-cli/internal/config"
)

// ErrNotFound marks a 404; callers skip the URL without retrying.
var ErrNotFound = eris.New("scraper: not found")

// Stats counts fetch outcomes across one scraper run.
type Stats struct {
	Successes int `json:"successes"`
	Errors    int `json:"errors"`
	Retries   int `json:"retries"`
}

// Fetcher is the shared HTTP client: a global concurrency semaphore, a
// global rate limiter, and a per-request retry ladder. 429 and 403 back
// off exponentially with jitter (state portals use 403 as a soft block),
// transient network errors and 5xx sleep a short fixed delay, 404 and
// other 4xx never retry.
type Fetcher struct {
	client  *http.Client
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	cfg     config.ScrapeConfig

	baseDelay      time.Duration
	maxDelay       time.Duration
	transientDelay time.Duration

	mu    sync.Mutex
	stats Stats
}

// NewFetcher creates a Fetcher from config, filling in defaults.
func NewFetcher(cfg config.ScrapeConfig) *Fetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 12
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = 30
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 8
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "blaulicht-cli/1.0"
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Fetcher{
		client: &http.Client{
			Timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
			Transport: transport,
		},
		sem:            semaphore.NewWeighted(int64(cfg.Concurrency)),
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.RequestsPerSec),
		cfg:            cfg,
		baseDelay:      2 * time.Second,
		maxDelay:       60 * time.Second,
		transientDelay: 3 * time.Second,
	}
}

// Fetch downloads one URL and returns its body text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return "", eris.Wrap(err, "scraper: acquire fetch slot")
	}
	defer f.sem.Release(1)

	var lastErr error
	for attempt := 0; attempt < f.cfg.MaxRetries; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "scraper: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			f.countError()
			return "", eris.Wrapf(err, "scraper: build request %s", rawURL)
		}
		req.Header.Set("User-Agent", f.cfg.UserAgent)
		req.Header.Set("Accept-Language", "de-DE,de;q=0.9")

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", eris.Wrap(ctx.Err(), "scraper: fetch cancelled")
			}
			lastErr = err
			zap.L().Warn("fetch failed, retrying",
				zap.String("url", rawURL), zap.Int("attempt", attempt+1), zap.Error(err))
			f.countRetry()
			f.sleep(ctx, f.transientDelay)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if err != nil {
				lastErr = err
				f.countRetry()
				f.sleep(ctx, f.transientDelay)
				continue
			}
			f.countSuccess()
			return string(body), nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("scraper: http %d from %s", resp.StatusCode, rawURL)
			zap.L().Warn("rate limited, backing off",
				zap.String("url", rawURL), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt+1))
			f.countRetry()
			f.sleep(ctx, f.backoff(attempt))
			continue

		case resp.StatusCode == http.StatusNotFound:
			_ = resp.Body.Close()
			f.countError()
			return "", eris.Wrapf(ErrNotFound, "%s", rawURL)

		case resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("scraper: http %d from %s", resp.StatusCode, rawURL)
			f.countRetry()
			f.sleep(ctx, f.transientDelay)
			continue

		default:
			_ = resp.Body.Close()
			f.countError()
			return "", eris.Errorf("scraper: http %d from %s", resp.StatusCode, rawURL)
		}
	}

	f.countError()
	return "", eris.Wrapf(lastErr, "scraper: retries exhausted for %s", rawURL)
}

// backoff computes base*2^attempt with additive jitter, capped at maxDelay.
func (f *Fetcher) backoff(attempt int) time.Duration {
	d := time.Duration(float64(f.baseDelay) * math.Pow(2, float64(attempt)))
	if d > f.maxDelay {
		d = f.maxDelay
	}
	return d + time.Duration(rand.Int64N(int64(d)/2+1))
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Stats returns a snapshot of the fetch counters.
func (f *Fetcher) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *Fetcher) countSuccess() { f.mu.Lock(); f.stats.Successes++; f.mu.Unlock() }
func (f *Fetcher) countError()   { f.mu.Lock(); f.stats.Errors++; f.mu.Unlock() }
func (f *Fetcher) countRetry()   { f.mu.Lock(); f.stats.Retries++; f.mu.Unlock() }
