// Package live is the polling daemon: every interval it runs the full
// scrape, filter, enrich, push cycle over a rolling 24h window, tracks
// per-source health, and defers pushes the store cannot take.
package live

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/config"
	"github.com/blaulichtkarte/blaulicht-cli/internal/filter"
	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
	"github.com/blaulichtkarte/blaulicht-cli/internal/scraper"
	"github.com/blaulichtkarte/blaulicht-cli/internal/scraper/sites"
	"github.com/blaulichtkarte/blaulicht-cli/internal/store"
	"github.com/blaulichtkarte/blaulicht-cli/internal/transform"
)

// Scraper is satisfied by *scraper.Runner.
type Scraper interface {
	Scrape(ctx context.Context, site scraper.Site, rng scraper.Range) ([]model.Article, *scraper.Meta, error)
}

// Enricher is satisfied by *enrich.Engine.
type Enricher interface {
	EnrichAll(ctx context.Context, articles []model.Article) ([]model.EnrichedArticle, []model.RemovedArticle, error)
}

// Loop runs poll cycles. Sites, Interval, ArticleCap and DryRun may be
// adjusted between New and Run.
type Loop struct {
	Sites      []scraper.Site
	Interval   time.Duration
	ArticleCap int
	DryRun     bool

	cfg      *config.Config
	scraper  Scraper
	enricher Enricher
	store    store.Store
	queue    *store.Queue
	tracker  *Tracker

	mu   sync.Mutex
	last *store.Health
}

func New(cfg *config.Config, sc Scraper, en Enricher, st store.Store, q *store.Queue, tr *Tracker) *Loop {
	interval := time.Duration(cfg.Live.IntervalSecs) * time.Second
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	articleCap := cfg.Live.ArticleCap
	if articleCap <= 0 {
		articleCap = 50
	}
	return &Loop{
		Sites:      sites.All(),
		Interval:   interval,
		ArticleCap: articleCap,
		cfg:        cfg,
		scraper:    sc,
		enricher:   en,
		store:      st,
		queue:      q,
		tracker:    tr,
	}
}

// Run polls until the context is cancelled. The running cycle always
// finishes; cancellation is honored between cycles and between sources.
func (l *Loop) Run(ctx context.Context) error {
	for {
		h := l.Cycle(ctx)
		zap.L().Info("live: cycle done",
			zap.Float64("duration_s", h.DurationSecs),
			zap.Int("sources_polled", h.SourcesPolled),
			zap.Int("articles_new", h.ArticlesNew),
			zap.Int("records_upserted", h.RecordsUpserted),
			zap.Int("errors", h.Errors),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.Interval):
		}
	}
}

// Cycle runs one poll pass: drain the deferred queue, scrape every due
// source for yesterday-through-now, filter, enrich, push. Errors are
// recorded per source and in the health row; a cycle itself never fails.
func (l *Loop) Cycle(ctx context.Context) store.Health {
	start := time.Now().UTC()
	h := store.Health{StartedAt: start}

	if n, err := l.queue.Drain(ctx, l.store); err != nil {
		h.Errors++
		zap.L().Warn("live: queue drain failed, records kept", zap.Error(err))
	} else if n > 0 {
		h.RecordsUpserted += n
		zap.L().Info("live: drained deferred queue", zap.Int("records", n))
	}

	rng := scraper.Range{Start: start.AddDate(0, 0, -1), End: start}

	var articles []model.Article
	for _, site := range l.Sites {
		if ctx.Err() != nil {
			break
		}
		name := site.Name()
		if !l.tracker.ShouldPoll(name) {
			zap.L().Info("live: source in backoff, skipped", zap.String("source", name))
			continue
		}

		got, meta, err := l.scraper.Scrape(ctx, site, rng)
		h.SourcesPolled++
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			l.tracker.Failure(name, err.Error())
			h.Errors++
			zap.L().Warn("live: source poll failed", zap.String("source", name), zap.Error(err))
			continue
		}
		if len(got) > l.ArticleCap {
			zap.L().Warn("live: article cap hit",
				zap.String("source", name),
				zap.Int("found", len(got)),
				zap.Int("cap", l.ArticleCap),
			)
			got = got[:l.ArticleCap]
		}
		l.tracker.Success(name, len(got), time.Now())
		h.ArticlesFound += meta.ArticlesFound
		h.ArticlesNew += len(got)
		articles = append(articles, got...)
	}

	if len(articles) > 0 && ctx.Err() == nil {
		kept, _ := filter.Apply(articles)
		kept = filter.Group(kept)
		l.pushArticles(ctx, kept, &h)
	}

	h.DurationSecs = time.Since(start).Seconds()
	l.finishCycle(ctx, h)
	return h
}

func (l *Loop) pushArticles(ctx context.Context, kept []model.Article, h *store.Health) {
	if len(kept) == 0 {
		return
	}
	enriched, _, err := l.enricher.EnrichAll(ctx, kept)
	if err != nil {
		h.Errors++
		zap.L().Error("live: enrichment failed", zap.Error(err))
		return
	}
	records := transform.Records(enriched, l.cfg.Pipeline.RunTag)
	if len(records) == 0 {
		return
	}
	if l.DryRun {
		zap.L().Info("live: dry run, records not pushed", zap.Int("records", len(records)))
		return
	}
	if err := l.store.UpsertRecords(ctx, records); err != nil {
		h.Errors++
		zap.L().Warn("live: push failed, deferring records", zap.Error(err))
		if qerr := l.queue.Enqueue(records); qerr != nil {
			zap.L().Error("live: could not defer records", zap.Error(qerr))
		}
		return
	}
	h.RecordsUpserted += len(records)
}

// finishCycle persists poll state and the health row. All of it is
// best-effort: the next cycle runs regardless.
func (l *Loop) finishCycle(ctx context.Context, h store.Health) {
	if err := l.tracker.Save(); err != nil {
		zap.L().Warn("live: poll state save failed", zap.Error(err))
	}
	if err := l.store.UpsertPollState(ctx, l.tracker.Snapshot()); err != nil {
		zap.L().Warn("live: poll state mirror failed", zap.Error(err))
	}
	if !l.DryRun {
		if err := l.store.InsertHealth(ctx, h); err != nil {
			zap.L().Warn("live: health insert failed", zap.Error(err))
		}
	}

	l.mu.Lock()
	l.last = &h
	l.mu.Unlock()
}

// LastHealth returns the most recent cycle summary, nil before the first.
func (l *Loop) LastHealth() *store.Health {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil {
		return nil
	}
	h := *l.last
	return &h
}
