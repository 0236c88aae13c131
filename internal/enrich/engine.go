// Package enrich is the LLM enrichment engine: batched classification and
// extraction of incident data with a persistent result cache, bounded
// concurrency and a retry ladder for the shared-rate-limit provider.
package enrich

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/blaulichtkarte/blaulicht-cli/internal/cache"
	"github.com/blaulichtkarte/blaulicht-cli/internal/config"
	"github.com/blaulichtkarte/blaulicht-cli/internal/geocode"
	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
	"github.com/blaulichtkarte/blaulicht-cli/internal/resilience"
	"github.com/blaulichtkarte/blaulicht-cli/pkg/anthropic"
)

// Engine drives LLM enrichment for batches of articles.
type Engine struct {
	llm           anthropic.Client
	geo           *geocode.Geocoder
	cache         *cache.Map[json.RawMessage]
	usage         *UsageLog
	ai            config.AnthropicConfig
	batchSize     int
	concurrency   int
	promptVersion string
	policy        resilience.Policy

	mu       sync.Mutex
	counters resilience.Counters
}

// NewEngine creates an Engine. The enrichment cache is loaded from
// cachePath; token usage is appended to usagePath.
func NewEngine(llm anthropic.Client, geo *geocode.Geocoder, cachePath, usagePath string, ai config.AnthropicConfig, cfg config.EnrichConfig, promptVersion string) (*Engine, error) {
	saveEvery := cfg.CacheSaveInterval
	if saveEvery <= 0 {
		saveEvery = 500
	}
	c, err := cache.NewMap[json.RawMessage](cachePath, saveEvery)
	if err != nil {
		return nil, err
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 6
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 30
	}
	if ai.MaxTokens <= 0 {
		ai.MaxTokens = 4096
	}

	policy := resilience.Policy{
		MaxAttempts: cfg.MaxRetries,
		MaxDelay:    time.Duration(cfg.MaxDelaySecs) * time.Second,
		OnRetry:     resilience.RetryLogger("enrich", "batch"),
	}

	return &Engine{
		llm:           llm,
		geo:           geo,
		cache:         c,
		usage:         NewUsageLog(usagePath),
		ai:            ai,
		batchSize:     batchSize,
		concurrency:   concurrency,
		promptVersion: promptVersion,
		policy:        policy,
	}, nil
}

// cacheKey identifies an article's enrichment result. The prompt version is
// part of the key so prompt changes invalidate without wiping the file.
func (e *Engine) cacheKey(a model.Article) string {
	return cache.Key16(a.URL, a.Body, e.promptVersion)
}

// articleResult collects the outcome for one input article.
type articleResult struct {
	enriched []model.EnrichedArticle
	removed  *model.RemovedArticle
}

// EnrichAll classifies and extracts every article, cache-first. Cached junk
// and feuerwehr sentinels land in removed without an LLM call. Uncached
// articles are batched and run under a bounded semaphore; once ctx is
// cancelled no new batches start, batches already in flight finish, and the
// cache is flushed synchronously before returning.
func (e *Engine) EnrichAll(ctx context.Context, articles []model.Article) ([]model.EnrichedArticle, []model.RemovedArticle, error) {
	results := make([]articleResult, len(articles))

	var pending []int
	cacheHits := 0
	for i, a := range articles {
		cached, ok := e.getCached(a)
		if !ok {
			pending = append(pending, i)
			continue
		}
		cacheHits++
		results[i] = e.resolveCached(a, cached)
	}

	batches := makeBatches(pending, e.batchSize)

	sem := semaphore.NewWeighted(int64(e.concurrency))
	var g errgroup.Group

	launched := 0
	for _, batch := range batches {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		launched++
		indexes := batch
		g.Go(func() error {
			defer sem.Release(1)
			// In-flight work is not cancelled; shutdown only stops new
			// batches from starting.
			e.processBatch(context.WithoutCancel(ctx), articles, indexes, results)
			return nil
		})
	}
	_ = g.Wait()

	if err := e.cache.Flush(); err != nil {
		zap.L().Error("enrich: cache flush failed", zap.Error(err))
	}

	var enriched []model.EnrichedArticle
	var removed []model.RemovedArticle
	for _, r := range results {
		enriched = append(enriched, r.enriched...)
		if r.removed != nil {
			removed = append(removed, *r.removed)
		}
	}

	e.mu.Lock()
	counters := e.counters
	e.mu.Unlock()

	zap.L().Info("enrichment complete",
		zap.Int("articles", len(articles)),
		zap.Int("cache_hits", cacheHits),
		zap.Int("batches", launched),
		zap.Int("enriched", len(enriched)),
		zap.Int("removed", len(removed)),
		zap.Int("retries", counters.Retries),
		zap.Int("permanent_errors", counters.Permanent),
	)

	return enriched, removed, ctx.Err()
}

// processBatch runs one LLM call for the articles at the given indexes and
// writes its outcome into results. Slots are disjoint per batch, so no
// locking is needed on results.
func (e *Engine) processBatch(ctx context.Context, articles []model.Article, indexes []int, results []articleResult) {
	batch := make([]model.Article, len(indexes))
	for k, i := range indexes {
		batch[k] = articles[i]
	}

	temp := e.ai.Temperature
	req := anthropic.CompletionRequest{
		Model:       e.ai.Model,
		System:      systemPrompt,
		Prompt:      buildBatchPrompt(batch),
		MaxTokens:   int64(e.ai.MaxTokens),
		Temperature: &temp,
	}

	var local resilience.Counters
	resp, err := resilience.Retry(ctx, e.policy, &local, func(ctx context.Context) (*anthropic.Completion, error) {
		return e.llm.Complete(ctx, req)
	})

	e.mu.Lock()
	e.counters.Successes += local.Successes
	e.counters.Retries += local.Retries
	e.counters.Permanent += local.Permanent
	e.mu.Unlock()

	if err != nil {
		// A failed batch yields nothing; no cache entries are written so a
		// later run asks again.
		zap.L().Warn("enrich: batch failed",
			zap.Int("batch_size", len(batch)), zap.Error(err))
		return
	}

	e.usage.Record(resp, len(batch))

	grouped, err := ParseBatch(resp.Text, len(batch))
	if err != nil {
		zap.L().Warn("enrich: unparseable batch response",
			zap.Int("batch_size", len(batch)), zap.Error(err))
		return
	}

	for k, i := range indexes {
		objs := grouped[k]
		if len(objs) == 0 {
			// No verdict for this article; leave it uncached.
			continue
		}
		results[i] = e.resolveFresh(ctx, articles[i], objs)
	}
}

// resolveFresh post-processes the model output for one article: removal
// sentinels are cached as-is, extractions are geocoded and cached with
// their coordinates.
func (e *Engine) resolveFresh(ctx context.Context, a model.Article, objs []model.Enrichment) articleResult {
	if first := objs[0]; first.IsRemoval() {
		sentinel := model.Enrichment{
			Classification: first.Classification,
			Reason:         first.Reason,
		}
		e.putCached(a, []model.Enrichment{sentinel})
		return articleResult{removed: &model.RemovedArticle{
			Article:       a,
			RemovalReason: "llm:" + string(first.Classification),
		}}
	}

	var res articleResult
	kept := make([]model.Enrichment, 0, len(objs))
	for _, obj := range objs {
		if obj.IsRemoval() {
			continue
		}
		e.locate(ctx, a, &obj)
		kept = append(kept, obj)
		res.enriched = append(res.enriched, model.EnrichedArticle{Article: a, Enrichment: obj})
	}
	if len(kept) > 0 {
		e.putCached(a, kept)
	}
	return res
}

// locate geocodes one enrichment in place, falling back to the article's
// own city and state for fields the model left empty.
func (e *Engine) locate(ctx context.Context, a model.Article, obj *model.Enrichment) {
	if obj.Location == nil {
		obj.Location = &model.Location{}
	}
	loc := obj.Location
	if loc.City == "" {
		loc.City = a.City
	}
	if loc.Bundesland == "" {
		loc.Bundesland = a.Bundesland
	}

	coords := e.geo.Resolve(ctx, geocode.Query{
		Street:       loc.Street,
		HouseNumber:  loc.HouseNumber,
		District:     loc.District,
		City:         loc.City,
		LocationHint: loc.LocationHint,
		CrossStreet:  loc.CrossStreet,
		Bundesland:   loc.Bundesland,
	})
	loc.Lat = coords.Lat
	loc.Lon = coords.Lon
	loc.Precision = coords.Precision
}

// resolveCached rebuilds the outcome for an article from its cache entry.
func (e *Engine) resolveCached(a model.Article, cached []model.Enrichment) articleResult {
	if len(cached) == 0 {
		return articleResult{}
	}
	if first := cached[0]; first.IsRemoval() {
		return articleResult{removed: &model.RemovedArticle{
			Article:       a,
			RemovalReason: "llm:" + string(first.Classification),
		}}
	}
	var res articleResult
	for _, obj := range cached {
		if obj.IsRemoval() {
			continue
		}
		res.enriched = append(res.enriched, model.EnrichedArticle{Article: a, Enrichment: obj})
	}
	return res
}

func (e *Engine) getCached(a model.Article) ([]model.Enrichment, bool) {
	raw, ok := e.cache.Get(e.cacheKey(a))
	if !ok {
		return nil, false
	}
	list, err := model.DecodeCachedEnrichments(raw)
	if err != nil {
		zap.L().Warn("enrich: discarding corrupt cache entry",
			zap.String("url", a.URL), zap.Error(err))
		return nil, false
	}
	return list, true
}

func (e *Engine) putCached(a model.Article, list []model.Enrichment) {
	raw, err := json.Marshal(list)
	if err != nil {
		zap.L().Warn("enrich: cache marshal failed",
			zap.String("url", a.URL), zap.Error(err))
		return
	}
	e.cache.Put(e.cacheKey(a), raw)
}

// Flush persists the enrichment cache.
func (e *Engine) Flush() error {
	return e.cache.Flush()
}

// makeBatches splits indexes into runs of at most size.
func makeBatches(indexes []int, size int) [][]int {
	var batches [][]int
	for len(indexes) > 0 {
		n := size
		if n > len(indexes) {
			n = len(indexes)
		}
		batches = append(batches, indexes[:n])
		indexes = indexes[n:]
	}
	return batches
}
