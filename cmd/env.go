package main

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/enrich"
	"github.com/blaulichtkarte/blaulicht-cli/internal/geocode"
	"github.com/blaulichtkarte/blaulicht-cli/internal/manifest"
	"github.com/blaulichtkarte/blaulicht-cli/internal/orchestrate"
	"github.com/blaulichtkarte/blaulicht-cli/internal/scraper"
	"github.com/blaulichtkarte/blaulicht-cli/internal/store"
	anthropicpkg "github.com/blaulichtkarte/blaulicht-cli/pkg/anthropic"
	geocodepkg "github.com/blaulichtkarte/blaulicht-cli/pkg/geocode"
)

func manifestPath() string {
	return filepath.Join(cfg.Paths.DataDir, "manifest.json")
}

func cachePath(name string) string {
	return filepath.Join(cfg.Paths.CacheDir, name)
}

func openManifest() (*manifest.Manifest, error) {
	m, err := manifest.Load(manifestPath())
	if err != nil {
		return nil, eris.Wrapf(err, "load manifest %s (run start first?)", manifestPath())
	}
	return m, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initScraper() *scraper.Runner {
	return scraper.NewRunner(scraper.NewFetcher(cfg.Scrape), cfg.Scrape, cfg.Paths.CacheDir)
}

func initEnricher() (*enrich.Engine, *geocode.Geocoder, error) {
	llm := anthropicpkg.NewClient(cfg.Anthropic.Key)
	geo, err := geocode.New(
		geocodepkg.NewHTTPClient(cfg.Geocode.BaseURL, cfg.Geocode.Key),
		cachePath("geocode_cache.json"),
		cfg.Geocode,
	)
	if err != nil {
		return nil, nil, err
	}

	engine, err := enrich.NewEngine(
		llm, geo,
		cachePath("enrichment_cache.json"),
		cachePath("token_usage.jsonl"),
		cfg.Anthropic, cfg.Enrich, cfg.Pipeline.PromptVersion,
	)
	if err != nil {
		return nil, nil, err
	}
	return engine, geo, nil
}

// pipelineEnv bundles everything the batch commands need.
type pipelineEnv struct {
	deps   orchestrate.Deps
	engine *enrich.Engine
	geo    *geocode.Geocoder
	store  store.Store
}

func initPipelineEnv(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	engine, geo, err := initEnricher()
	if err != nil {
		st.Close()
		return nil, err
	}

	return &pipelineEnv{
		deps: orchestrate.Deps{
			Cfg:      cfg,
			Scraper:  initScraper(),
			Enricher: engine,
			Store:    st,
		},
		engine: engine,
		geo:    geo,
		store:  st,
	}, nil
}

// Close flushes the caches and releases the store. Flush failures are
// logged, not returned: at shutdown there is nothing left to retry.
func (e *pipelineEnv) Close() {
	if err := e.engine.Flush(); err != nil {
		zap.L().Warn("enrichment cache flush failed", zap.Error(err))
	}
	if err := e.geo.Flush(); err != nil {
		zap.L().Warn("geocode cache flush failed", zap.Error(err))
	}
	if err := e.store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}
