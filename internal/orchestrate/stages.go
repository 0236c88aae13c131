package orchestrate

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/cache"
	"github.com/blaulichtkarte/blaulicht-cli/internal/config"
	"github.com/blaulichtkarte/blaulicht-cli/internal/filter"
	"github.com/blaulichtkarte/blaulicht-cli/internal/manifest"
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

// Deps holds the collaborators the concrete stages are built from.
type Deps struct {
	Cfg      *config.Config
	Scraper  Scraper
	Enricher Enricher
	Store    store.Store
}

// NewPipeline wires the full scrape-filter-enrich-push pipeline.
func NewPipeline(d Deps) *Pipeline {
	return &Pipeline{
		Scrape: d.ScrapeStage,
		Filter: d.FilterStage,
		Enrich: d.EnrichStage,
		Push:   d.PushStage,
	}
}

func (d Deps) bundeslaender(m *manifest.Manifest) []model.Bundesland {
	if len(m.Config.Bundeslaender) == 0 {
		return sitesAll()
	}
	out := make([]model.Bundesland, 0, len(m.Config.Bundeslaender))
	for _, s := range m.Config.Bundeslaender {
		if bl, ok := model.ParseBundesland(s); ok {
			out = append(out, bl)
		}
	}
	return out
}

func sitesAll() []model.Bundesland {
	return append([]model.Bundesland(nil), model.AllBundeslaender...)
}

// ScrapeStage scrapes every configured state for the chunk's date range,
// one raw file per state. Finished states are recorded in the chunk so a
// crashed run resumes without re-scraping them.
func (d Deps) ScrapeStage(ctx context.Context, m *manifest.Manifest, id string) error {
	c, ok := m.Chunk(id)
	if !ok {
		return eris.Errorf("orchestrate: unknown chunk %s", id)
	}
	rng := scraper.Range{Start: c.StartDate, End: c.EndDate}

	for _, bl := range d.bundeslaender(m) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.BundeslandDone(bl) {
			continue
		}

		var articles []model.Article
		agg := &scraper.Meta{
			Source:     string(bl),
			Bundesland: string(bl),
			Start:      c.StartDate.Format("2006-01-02"),
			End:        c.EndDate.Format("2006-01-02"),
			ScrapedAt:  time.Now().UTC(),
		}
		for _, site := range sites.ForBundesland(bl) {
			got, meta, err := d.Scraper.Scrape(ctx, site, rng)
			if err != nil {
				return eris.Wrapf(err, "orchestrate: scrape %s", site.Name())
			}
			articles = append(articles, got...)
			agg.PagesFetched += meta.PagesFetched
			agg.ArticlesFound += meta.ArticlesFound
			agg.ArticlesNew += meta.ArticlesNew
			agg.Fetch.Successes += meta.Fetch.Successes
			agg.Fetch.Errors += meta.Fetch.Errors
			agg.Fetch.Retries += meta.Fetch.Retries
			agg.StopReason = meta.StopReason
		}

		path, err := manifest.StateFile(d.Cfg.Paths.DataDir, manifest.StageRaw, bl, id)
		if err != nil {
			return err
		}
		if err := scraper.SaveChunk(path, articles, agg); err != nil {
			return err
		}
		if err := m.Update(id, func(c *manifest.Chunk) { c.MarkBundeslandDone(bl) }); err != nil {
			return err
		}
		zap.L().Info("orchestrate: state scraped",
			zap.String("chunk", id),
			zap.String("bundesland", string(bl)),
			zap.Int("articles", len(articles)),
		)
		c, _ = m.Chunk(id)
	}
	return nil
}

// FilterStage merges the chunk's raw state files, drops junk and groups
// incidents, and writes the consolidated article file enrichment reads.
func (d Deps) FilterStage(ctx context.Context, m *manifest.Manifest, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, ok := m.Chunk(id)
	if !ok {
		return eris.Errorf("orchestrate: unknown chunk %s", id)
	}

	var articles []model.Article
	for _, blStr := range c.BundeslaenderCompleted {
		path, err := manifest.StateFile(d.Cfg.Paths.DataDir, manifest.StageRaw, model.Bundesland(blStr), id)
		if err != nil {
			return err
		}
		got, err := scraper.LoadChunk(path)
		if err != nil {
			if os.IsNotExist(eris.Cause(err)) {
				continue
			}
			return err
		}
		articles = append(articles, got...)
	}

	kept, removed := filter.Apply(articles)
	kept = filter.Group(kept)

	keptPath, err := manifest.File(d.Cfg.Paths.DataDir, manifest.StageFiltered, "filtered", id)
	if err != nil {
		return err
	}
	if err := writeJSON(keptPath, kept); err != nil {
		return err
	}
	removedPath, err := manifest.File(d.Cfg.Paths.DataDir, manifest.StageFiltered, "removed", id)
	if err != nil {
		return err
	}
	if err := writeJSON(removedPath, removed); err != nil {
		return err
	}

	zap.L().Info("orchestrate: chunk filtered",
		zap.String("chunk", id),
		zap.Int("kept", len(kept)),
		zap.Int("removed", len(removed)),
	)
	return m.Update(id, func(c *manifest.Chunk) {
		c.RawFile = keptPath
		c.ArticlesCount = len(kept)
	})
}

// EnrichStage runs the LLM engine over the filtered articles and writes the
// normalized records.
func (d Deps) EnrichStage(ctx context.Context, m *manifest.Manifest, id string) error {
	c, ok := m.Chunk(id)
	if !ok {
		return eris.Errorf("orchestrate: unknown chunk %s", id)
	}
	if c.RawFile == "" {
		return eris.Errorf("orchestrate: chunk %s has no filtered articles", id)
	}

	articles, err := scraper.LoadChunk(c.RawFile)
	if err != nil {
		return err
	}

	enriched, removed, err := d.Enricher.EnrichAll(ctx, articles)
	if err != nil {
		return err
	}
	records := transform.Records(enriched, d.Cfg.Pipeline.RunTag)

	path, err := manifest.File(d.Cfg.Paths.DataDir, manifest.StageEnriched, "enriched", id)
	if err != nil {
		return err
	}
	if err := writeJSON(path, records); err != nil {
		return err
	}

	zap.L().Info("orchestrate: chunk enriched",
		zap.String("chunk", id),
		zap.Int("records", len(records)),
		zap.Int("removed_by_llm", len(removed)),
	)
	return m.Update(id, func(c *manifest.Chunk) {
		c.EnrichedFile = path
		c.EnrichedCount = len(records)
	})
}

// PushStage upserts the chunk's records into the external store.
func (d Deps) PushStage(ctx context.Context, m *manifest.Manifest, id string) error {
	c, ok := m.Chunk(id)
	if !ok {
		return eris.Errorf("orchestrate: unknown chunk %s", id)
	}
	if c.EnrichedFile == "" {
		return eris.Errorf("orchestrate: chunk %s has no enriched records", id)
	}

	records, err := LoadRecords(c.EnrichedFile)
	if err != nil {
		return err
	}
	if err := d.Store.UpsertRecords(ctx, records); err != nil {
		return err
	}

	zap.L().Info("orchestrate: chunk pushed",
		zap.String("chunk", id),
		zap.Int("records", len(records)),
	)
	return nil
}

// LoadRecords reads a normalized record chunk file.
func LoadRecords(path string) ([]model.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrate: read %s", path)
	}
	var records []model.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrapf(err, "orchestrate: parse %s", path)
	}
	return records, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "orchestrate: marshal %s", path)
	}
	return eris.Wrap(cache.WriteFileAtomic(path, data), "orchestrate: write")
}
