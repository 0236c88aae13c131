package orchestrate

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blaulichtkarte/blaulicht-cli/internal/config"
	"github.com/blaulichtkarte/blaulicht-cli/internal/manifest"
)

// Parallel runs the pipeline as phased worker pools: every chunk passes
// through a phase before any chunk enters the next one. Scrape and filter
// share the wide pool; enrich and push use the narrow one because LLM cost
// and latency dominate.
type Parallel struct {
	man           *manifest.Manifest
	pipe          *Pipeline
	scrapeWorkers int
	enrichWorkers int
}

func NewParallel(man *manifest.Manifest, pipe *Pipeline, cfg config.OrchestrateConfig) *Parallel {
	scrape := cfg.ScrapeWorkers
	if scrape <= 0 {
		scrape = 8
	}
	enrich := cfg.EnrichWorkers
	if enrich <= 0 {
		enrich = 4
	}
	return &Parallel{man: man, pipe: pipe, scrapeWorkers: scrape, enrichWorkers: enrich}
}

func (p *Parallel) workersFor(stage string) int {
	if stage == "enrich" || stage == "push" {
		return p.enrichWorkers
	}
	return p.scrapeWorkers
}

// Run drains all pending chunks phase by phase. A chunk failing a phase is
// marked failed and drops out of later phases; cancellation parks the
// remaining chunks back in pending.
func (p *Parallel) Run(ctx context.Context) error {
	if n, err := p.man.ResetInProgress(); err != nil {
		return err
	} else if n > 0 {
		zap.L().Info("orchestrate: recovered crashed chunks", zap.Int("chunks", n))
	}

	var active []string
	for _, c := range p.man.Pending() {
		active = append(active, c.YearMonth)
	}
	for _, id := range active {
		if err := p.man.UpdateStatus(id, manifest.StatusInProgress, ""); err != nil {
			return err
		}
	}

	for _, phase := range p.pipe.stages() {
		if ctx.Err() != nil || len(active) == 0 {
			break
		}

		var mu sync.Mutex
		failed := make(map[string]string)

		var g errgroup.Group
		g.SetLimit(p.workersFor(phase.name))
		for _, id := range active {
			g.Go(func() error {
				// Shutdown skips new work; the running phase call finishes.
				if ctx.Err() != nil {
					return nil
				}
				if err := phase.fn(ctx, p.man, id); err != nil && ctx.Err() == nil {
					mu.Lock()
					failed[id] = err.Error()
					mu.Unlock()
					zap.L().Warn("orchestrate: phase failed",
						zap.String("phase", phase.name),
						zap.String("chunk", id),
						zap.Error(err),
					)
				}
				return nil
			})
		}
		_ = g.Wait()

		survivors := active[:0]
		for _, id := range active {
			if msg, ok := failed[id]; ok {
				if err := p.man.UpdateStatus(id, manifest.StatusFailed, msg); err != nil {
					return err
				}
				continue
			}
			survivors = append(survivors, id)
		}
		active = survivors

		zap.L().Info("orchestrate: phase done",
			zap.String("phase", phase.name),
			zap.Int("chunks", len(active)),
			zap.Int("failed", len(failed)),
		)
	}

	if ctx.Err() != nil {
		for _, id := range active {
			if err := p.man.UpdateStatus(id, manifest.StatusPending, ""); err != nil {
				return err
			}
		}
		return ctx.Err()
	}

	for _, id := range active {
		if err := p.man.UpdateStatus(id, manifest.StatusCompleted, ""); err != nil {
			return err
		}
	}

	sum := p.man.Summary()
	zap.L().Info("orchestrate: parallel run done",
		zap.Int("completed", sum.Completed),
		zap.Int("failed", sum.Failed),
		zap.Int("articles", sum.TotalArticles),
		zap.Int("enriched", sum.TotalEnriched),
	)
	return nil
}
