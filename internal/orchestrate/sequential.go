package orchestrate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/config"
	"github.com/blaulichtkarte/blaulicht-cli/internal/manifest"
)

// Sequential processes chunks one at a time, retrying a failed chunk with
// growing backoff before marking it failed. Predictable progress makes it
// the right choice for first runs and debugging.
type Sequential struct {
	man        *manifest.Manifest
	pipe       *Pipeline
	maxRetries int
	backoff    []time.Duration
}

func NewSequential(man *manifest.Manifest, pipe *Pipeline, cfg config.OrchestrateConfig) *Sequential {
	retries := cfg.ChunkRetries
	if retries <= 0 {
		retries = 3
	}
	return &Sequential{
		man:        man,
		pipe:       pipe,
		maxRetries: retries,
		backoff:    []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute},
	}
}

// Run drains all pending chunks. A chunk that exhausts its retries is
// marked failed and the run moves on; only cancellation aborts the run.
func (s *Sequential) Run(ctx context.Context) error {
	if n, err := s.man.ResetInProgress(); err != nil {
		return err
	} else if n > 0 {
		zap.L().Info("orchestrate: recovered crashed chunks", zap.Int("chunks", n))
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := s.man.NextPending()
		if c == nil {
			break
		}
		if err := s.runChunk(ctx, c.YearMonth); err != nil {
			return err
		}
	}

	sum := s.man.Summary()
	zap.L().Info("orchestrate: sequential run done",
		zap.Int("completed", sum.Completed),
		zap.Int("failed", sum.Failed),
		zap.Int("articles", sum.TotalArticles),
		zap.Int("enriched", sum.TotalEnriched),
	)
	return nil
}

func (s *Sequential) runChunk(ctx context.Context, id string) error {
	for attempt := 0; ; attempt++ {
		if err := s.man.UpdateStatus(id, manifest.StatusInProgress, ""); err != nil {
			return err
		}

		err := s.pipe.run(ctx, s.man, id)
		if err == nil {
			return s.man.UpdateStatus(id, manifest.StatusCompleted, "")
		}
		if ctx.Err() != nil {
			// Interrupted, not failed: the next run picks the chunk up again.
			if uerr := s.man.UpdateStatus(id, manifest.StatusPending, ""); uerr != nil {
				return uerr
			}
			return ctx.Err()
		}

		if uerr := s.man.Update(id, func(c *manifest.Chunk) { c.Retries++ }); uerr != nil {
			return uerr
		}
		if attempt >= s.maxRetries {
			zap.L().Error("orchestrate: chunk failed permanently",
				zap.String("chunk", id), zap.Int("attempts", attempt+1), zap.Error(err))
			return s.man.UpdateStatus(id, manifest.StatusFailed, err.Error())
		}

		delay := s.backoff[min(attempt, len(s.backoff)-1)]
		zap.L().Warn("orchestrate: chunk attempt failed, backing off",
			zap.String("chunk", id),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			if uerr := s.man.UpdateStatus(id, manifest.StatusPending, ""); uerr != nil {
				return uerr
			}
			return ctx.Err()
		}
	}
}
