package main

import (
	"os/signal"
	"sort"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/orchestrate"
)

// stageChunk limits a single-stage command to one chunk.
var stageChunk string

// runStage executes one pipeline stage over the selected chunks without
// touching their lifecycle status; chunk status stays owned by the
// orchestrators.
func runStage(cmd *cobra.Command, name string, pick func(*pipelineEnv) orchestrate.Stage) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := openManifest()
	if err != nil {
		return err
	}
	env, err := initPipelineEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	stage := pick(env)

	var ids []string
	for id := range m.Chunks {
		if stageChunk == "" || id == stageChunk {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return eris.Errorf("no chunks match %q", stageChunk)
	}
	sort.Strings(ids)

	var failed int
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := stage(ctx, m, id); err != nil {
			failed++
			zap.L().Error("stage failed", zap.String("stage", name), zap.String("chunk", id), zap.Error(err))
		}
	}
	if failed > 0 {
		return eris.Errorf("%s failed for %d of %d chunks", name, failed, len(ids))
	}
	return nil
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape raw articles for existing chunks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, "scrape", func(e *pipelineEnv) orchestrate.Stage { return e.deps.ScrapeStage })
	},
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Pre-filter and group scraped articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, "filter", func(e *pipelineEnv) orchestrate.Stage { return e.deps.FilterStage })
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Classify and extract filtered articles via the LLM",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, "enrich", func(e *pipelineEnv) orchestrate.Stage { return e.deps.EnrichStage })
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upsert enriched records into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, "push", func(e *pipelineEnv) orchestrate.Stage { return e.deps.PushStage })
	},
}

func init() {
	for _, c := range []*cobra.Command{scrapeCmd, filterCmd, enrichCmd, pushCmd} {
		c.Flags().StringVar(&stageChunk, "chunk", "", "restrict to one chunk (YYYY-MM)")
		rootCmd.AddCommand(c)
	}
}
