package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blaulichtkarte/blaulicht-cli/internal/orchestrate"
)

var fastCmd = &cobra.Command{
	Use:   "fast",
	Short: "Run the batch pipeline with parallel worker pools",
	Long:  "Like start, but phases all chunks through scrape, filter, enrich and push with worker pools. Shares the start flags and the same manifest.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		m, err := createManifest()
		if err != nil {
			return err
		}
		env, err := initPipelineEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		pipe := orchestrate.NewPipeline(env.deps)
		return orchestrate.NewParallel(m, pipe, cfg.Orchestrate).Run(ctx)
	},
}

func init() {
	fastCmd.Flags().StringVar(&startFrom, "start", "", "range start, YYYY-MM-DD (required)")
	fastCmd.Flags().StringVar(&startTo, "end", "", "range end, YYYY-MM-DD (default today)")
	fastCmd.Flags().StringSliceVar(&startStates, "bundeslaender", nil, "states to scrape (default all 16)")
	fastCmd.MarkFlagRequired("start")
	rootCmd.AddCommand(fastCmd)
}
