package main

import (
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/blaulichtkarte/blaulicht-cli/internal/manifest"
	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
	"github.com/blaulichtkarte/blaulicht-cli/internal/orchestrate"
)

var (
	startFrom   string
	startTo     string
	startStates []string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the batch pipeline sequentially, one month chunk at a time",
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
		return orchestrate.NewSequential(m, pipe, cfg.Orchestrate).Run(ctx)
	},
}

func init() {
	startCmd.Flags().StringVar(&startFrom, "start", "", "range start, YYYY-MM-DD (required)")
	startCmd.Flags().StringVar(&startTo, "end", "", "range end, YYYY-MM-DD (default today)")
	startCmd.Flags().StringSliceVar(&startStates, "bundeslaender", nil, "states to scrape (default all 16)")
	startCmd.MarkFlagRequired("start")
	rootCmd.AddCommand(startCmd)
}

func createManifest() (*manifest.Manifest, error) {
	start, err := parseDate(startFrom)
	if err != nil {
		return nil, err
	}
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if startTo != "" {
		if end, err = parseDate(startTo); err != nil {
			return nil, err
		}
	}
	if end.Before(start) {
		return nil, eris.Errorf("range end %s before start %s", startTo, startFrom)
	}

	for _, s := range startStates {
		if _, ok := model.ParseBundesland(strings.ToLower(s)); !ok {
			return nil, eris.Errorf("unknown bundesland %q", s)
		}
	}
	return manifest.GetOrCreate(manifestPath(), start, end, startStates)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "parse date %q", s)
	}
	return t, nil
}
