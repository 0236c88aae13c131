package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/blaulichtkarte/blaulicht-cli/internal/manifest"
	"github.com/blaulichtkarte/blaulicht-cli/internal/orchestrate"
)

var (
	weekYear int
	weekNum  int
)

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Run the batch pipeline for one ISO week",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		start, end, err := isoWeekRange(weekYear, weekNum)
		if err != nil {
			return err
		}
		m, err := manifest.GetOrCreate(manifestPath(), start, end, startStates)
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
	now := time.Now().UTC()
	year, week := now.ISOWeek()
	weekCmd.Flags().IntVar(&weekYear, "year", year, "ISO year")
	weekCmd.Flags().IntVar(&weekNum, "week", week, "ISO week number")
	weekCmd.Flags().StringSliceVar(&startStates, "bundeslaender", nil, "states to scrape (default all 16)")
	rootCmd.AddCommand(weekCmd)
}

// isoWeekRange returns Monday through Sunday of the given ISO week.
func isoWeekRange(year, week int) (time.Time, time.Time, error) {
	if week < 1 || week > 53 {
		return time.Time{}, time.Time{}, eris.Errorf("week %d out of range", week)
	}

	// January 4 is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	monday := jan4.AddDate(0, 0, 1-weekday).AddDate(0, 0, (week-1)*7)

	if y, w := monday.ISOWeek(); y != year || w != week {
		return time.Time{}, time.Time{}, eris.Errorf("year %d has no week %d", year, week)
	}
	return monday, monday.AddDate(0, 0, 6), nil
}
