package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/live"
	"github.com/blaulichtkarte/blaulicht-cli/internal/scraper"
	"github.com/blaulichtkarte/blaulicht-cli/internal/scraper/sites"
	"github.com/blaulichtkarte/blaulicht-cli/internal/store"
)

var (
	liveMode     string
	liveSource   string
	liveDryRun   bool
	liveInterval int
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Poll all sources on an interval and push new records",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch liveMode {
		case "status":
			return liveStatus()
		case "once", "daemon":
			return runLive(cmd, liveMode == "daemon")
		default:
			return eris.Errorf("unknown mode %q (once|daemon|status)", liveMode)
		}
	},
}

func init() {
	liveCmd.Flags().StringVar(&liveMode, "mode", "daemon", "once, daemon, or status")
	liveCmd.Flags().StringVar(&liveSource, "source", "", "poll only this source")
	liveCmd.Flags().BoolVar(&liveDryRun, "dry-run", false, "enrich but do not write to the store")
	liveCmd.Flags().IntVar(&liveInterval, "interval", 0, "poll interval in seconds (default from config)")
	rootCmd.AddCommand(liveCmd)
}

func runLive(cmd *cobra.Command, daemon bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lock, err := live.Acquire(filepath.Join(cfg.Paths.CacheDir, cfg.Live.LockFile))
	if err != nil {
		return err
	}
	defer lock.Release()

	env, err := initPipelineEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	tracker, err := live.NewTracker(
		cachePath("poll_state.json"),
		cfg.Live.BackoffThreshold, cfg.Live.BackoffThreshold2,
	)
	if err != nil {
		return err
	}
	queue := store.NewQueue(cachePath("push_queue.json"))

	loop := live.New(cfg, env.deps.Scraper, env.deps.Enricher, env.store, queue, tracker)
	loop.DryRun = liveDryRun
	if liveInterval > 0 {
		loop.Interval = time.Duration(liveInterval) * time.Second
	}
	if liveSource != "" {
		site := sites.ByName(liveSource)
		if site == nil {
			return eris.Errorf("unknown source %q", liveSource)
		}
		loop.Sites = []scraper.Site{site}
	}

	if !daemon {
		loop.Cycle(ctx)
		return nil
	}

	loop.ServeStatus(ctx, cfg.Live.StatusAddr)
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	zap.L().Info("live daemon stopped")
	return nil
}

func liveStatus() error {
	resp, err := http.Get("http://" + cfg.Live.StatusAddr + "/status")
	if err != nil {
		return eris.Wrap(err, "status endpoint unreachable (daemon not running?)")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read status response")
	}
	fmt.Println(string(body))
	return nil
}
