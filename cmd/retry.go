package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/orchestrate"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Reset failed chunks and rerun them sequentially",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		m, err := openManifest()
		if err != nil {
			return err
		}
		n, err := m.ResetFailed()
		if err != nil {
			return err
		}
		if n == 0 {
			zap.L().Info("no failed chunks to retry")
			return nil
		}
		zap.L().Info("retrying failed chunks", zap.Int("chunks", n))

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
	rootCmd.AddCommand(retryCmd)
}
