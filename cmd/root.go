package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "blaulicht",
	Short: "German police press-release ingestion pipeline",
	Long:  "Scrapes the press portals of all 16 state police forces, classifies and extracts incidents via Claude, geocodes them, and pushes normalized records to the crime-map store.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
