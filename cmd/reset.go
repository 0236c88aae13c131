package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	resetFailed  bool
	resetAll     bool
	resetConfirm bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset chunk lifecycle state in the manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		if resetFailed == resetAll {
			return eris.New("pass exactly one of --failed or --all")
		}
		if !resetConfirm {
			return eris.New("refusing to reset without --confirm")
		}

		m, err := openManifest()
		if err != nil {
			return err
		}

		var n int
		if resetAll {
			n, err = m.ResetAll()
		} else {
			n, err = m.ResetFailed()
		}
		if err != nil {
			return err
		}
		zap.L().Info("chunks reset to pending", zap.Int("chunks", n))
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetFailed, "failed", false, "reset failed chunks only")
	resetCmd.Flags().BoolVar(&resetAll, "all", false, "reset every chunk")
	resetCmd.Flags().BoolVar(&resetConfirm, "confirm", false, "required; reset discards progress state")
	rootCmd.AddCommand(resetCmd)
}
