package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/blaulichtkarte/blaulicht-cli/internal/manifest"
	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

var (
	listStatus     string
	listBundesland string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List chunks, optionally filtered by status or bundesland",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManifest()
		if err != nil {
			return err
		}

		var bl model.Bundesland
		if listBundesland != "" {
			parsed, ok := model.ParseBundesland(strings.ToLower(listBundesland))
			if !ok {
				return eris.Errorf("unknown bundesland %q", listBundesland)
			}
			bl = parsed
		}

		var ids []string
		for id := range m.Chunks {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			c, _ := m.Chunk(id)
			if listStatus != "" && string(c.Status) != listStatus {
				continue
			}
			if bl != "" && !c.BundeslandDone(bl) {
				continue
			}
			fmt.Printf("%s  %-11s  %s .. %s  articles=%d enriched=%d\n",
				id, c.Status,
				c.StartDate.Format("2006-01-02"), c.EndDate.Format("2006-01-02"),
				c.ArticlesCount, c.EnrichedCount)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "",
		fmt.Sprintf("filter by status (%s|%s|%s|%s)",
			manifest.StatusPending, manifest.StatusInProgress,
			manifest.StatusCompleted, manifest.StatusFailed))
	listCmd.Flags().StringVar(&listBundesland, "bundesland", "", "only chunks with this state completed")
	rootCmd.AddCommand(listCmd)
}
