package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show manifest progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManifest()
		if err != nil {
			return err
		}

		sum := m.Summary()
		fmt.Printf("chunks: %d total, %d pending, %d in progress, %d completed, %d failed\n",
			sum.Total, sum.Pending, sum.InProgress, sum.Completed, sum.Failed)
		fmt.Printf("articles: %d scraped, %d enriched\n\n", sum.TotalArticles, sum.TotalEnriched)

		var ids []string
		for id := range m.Chunks {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		states := len(m.Config.Bundeslaender)
		if states == 0 {
			states = len(model.AllBundeslaender)
		}
		for _, id := range ids {
			c, _ := m.Chunk(id)
			line := fmt.Sprintf("%s  %-11s  articles=%-5d enriched=%-5d states=%d/%d",
				id, c.Status, c.ArticlesCount, c.EnrichedCount,
				len(c.BundeslaenderCompleted), states)
			if c.Retries > 0 {
				line += fmt.Sprintf("  retries=%d", c.Retries)
			}
			if c.Error != "" {
				line += "  error=" + c.Error
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
