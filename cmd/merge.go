package main

import (
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/cache"
	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
	"github.com/blaulichtkarte/blaulicht-cli/internal/orchestrate"
)

var mergeOut string

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge all enriched chunk files into one record file",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManifest()
		if err != nil {
			return err
		}

		var ids []string
		for id := range m.Chunks {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		seen := make(map[string]bool)
		var merged []model.Record
		for _, id := range ids {
			c, _ := m.Chunk(id)
			if c.EnrichedFile == "" {
				continue
			}
			records, err := orchestrate.LoadRecords(c.EnrichedFile)
			if err != nil {
				return err
			}
			for _, r := range records {
				if seen[r.ID] {
					continue
				}
				seen[r.ID] = true
				merged = append(merged, r)
			}
		}
		if len(merged) == 0 {
			return eris.New("no enriched chunks to merge")
		}

		data, err := json.MarshalIndent(merged, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal merged records")
		}
		if err := cache.WriteFileAtomic(mergeOut, data); err != nil {
			return err
		}
		zap.L().Info("chunks merged",
			zap.Int("chunks", len(ids)),
			zap.Int("records", len(merged)),
			zap.String("out", mergeOut),
		)
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeOut, "out", "records_merged.json", "output file")
	rootCmd.AddCommand(mergeCmd)
}
