package manifest

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

// Chunk data stages under <data>/chunks/.
const (
	StageRaw      = "raw"
	StageFiltered = "filtered"
	StageEnriched = "enriched"
)

// File returns the chunk data path for a stage, e.g.
// chunks/enriched/enriched_januar_2026.json for ("enriched", "2026-01").
func File(dataDir, stage, prefix, yearMonth string) (string, error) {
	year, month, err := splitYearMonth(yearMonth)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s_%d.json", prefix, model.GermanMonths[month], year)
	return filepath.Join(dataDir, "chunks", stage, name), nil
}

// StateFile returns the per-state chunk data path, e.g.
// chunks/raw/berlin_januar_2026.json.
func StateFile(dataDir, stage string, bl model.Bundesland, yearMonth string) (string, error) {
	return File(dataDir, stage, string(bl), yearMonth)
}

func splitYearMonth(yearMonth string) (year, month int, err error) {
	parts := strings.SplitN(yearMonth, "-", 2)
	if len(parts) != 2 {
		return 0, 0, eris.Errorf("manifest: bad year-month %q", yearMonth)
	}
	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, eris.Errorf("manifest: bad year in %q", yearMonth)
	}
	month, err = strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, eris.Errorf("manifest: bad month in %q", yearMonth)
	}
	return year, month, nil
}
