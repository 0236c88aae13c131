package enrich

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

// wireEnrichment is the shape the model returns. The cache discriminator is
// "_classification"; the prompt asks for "classification", so both spellings
// are accepted.
type wireEnrichment struct {
	model.Enrichment
	ArticleIndex       *int                 `json:"article_index"`
	ClassificationWire model.Classification `json:"classification"`
}

// ParseBatch decodes a batch response into enrichments grouped by article
// index. Markdown fences are tolerated, as is a bare object instead of a
// one-element array. Objects with a missing or out-of-range index are
// dropped with a warning; a missing index is forgiven for single-article
// batches.
func ParseBatch(text string, batchSize int) (map[int][]model.Enrichment, error) {
	text = cleanJSON(text)
	if strings.HasPrefix(text, "{") {
		text = "[" + text + "]"
	}

	var items []wireEnrichment
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, eris.Wrap(err, "enrich: parse batch response")
	}

	grouped := make(map[int][]model.Enrichment)
	for _, item := range items {
		idx := 0
		switch {
		case item.ArticleIndex != nil:
			idx = *item.ArticleIndex
		case batchSize != 1:
			zap.L().Warn("enrich: dropping object without article_index")
			continue
		}
		if idx < 0 || idx >= batchSize {
			zap.L().Warn("enrich: dropping object with out-of-range article_index",
				zap.Int("article_index", idx), zap.Int("batch_size", batchSize))
			continue
		}

		e := item.Enrichment
		if e.Classification == "" {
			e.Classification = item.ClassificationWire
		}
		if e.Classification == "" {
			// The model omitted the discriminator entirely; infer it the
			// same way the legacy cache decoder does.
			if e.Crime != nil || e.Location != nil || e.CleanTitle != "" {
				e.Classification = model.ClassificationCrime
			} else {
				e.Classification = model.ClassificationJunk
			}
		}
		grouped[idx] = append(grouped[idx], e)
	}

	return grouped, nil
}

// cleanJSON strips markdown code fences the model sometimes wraps around
// its output.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}
