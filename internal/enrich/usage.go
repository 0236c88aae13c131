package enrich

import (
	"time"

	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/cache"
	"github.com/blaulichtkarte/blaulicht-cli/pkg/anthropic"
)

// usageEntry is one line of the token-usage log.
type usageEntry struct {
	Timestamp        time.Time `json:"timestamp"`
	Model            string    `json:"model"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	TotalTokens      int64     `json:"total_tokens"`
	BatchSize        int       `json:"batch_size"`
	LatencyMS        int64     `json:"latency_ms"`
}

// UsageLog appends one record per successful LLM call. Writes are
// fire-and-forget; a failed append never fails the pipeline.
type UsageLog struct {
	w *cache.JSONLWriter
}

// NewUsageLog creates a log appending to path.
func NewUsageLog(path string) *UsageLog {
	return &UsageLog{w: cache.NewJSONLWriter(path)}
}

// Record logs one completion.
func (u *UsageLog) Record(c *anthropic.Completion, batchSize int) {
	if u == nil || c == nil {
		return
	}
	entry := usageEntry{
		Timestamp:        time.Now().UTC(),
		Model:            c.Model,
		PromptTokens:     c.Usage.PromptTokens,
		CompletionTokens: c.Usage.CompletionTokens,
		TotalTokens:      c.Usage.TotalTokens,
		BatchSize:        batchSize,
		LatencyMS:        c.Latency.Milliseconds(),
	}
	if err := u.w.Append(entry); err != nil {
		zap.L().Warn("enrich: usage log append failed", zap.Error(err))
	}
}
