// Package store persists normalized records to the crime map's database.
// Postgres is the production backend, sqlite serves local runs; both upsert
// idempotently by record ID so re-pushing a chunk is safe.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/blaulichtkarte/blaulicht-cli/internal/config"
	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

// defaultBatchSize bounds a single upsert statement.
const defaultBatchSize = 250

// PollState tracks per-source polling health for the live loop.
type PollState struct {
	Source              string     `json:"source"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	SuccessCount        int        `json:"success_count"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Health summarizes one live cycle.
type Health struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	DurationSecs    float64   `json:"duration_s"`
	SourcesPolled   int       `json:"sources_polled"`
	ArticlesFound   int       `json:"articles_found"`
	ArticlesNew     int       `json:"articles_new"`
	RecordsUpserted int       `json:"records_upserted"`
	Errors          int       `json:"errors"`
}

// Store defines the persistence interface for the pipeline sink.
type Store interface {
	UpsertRecords(ctx context.Context, records []model.Record) error
	UpsertPollState(ctx context.Context, states []PollState) error
	InsertHealth(ctx context.Context, h Health) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg)
	case "sqlite", "":
		return NewSQLite(cfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func batchSizeOrDefault(n int) int {
	if n <= 0 {
		return defaultBatchSize
	}
	return n
}
