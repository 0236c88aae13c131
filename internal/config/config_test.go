package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 250, cfg.Store.BatchSize)
	assert.Equal(t, 6, cfg.Enrich.BatchSize)
	assert.Equal(t, 30, cfg.Enrich.Concurrency)
	assert.Equal(t, 60, cfg.Enrich.MaxDelaySecs)
	assert.Equal(t, 500, cfg.Enrich.CacheSaveInterval)
	assert.Equal(t, 900, cfg.Live.IntervalSecs)
	assert.Equal(t, 50, cfg.Live.ArticleCap)
	assert.InDelta(t, 47.27, cfg.Geocode.MinLat, 0.001)
	assert.InDelta(t, 15.04, cfg.Geocode.MaxLon, 0.001)
	assert.Equal(t, 8, cfg.Orchestrate.ScrapeWorkers)
	assert.Equal(t, 4, cfg.Orchestrate.EnrichWorkers)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BLAULICHT_ENRICH_BATCH_SIZE", "8")
	t.Setenv("BLAULICHT_PIPELINE_RUN_TAG", "v3_2026-w02")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Enrich.BatchSize)
	assert.Equal(t, "v3_2026-w02", cfg.Pipeline.RunTag)
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shouting", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	assert.NoError(t, err)
}
