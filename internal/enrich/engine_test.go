package enrich

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blaulichtkarte/blaulicht-cli/internal/config"
	"github.com/blaulichtkarte/blaulicht-cli/internal/geocode"
	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
	"github.com/blaulichtkarte/blaulicht-cli/internal/resilience"
	"github.com/blaulichtkarte/blaulicht-cli/pkg/anthropic"
	provider "github.com/blaulichtkarte/blaulicht-cli/pkg/geocode"
)

// stubLLM answers every call with a fixed text or error and counts calls.
type stubLLM struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (s *stubLLM) Complete(_ context.Context, req anthropic.CompletionRequest) (*anthropic.Completion, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &anthropic.Completion{
		Text:    s.text,
		Model:   req.Model,
		Latency: 5 * time.Millisecond,
		Usage: anthropic.TokenUsage{
			PromptTokens:     100,
			CompletionTokens: 50,
			TotalTokens:      150,
		},
	}, nil
}

func (s *stubLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubProvider resolves every address to a rooftop hit in Berlin.
type stubProvider struct{}

func (stubProvider) Geocode(context.Context, string) (*provider.Result, error) {
	return &provider.Result{Lat: 52.52, Lon: 13.405, Precision: "rooftop", Matched: true}, nil
}

func newEngineAt(t *testing.T, dir string, llm anthropic.Client) *Engine {
	t.Helper()

	geo, err := geocode.New(stubProvider{}, filepath.Join(dir, "geocode.json"), config.GeocodeConfig{
		MinLat: 47.27, MaxLat: 55.06, MinLon: 5.87, MaxLon: 15.04,
	})
	require.NoError(t, err)

	eng, err := NewEngine(llm, geo,
		filepath.Join(dir, "enrichment.json"),
		filepath.Join(dir, "usage.jsonl"),
		config.AnthropicConfig{Model: "test-model", MaxTokens: 1024},
		config.EnrichConfig{BatchSize: 2, Concurrency: 4, MaxRetries: 2, MaxDelaySecs: 1, CacheSaveInterval: 10},
		"p-test",
	)
	require.NoError(t, err)
	return eng
}

func testArticle(url, title string) model.Article {
	return model.Article{
		URL:          url,
		Title:        title,
		Body:         "Am Dienstagabend kam es in der Hauptstraße zu einem Raubüberfall.",
		City:         "Berlin",
		Bundesland:   model.Berlin,
		SourceAgency: "Polizei Berlin",
		PublishedAt:  time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	}
}

const crimeResponse = `[{"article_index": 0, "classification": "crime",
	"clean_title": "Raubüberfall in der Hauptstraße",
	"summary": "Ein Mann wurde ausgeraubt.",
	"location": {"street": "Hauptstraße", "city": "Berlin"},
	"incident_time": {"date": "2026-01-09", "time": "21:30", "precision": "exact"},
	"crime": {"pks_code": "2100", "pks_category": "Raub", "confidence": 0.9}}]`

func TestEnrichAll_CrimeExtractionIsGeocoded(t *testing.T) {
	dir := t.TempDir()
	llm := &stubLLM{text: crimeResponse}
	eng := newEngineAt(t, dir, llm)

	enriched, removed, err := eng.EnrichAll(context.Background(), []model.Article{
		testArticle("https://example.org/1", "POL-B: Raubüberfall"),
	})
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	assert.Empty(t, removed)
	assert.Equal(t, 1, llm.callCount())

	loc := enriched[0].Enrichment.Location
	require.NotNil(t, loc)
	require.NotNil(t, loc.Lat)
	assert.InDelta(t, 52.52, *loc.Lat, 0.001)
	assert.Equal(t, "rooftop", loc.Precision)
	assert.Equal(t, model.Berlin, loc.Bundesland)
	assert.Equal(t, "2100", enriched[0].Enrichment.Crime.PKSCode)
}

func TestEnrichAll_RerunServedFromCache(t *testing.T) {
	dir := t.TempDir()
	articles := []model.Article{testArticle("https://example.org/1", "POL-B: Raubüberfall")}

	first := newEngineAt(t, dir, &stubLLM{text: crimeResponse})
	enriched1, _, err := first.EnrichAll(context.Background(), articles)
	require.NoError(t, err)
	require.Len(t, enriched1, 1)

	// A fresh engine on the same cache path must not call the model.
	llm2 := &stubLLM{err: errors.New("must not be called")}
	second := newEngineAt(t, dir, llm2)
	enriched2, removed2, err := second.EnrichAll(context.Background(), articles)
	require.NoError(t, err)

	assert.Equal(t, 0, llm2.callCount())
	assert.Empty(t, removed2)
	require.Len(t, enriched2, 1)
	assert.Equal(t, enriched1[0].Enrichment, enriched2[0].Enrichment)
}

func TestEnrichAll_JunkSentinelCachedAndRemoved(t *testing.T) {
	dir := t.TempDir()
	articles := []model.Article{testArticle("https://example.org/junk", "POL-B: Blitzermarathon")}

	llm := &stubLLM{text: `[{"article_index": 0, "classification": "junk", "reason": "Verkehrsmeldung"}]`}
	eng := newEngineAt(t, dir, llm)

	enriched, removed, err := eng.EnrichAll(context.Background(), articles)
	require.NoError(t, err)
	assert.Empty(t, enriched)
	require.Len(t, removed, 1)
	assert.Equal(t, "llm:junk", removed[0].RemovalReason)

	llm2 := &stubLLM{err: errors.New("must not be called")}
	second := newEngineAt(t, dir, llm2)
	_, removed2, err := second.EnrichAll(context.Background(), articles)
	require.NoError(t, err)
	assert.Equal(t, 0, llm2.callCount())
	require.Len(t, removed2, 1)
	assert.Equal(t, "llm:junk", removed2[0].RemovalReason)
}

func TestEnrichAll_PermanentErrorLeavesNoCacheEntry(t *testing.T) {
	dir := t.TempDir()
	articles := []model.Article{testArticle("https://example.org/1", "POL-B: Raubüberfall")}

	failing := &stubLLM{err: resilience.NewStatusError(errors.New("invalid request"), 400)}
	eng := newEngineAt(t, dir, failing)

	enriched, removed, err := eng.EnrichAll(context.Background(), articles)
	require.NoError(t, err)
	assert.Empty(t, enriched)
	assert.Empty(t, removed)
	// 400 is permanent: exactly one attempt.
	assert.Equal(t, 1, failing.callCount())

	// The failure was not cached, so a later run asks again.
	retry := &stubLLM{text: crimeResponse}
	second := newEngineAt(t, dir, retry)
	enriched2, _, err := second.EnrichAll(context.Background(), articles)
	require.NoError(t, err)
	assert.Equal(t, 1, retry.callCount())
	assert.Len(t, enriched2, 1)
}

func TestEnrichAll_MultiIncidentSplit(t *testing.T) {
	dir := t.TempDir()
	llm := &stubLLM{text: `[
		{"article_index": 0, "classification": "crime", "clean_title": "Einbruch in Bäckerei", "crime": {"pks_code": "4350"}},
		{"article_index": 0, "classification": "crime", "clean_title": "Trunkenheitsfahrt auf der B1", "crime": {"pks_code": "7260"}}
	]`}
	eng := newEngineAt(t, dir, llm)

	enriched, _, err := eng.EnrichAll(context.Background(), []model.Article{
		testArticle("https://example.org/digest", "POL-B: Meldungen vom Wochenende"),
	})
	require.NoError(t, err)

	require.Len(t, enriched, 2)
	assert.Equal(t, "Einbruch in Bäckerei", enriched[0].Enrichment.CleanTitle)
	assert.Equal(t, "Trunkenheitsfahrt auf der B1", enriched[1].Enrichment.CleanTitle)
	assert.Equal(t, 1, llm.callCount())
}

func TestEnrichAll_SplitsIntoBatches(t *testing.T) {
	dir := t.TempDir()
	llm := &stubLLM{text: `[
		{"article_index": 0, "classification": "crime", "clean_title": "A", "crime": {"pks_code": "2100"}},
		{"article_index": 1, "classification": "crime", "clean_title": "B", "crime": {"pks_code": "2200"}}
	]`}
	eng := newEngineAt(t, dir, llm)

	articles := []model.Article{
		testArticle("https://example.org/1", "t1"),
		testArticle("https://example.org/2", "t2"),
		testArticle("https://example.org/3", "t3"),
	}
	enriched, _, err := eng.EnrichAll(context.Background(), articles)
	require.NoError(t, err)

	// Batch size 2: two calls, the single-article batch drops index 1.
	assert.Equal(t, 2, llm.callCount())
	assert.Len(t, enriched, 3)
}

func TestEnrichAll_WritesUsageLog(t *testing.T) {
	dir := t.TempDir()
	eng := newEngineAt(t, dir, &stubLLM{text: crimeResponse})

	_, _, err := eng.EnrichAll(context.Background(), []model.Article{
		testArticle("https://example.org/1", "t1"),
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "usage.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"prompt_tokens":100`)
	assert.Contains(t, lines[0], `"batch_size":1`)
	assert.Contains(t, lines[0], `"model":"test-model"`)
}

func TestMakeBatches(t *testing.T) {
	assert.Nil(t, makeBatches(nil, 3))
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5}}, makeBatches([]int{1, 2, 3, 4, 5}, 3))
	assert.Equal(t, [][]int{{1}, {2}}, makeBatches([]int{1, 2}, 1))
}
