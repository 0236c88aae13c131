package live

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/blaulichtkarte/blaulicht-cli/internal/cache"
	"github.com/blaulichtkarte/blaulicht-cli/internal/store"
)

// SourceState is one source's entry in poll_state.json.
type SourceState struct {
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastArticlesCount   int        `json:"last_articles_count"`
	SuccessCount        int        `json:"success_count"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
}

// Tracker keeps per-source polling health: success/failure bookkeeping,
// the skip schedule for flapping sources, and the poll_state.json file.
type Tracker struct {
	path       string
	threshold  int
	threshold2 int

	mu      sync.Mutex
	sources map[string]*SourceState
	skips   map[string]int // cycles left to skip; not persisted
}

// NewTracker loads poll_state.json if present. threshold and threshold2
// are the consecutive-failure counts at which a source is polled only
// every 2nd and every 4th cycle.
func NewTracker(path string, threshold, threshold2 int) (*Tracker, error) {
	if threshold <= 0 {
		threshold = 3
	}
	if threshold2 <= 0 {
		threshold2 = 6
	}
	t := &Tracker{
		path:       path,
		threshold:  threshold,
		threshold2: threshold2,
		sources:    make(map[string]*SourceState),
		skips:      make(map[string]int),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "live: read %s", path)
	}
	if err := json.Unmarshal(data, &t.sources); err != nil {
		return nil, eris.Wrapf(err, "live: parse %s", path)
	}
	return t, nil
}

func (t *Tracker) state(source string) *SourceState {
	s, ok := t.sources[source]
	if !ok {
		s = &SourceState{}
		t.sources[source] = s
	}
	return s
}

// Success records a clean poll and clears any backoff.
func (t *Tracker) Success(source string, articles int, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(source)
	at = at.UTC()
	s.LastSuccessAt = &at
	s.LastArticlesCount = articles
	s.SuccessCount++
	s.ConsecutiveFailures = 0
	s.LastError = ""
	delete(t.skips, source)
}

// Failure records a failed poll and, past the thresholds, schedules the
// source to be skipped for the next cycles.
func (t *Tracker) Failure(source, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(source)
	s.ConsecutiveFailures++
	s.LastError = msg

	switch {
	case s.ConsecutiveFailures >= t.threshold2:
		t.skips[source] = 3
	case s.ConsecutiveFailures >= t.threshold:
		t.skips[source] = 1
	}
}

// ShouldPoll reports whether the source is due this cycle. A skipped
// source consumes one skip credit per call.
func (t *Tracker) ShouldPoll(source string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := t.skips[source]; n > 0 {
		t.skips[source] = n - 1
		return false
	}
	return true
}

// Save writes poll_state.json atomically.
func (t *Tracker) Save() error {
	t.mu.Lock()
	data, err := json.MarshalIndent(t.sources, "", "  ")
	t.mu.Unlock()
	if err != nil {
		return eris.Wrap(err, "live: marshal poll state")
	}
	return eris.Wrap(cache.WriteFileAtomic(t.path, data), "live: write poll state")
}

// Snapshot renders the tracker for the best-effort store mirror.
func (t *Tracker) Snapshot() []store.PollState {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	out := make([]store.PollState, 0, len(t.sources))
	for source, s := range t.sources {
		out = append(out, store.PollState{
			Source:              source,
			LastSuccessAt:       s.LastSuccessAt,
			SuccessCount:        s.SuccessCount,
			ConsecutiveFailures: s.ConsecutiveFailures,
			LastError:           s.LastError,
			UpdatedAt:           now,
		})
	}
	return out
}

// States returns a copy of the per-source map for the status endpoint.
func (t *Tracker) States() map[string]SourceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]SourceState, len(t.sources))
	for source, s := range t.sources {
		out[source] = *s
	}
	return out
}
