// Package manifest tracks the state of a batch run as (month x state)
// chunks in a single JSON document. The manifest is the authoritative run
// state: every write goes through Save, which replaces the file atomically.
// Orchestrator workers running concurrently must mutate chunks through
// Update or UpdateStatus; the pointer-returning accessors are for the
// controlling goroutine.
package manifest

import (
	"encoding/json"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/blaulichtkarte/blaulicht-cli/internal/cache"
	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

// Status is the chunk lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Chunk is one month of work across the configured states.
type Chunk struct {
	YearMonth    string    `json:"year_month"` // "2026-01", doubles as the chunk id
	Status       Status    `json:"status"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	RawFile      string    `json:"raw_file,omitempty"`
	EnrichedFile string    `json:"enriched_file,omitempty"`

	// BundeslaenderCompleted lets a crashed mid-chunk scrape resume without
	// re-scraping finished states.
	BundeslaenderCompleted []string `json:"bundeslaender_completed,omitempty"`

	ArticlesCount int        `json:"articles_count"`
	EnrichedCount int        `json:"enriched_count"`
	Retries       int        `json:"retries"`
	Error         string     `json:"error,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// MarkBundeslandDone records a finished state scrape, once.
func (c *Chunk) MarkBundeslandDone(bl model.Bundesland) {
	if slices.Contains(c.BundeslaenderCompleted, string(bl)) {
		return
	}
	c.BundeslaenderCompleted = append(c.BundeslaenderCompleted, string(bl))
}

// BundeslandDone reports whether a state scrape already completed.
func (c *Chunk) BundeslandDone(bl model.Bundesland) bool {
	return slices.Contains(c.BundeslaenderCompleted, string(bl))
}

// RunConfig pins the range the manifest was created for.
type RunConfig struct {
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	Bundeslaender []string  `json:"bundeslaender"`
	CreatedAt     time.Time `json:"created_at"`
}

// Statistics are rolling totals recomputed on every Save.
type Statistics struct {
	TotalArticles int `json:"total_articles"`
	TotalEnriched int `json:"total_enriched"`
}

// Manifest is the whole batch run.
type Manifest struct {
	Config     RunConfig         `json:"config"`
	Statistics Statistics        `json:"statistics"`
	Chunks     map[string]*Chunk `json:"chunks"`

	path string
	mu   sync.Mutex
}

// Load reads a manifest from disk.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "manifest: read %s", path)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "manifest: parse %s", path)
	}
	if m.Chunks == nil {
		m.Chunks = map[string]*Chunk{}
	}
	m.path = path
	return &m, nil
}

// GetOrCreate loads the manifest at path, creating it for the given range if
// missing. An existing manifest gains chunks for months it does not cover
// yet; existing chunks are never modified.
func GetOrCreate(path string, start, end time.Time, bundeslaender []string) (*Manifest, error) {
	m, err := Load(path)
	if os.IsNotExist(eris.Cause(err)) {
		m = &Manifest{
			Config: RunConfig{
				StartDate:     start,
				EndDate:       end,
				Bundeslaender: bundeslaender,
				CreatedAt:     time.Now().UTC(),
			},
			Chunks: map[string]*Chunk{},
			path:   path,
		}
	} else if err != nil {
		return nil, err
	}

	added := false
	for _, c := range monthChunks(start, end) {
		if _, ok := m.Chunks[c.YearMonth]; ok {
			continue
		}
		m.Chunks[c.YearMonth] = c
		added = true
	}
	if added {
		if err := m.Save(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// monthChunks splits [start, end] into calendar-month chunks clipped to the
// range bounds.
func monthChunks(start, end time.Time) []*Chunk {
	var chunks []*Chunk

	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(end) {
		monthEnd := cur.AddDate(0, 1, -1)

		cs, ce := cur, monthEnd
		if cs.Before(start) {
			cs = start
		}
		if ce.After(end) {
			ce = end
		}

		chunks = append(chunks, &Chunk{
			YearMonth: cur.Format("2006-01"),
			Status:    StatusPending,
			StartDate: cs,
			EndDate:   ce,
		})
		cur = cur.AddDate(0, 1, 0)
	}
	return chunks
}

// Save writes the manifest atomically (tempfile, fsync, rename) and
// refreshes the rolling statistics.
func (m *Manifest) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save()
}

func (m *Manifest) save() error {
	m.Statistics = Statistics{}
	for _, c := range m.Chunks {
		m.Statistics.TotalArticles += c.ArticlesCount
		m.Statistics.TotalEnriched += c.EnrichedCount
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return eris.Wrap(err, "manifest: marshal")
	}
	return eris.Wrap(cache.WriteFileAtomic(m.path, data), "manifest: write")
}

// ids returns chunk ids in chronological order.
func (m *Manifest) ids() []string {
	ids := make([]string, 0, len(m.Chunks))
	for id := range m.Chunks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// NextPending returns the oldest pending chunk, or nil.
func (m *Manifest) NextPending() *Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.ids() {
		if m.Chunks[id].Status == StatusPending {
			return m.Chunks[id]
		}
	}
	return nil
}

// Pending returns all pending chunks, oldest first.
func (m *Manifest) Pending() []*Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Chunk
	for _, id := range m.ids() {
		if m.Chunks[id].Status == StatusPending {
			out = append(out, m.Chunks[id])
		}
	}
	return out
}

// Failed returns all failed chunks, oldest first.
func (m *Manifest) Failed() []*Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Chunk
	for _, id := range m.ids() {
		if m.Chunks[id].Status == StatusFailed {
			out = append(out, m.Chunks[id])
		}
	}
	return out
}

// Chunk returns a copy of the chunk with the given id.
func (m *Manifest) Chunk(id string) (Chunk, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Chunks[id]
	if !ok {
		return Chunk{}, false
	}
	return *c, true
}

// Update applies fn to a chunk under the manifest lock and saves. This is
// the mutation path for concurrent orchestrator workers.
func (m *Manifest) Update(id string, fn func(*Chunk)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Chunks[id]
	if !ok {
		return eris.Errorf("manifest: unknown chunk %s", id)
	}
	fn(c)
	return m.save()
}

// UpdateStatus transitions a chunk and stamps the transition time. Moving to
// in_progress sets started_at, completed clears the error and sets
// completed_at, failed records errMsg.
func (m *Manifest) UpdateStatus(id string, status Status, errMsg string) error {
	return m.Update(id, func(c *Chunk) {
		now := time.Now().UTC()
		c.Status = status
		switch status {
		case StatusInProgress:
			c.StartedAt = &now
		case StatusCompleted:
			c.CompletedAt = &now
			c.Error = ""
		case StatusFailed:
			c.Error = errMsg
		}
	})
}

// ResetInProgress moves crashed in_progress chunks back to pending. Called
// on orchestrator startup.
func (m *Manifest) ResetInProgress() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Chunks {
		if c.Status == StatusInProgress {
			c.Status = StatusPending
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, m.save()
}

// ResetFailed moves failed chunks back to pending and clears their errors.
func (m *Manifest) ResetFailed() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Chunks {
		if c.Status == StatusFailed {
			c.Status = StatusPending
			c.Error = ""
			c.Retries = 0
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, m.save()
}

// ResetAll moves every chunk back to pending and zeroes its progress.
func (m *Manifest) ResetAll() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Chunks {
		*c = Chunk{
			YearMonth: c.YearMonth,
			Status:    StatusPending,
			StartDate: c.StartDate,
			EndDate:   c.EndDate,
		}
	}
	return len(m.Chunks), m.save()
}

// Summary aggregates chunk counts per status.
type Summary struct {
	Total         int `json:"total"`
	Pending       int `json:"pending"`
	InProgress    int `json:"in_progress"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`
	TotalArticles int `json:"total_articles"`
	TotalEnriched int `json:"total_enriched"`
}

func (m *Manifest) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Summary{Total: len(m.Chunks)}
	for _, c := range m.Chunks {
		switch c.Status {
		case StatusPending:
			s.Pending++
		case StatusInProgress:
			s.InProgress++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		}
		s.TotalArticles += c.ArticlesCount
		s.TotalEnriched += c.EnrichedCount
	}
	return s
}
