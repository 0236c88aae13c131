package store

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/cache"
	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

// Queue buffers records on disk when the store is unreachable. Enqueued rows
// are merged by id (latest wins) and drained at the start of the next cycle.
type Queue struct {
	path string
	mu   sync.Mutex
}

func NewQueue(path string) *Queue {
	return &Queue{path: path}
}

// Enqueue merges records into the queue file and rewrites it atomically.
func (q *Queue) Enqueue(records []model.Record) error {
	if len(records) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	existing, err := q.load()
	if err != nil {
		return err
	}

	merged := make([]model.Record, 0, len(existing)+len(records))
	index := make(map[string]int, len(existing))
	for _, r := range existing {
		index[r.ID] = len(merged)
		merged = append(merged, r)
	}
	for _, r := range records {
		if i, ok := index[r.ID]; ok {
			merged[i] = r
			continue
		}
		index[r.ID] = len(merged)
		merged = append(merged, r)
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return eris.Wrap(err, "queue: marshal")
	}
	if err := cache.WriteFileAtomic(q.path, data); err != nil {
		return eris.Wrap(err, "queue: write")
	}

	zap.L().Info("queue: deferred records",
		zap.Int("added", len(records)),
		zap.Int("queued", len(merged)),
	)
	return nil
}

// Drain pushes queued records to the store and removes the queue file on
// success. Records stay queued if the push fails.
func (q *Queue) Drain(ctx context.Context, s Store) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	records, err := q.load()
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	if err := s.UpsertRecords(ctx, records); err != nil {
		return 0, eris.Wrap(err, "queue: drain")
	}
	if err := os.Remove(q.path); err != nil && !os.IsNotExist(err) {
		return len(records), eris.Wrap(err, "queue: remove")
	}

	zap.L().Info("queue: drained", zap.Int("records", len(records)))
	return len(records), nil
}

// Len reports how many records are queued.
func (q *Queue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	records, err := q.load()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func (q *Queue) load() ([]model.Record, error) {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "queue: read")
	}

	var records []model.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrap(err, "queue: parse")
	}
	return records, nil
}
