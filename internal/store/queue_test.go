package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

// stubStore records upserts and optionally fails them.
type stubStore struct {
	upserted [][]model.Record
	err      error
}

func (s *stubStore) UpsertRecords(_ context.Context, records []model.Record) error {
	if s.err != nil {
		return s.err
	}
	s.upserted = append(s.upserted, records)
	return nil
}

func (s *stubStore) UpsertPollState(context.Context, []PollState) error { return nil }
func (s *stubStore) InsertHealth(context.Context, Health) error         { return nil }
func (s *stubStore) Migrate(context.Context) error                      { return nil }
func (s *stubStore) Close() error                                       { return nil }

func TestQueue_EnqueueMergesByID(t *testing.T) {
	q := NewQueue(filepath.Join(t.TempDir(), "queue.json"))

	require.NoError(t, q.Enqueue([]model.Record{sampleRecord("a1"), sampleRecord("a2")}))

	updated := sampleRecord("a1")
	updated.Title = "POL-B: Raub in Mitte - Nachtrag"
	require.NoError(t, q.Enqueue([]model.Record{updated}))

	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := q.load()
	require.NoError(t, err)
	assert.Equal(t, "POL-B: Raub in Mitte - Nachtrag", records[0].Title)
}

func TestQueue_DrainPushesAndClears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	q := NewQueue(path)
	s := &stubStore{}

	require.NoError(t, q.Enqueue([]model.Record{sampleRecord("a1"), sampleRecord("a2")}))

	n, err := q.Drain(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, s.upserted, 1)
	assert.Len(t, s.upserted[0], 2)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	// Nothing left to drain.
	n, err = q.Drain(context.Background(), s)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, s.upserted, 1)
}

func TestQueue_DrainKeepsRecordsOnFailure(t *testing.T) {
	q := NewQueue(filepath.Join(t.TempDir(), "queue.json"))
	s := &stubStore{err: eris.New("store unreachable")}

	require.NoError(t, q.Enqueue([]model.Record{sampleRecord("a1")}))

	_, err := q.Drain(context.Background(), s)
	require.Error(t, err)

	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueue_EmptyDrainNoFile(t *testing.T) {
	q := NewQueue(filepath.Join(t.TempDir(), "missing.json"))

	n, err := q.Drain(context.Background(), &stubStore{})
	require.NoError(t, err)
	assert.Zero(t, n)
}
