package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T, batchSize int) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock, batchSize: batchSize}
	return s, mock
}

func sampleRecord(id string) model.Record {
	return model.Record{
		ID:             id,
		Title:          "POL-B: Raub in Mitte",
		Body:           "Berlin (ots) - Ein Unbekannter entriss einer Frau die Handtasche.",
		PublishedAt:    time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC),
		SourceURL:      "https://example.org/pm/" + id,
		Bundesland:     "berlin",
		Categories:     []string{"robbery"},
		PKSCode:        "2100",
		PKSCategory:    "robbery",
		PipelineRun:    "v2",
		Classification: "crime",
	}
}

func expectRecordUpsert(mock pgxmock.PgxPoolIface, rows int64) {
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_records"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_records"}, recordColumns).
		WillReturnResult(rows)
	mock.ExpectExec(`INSERT INTO "records" .+ ON CONFLICT \("id"\) DO UPDATE SET`).
		WillReturnResult(pgxmock.NewResult("INSERT", rows))
	mock.ExpectCommit()
}

func TestPostgresStore_UpsertRecords(t *testing.T) {
	s, mock := newMockPostgresStore(t, 250)

	expectRecordUpsert(mock, 2)

	err := s.UpsertRecords(context.Background(), []model.Record{
		sampleRecord("a1"), sampleRecord("a2"),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRecords_SplitsBatches(t *testing.T) {
	s, mock := newMockPostgresStore(t, 2)

	expectRecordUpsert(mock, 2)
	expectRecordUpsert(mock, 1)

	err := s.UpsertRecords(context.Background(), []model.Record{
		sampleRecord("a1"), sampleRecord("a2"), sampleRecord("a3"),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRecords_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t, 250)

	err := s.UpsertRecords(context.Background(), nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPollState(t *testing.T) {
	s, mock := newMockPostgresStore(t, 250)

	now := time.Now().UTC()
	eb := mock.ExpectBatch()
	eb.ExpectExec(`INSERT INTO poll_state`).
		WithArgs("polizei_berlin", &now, 5, 0, "", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	eb.ExpectExec(`INSERT INTO poll_state`).
		WithArgs("presseportal_hessen", (*time.Time)(nil), 0, 3, "fetch: status 503", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertPollState(context.Background(), []PollState{
		{Source: "polizei_berlin", LastSuccessAt: &now, SuccessCount: 5, UpdatedAt: now},
		{Source: "presseportal_hessen", ConsecutiveFailures: 3, LastError: "fetch: status 503", UpdatedAt: now},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertHealth_AssignsID(t *testing.T) {
	s, mock := newMockPostgresStore(t, 250)

	mock.ExpectExec(`INSERT INTO live_health`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), 12.5, 16, 40, 12, 9, 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.InsertHealth(context.Background(), Health{
		StartedAt:       time.Now().UTC(),
		DurationSecs:    12.5,
		SourcesPolled:   16,
		ArticlesFound:   40,
		ArticlesNew:     12,
		RecordsUpserted: 9,
		Errors:          1,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
