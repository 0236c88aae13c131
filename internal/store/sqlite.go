package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/blaulichtkarte/blaulicht-cli/internal/config"
	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db        *sql.DB
	batchSize int
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(cfg config.StoreConfig) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", cfg.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, batchSize: batchSizeOrDefault(cfg.BatchSize)}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	id                 TEXT PRIMARY KEY,
	title              TEXT NOT NULL,
	clean_title        TEXT,
	summary            TEXT,
	body               TEXT NOT NULL,
	published_at       DATETIME NOT NULL,
	source_url         TEXT NOT NULL,
	source_agency      TEXT,
	location_text      TEXT,
	latitude           REAL,
	longitude          REAL,
	precision          TEXT,
	bundesland         TEXT,
	city               TEXT,
	categories         TEXT,
	pks_code           TEXT,
	pks_category       TEXT,
	crime_sub_type     TEXT,
	confidence         REAL,
	incident_date      TEXT,
	incident_time      TEXT,
	incident_precision TEXT,
	incident_end_date  TEXT,
	incident_end_time  TEXT,
	weapon_type        TEXT,
	drug_type          TEXT,
	victim_count       INTEGER,
	victim_age         TEXT,
	victim_gender      TEXT,
	suspect_count      INTEGER,
	suspect_age        TEXT,
	suspect_gender     TEXT,
	severity           TEXT,
	motive             TEXT,
	damage_amount      INTEGER,
	damage_precision   TEXT,
	incident_group_id  TEXT,
	group_role         TEXT,
	pipeline_run       TEXT NOT NULL,
	classification     TEXT NOT NULL,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_records_published_at ON records(published_at);
CREATE INDEX IF NOT EXISTS idx_records_bundesland ON records(bundesland);
CREATE INDEX IF NOT EXISTS idx_records_pks_category ON records(pks_category);
CREATE INDEX IF NOT EXISTS idx_records_group_id ON records(incident_group_id);

CREATE TABLE IF NOT EXISTS poll_state (
	source               TEXT PRIMARY KEY,
	last_success_at      DATETIME,
	success_count        INTEGER NOT NULL DEFAULT 0,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	last_error           TEXT,
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS live_health (
	id               TEXT PRIMARY KEY,
	started_at       DATETIME NOT NULL,
	duration_s       REAL NOT NULL,
	sources_polled   INTEGER NOT NULL,
	articles_found   INTEGER NOT NULL,
	articles_new     INTEGER NOT NULL,
	records_upserted INTEGER NOT NULL,
	errors           INTEGER NOT NULL,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

var (
	categoriesIdx   = slices.Index(recordColumns, "categories")
	sqliteUpsertSQL = buildSQLiteUpsert()
)

func buildSQLiteUpsert() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(recordColumns)), ", ")

	sets := make([]string, 0, len(recordColumns)-1)
	for _, c := range recordColumns {
		if c == "id" {
			continue
		}
		sets = append(sets, c+" = excluded."+c)
	}

	return fmt.Sprintf(
		"INSERT INTO records (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		strings.Join(recordColumns, ", "), placeholders, strings.Join(sets, ", "),
	)
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertRecords writes records in transactions of batchSize, idempotent by id.
func (s *SQLiteStore) UpsertRecords(ctx context.Context, records []model.Record) error {
	now := time.Now().UTC()

	for start := 0; start < len(records); start += s.batchSize {
		end := min(start+s.batchSize, len(records))
		if err := s.upsertBatch(ctx, records[start:end], now); err != nil {
			return eris.Wrapf(err, "sqlite: upsert records %d..%d", start, end)
		}
	}
	return nil
}

func (s *SQLiteStore) upsertBatch(ctx context.Context, records []model.Record, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertSQL)
	if err != nil {
		return eris.Wrap(err, "prepare upsert")
	}
	defer stmt.Close()

	for _, r := range records {
		vals := rowValues(r, now)

		// sqlite has no array type; categories travel as JSON text.
		catJSON, err := json.Marshal(r.Categories)
		if err != nil {
			return eris.Wrapf(err, "marshal categories for %s", r.ID)
		}
		vals[categoriesIdx] = string(catJSON)

		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			return eris.Wrapf(err, "upsert record %s", r.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "commit")
}

func (s *SQLiteStore) UpsertPollState(ctx context.Context, states []PollState) error {
	for _, st := range states {
		updatedAt := st.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO poll_state (source, last_success_at, success_count, consecutive_failures, last_error, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(source) DO UPDATE SET
			   last_success_at = excluded.last_success_at,
			   success_count = excluded.success_count,
			   consecutive_failures = excluded.consecutive_failures,
			   last_error = excluded.last_error,
			   updated_at = excluded.updated_at`,
			st.Source, st.LastSuccessAt, st.SuccessCount,
			st.ConsecutiveFailures, st.LastError, updatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert poll state %s", st.Source)
		}
	}
	return nil
}

func (s *SQLiteStore) InsertHealth(ctx context.Context, h Health) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO live_health
		 (id, started_at, duration_s, sources_polled, articles_found, articles_new, records_upserted, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.StartedAt, h.DurationSecs, h.SourcesPolled,
		h.ArticlesFound, h.ArticlesNew, h.RecordsUpserted, h.Errors,
	)
	return eris.Wrap(err, "sqlite: insert health")
}
