package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/blaulichtkarte/blaulicht-cli/internal/config"
	"github.com/blaulichtkarte/blaulicht-cli/internal/db"
	"github.com/blaulichtkarte/blaulicht-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool      db.Pool
	batchSize int
	closeFn   func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, cfg config.StoreConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{
		pool:      pool,
		batchSize: batchSizeOrDefault(cfg.BatchSize),
		closeFn:   pool.Close,
	}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	id                 TEXT PRIMARY KEY,
	title              TEXT NOT NULL,
	clean_title        TEXT,
	summary            TEXT,
	body               TEXT NOT NULL,
	published_at       TIMESTAMPTZ NOT NULL,
	source_url         TEXT NOT NULL,
	source_agency      TEXT,
	location_text      TEXT,
	latitude           DOUBLE PRECISION,
	longitude          DOUBLE PRECISION,
	precision          TEXT,
	bundesland         TEXT,
	city               TEXT,
	categories         TEXT[],
	pks_code           TEXT,
	pks_category       TEXT,
	crime_sub_type     TEXT,
	confidence         DOUBLE PRECISION,
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
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_published_at ON records(published_at);
CREATE INDEX IF NOT EXISTS idx_records_bundesland ON records(bundesland);
CREATE INDEX IF NOT EXISTS idx_records_pks_category ON records(pks_category);
CREATE INDEX IF NOT EXISTS idx_records_group_id ON records(incident_group_id);
CREATE INDEX IF NOT EXISTS idx_records_pipeline_run ON records(pipeline_run);

CREATE TABLE IF NOT EXISTS poll_state (
	source               TEXT PRIMARY KEY,
	last_success_at      TIMESTAMPTZ,
	success_count        INTEGER NOT NULL DEFAULT 0,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	last_error           TEXT,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS live_health (
	id               TEXT PRIMARY KEY,
	started_at       TIMESTAMPTZ NOT NULL,
	duration_s       DOUBLE PRECISION NOT NULL,
	sources_polled   INTEGER NOT NULL,
	articles_found   INTEGER NOT NULL,
	articles_new     INTEGER NOT NULL,
	records_upserted INTEGER NOT NULL,
	errors           INTEGER NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// recordColumns is the insert column order; rowValues must match it.
var recordColumns = []string{
	"id", "title", "clean_title", "summary", "body", "published_at",
	"source_url", "source_agency", "location_text", "latitude", "longitude",
	"precision", "bundesland", "city", "categories", "pks_code",
	"pks_category", "crime_sub_type", "confidence", "incident_date",
	"incident_time", "incident_precision", "incident_end_date",
	"incident_end_time", "weapon_type", "drug_type", "victim_count",
	"victim_age", "victim_gender", "suspect_count", "suspect_age",
	"suspect_gender", "severity", "motive", "damage_amount",
	"damage_precision", "incident_group_id", "group_role", "pipeline_run",
	"classification", "updated_at",
}

func rowValues(r model.Record, now time.Time) []any {
	return []any{
		r.ID, r.Title, r.CleanTitle, r.Summary, r.Body, r.PublishedAt,
		r.SourceURL, r.SourceAgency, r.LocationText, r.Latitude, r.Longitude,
		r.Precision, r.Bundesland, r.City, r.Categories, r.PKSCode,
		r.PKSCategory, r.CrimeSubType, r.Confidence, r.IncidentDate,
		r.IncidentTime, r.IncidentPrecision, r.IncidentEndDate,
		r.IncidentEndTime, r.WeaponType, r.DrugType, r.VictimCount,
		r.VictimAge, r.VictimGender, r.SuspectCount, r.SuspectAge,
		r.SuspectGender, r.Severity, r.Motive, r.DamageAmount,
		r.DamagePrecision, r.IncidentGroupID, string(r.GroupRole), r.PipelineRun,
		r.Classification, now,
	}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// UpsertRecords writes records in batches, idempotent by id.
func (s *PostgresStore) UpsertRecords(ctx context.Context, records []model.Record) error {
	now := time.Now().UTC()

	for start := 0; start < len(records); start += s.batchSize {
		end := min(start+s.batchSize, len(records))

		rows := make([][]any, 0, end-start)
		for _, r := range records[start:end] {
			rows = append(rows, rowValues(r, now))
		}

		if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
			Table:        "records",
			Columns:      recordColumns,
			ConflictKeys: []string{"id"},
		}, rows); err != nil {
			return eris.Wrapf(err, "postgres: upsert records %d..%d", start, end)
		}
	}
	return nil
}

const upsertPollStateSQL = `
INSERT INTO poll_state (source, last_success_at, success_count, consecutive_failures, last_error, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (source) DO UPDATE SET
	last_success_at = $2, success_count = $3, consecutive_failures = $4,
	last_error = $5, updated_at = $6`

// UpsertPollState mirrors per-source poll state, one batch round trip.
func (s *PostgresStore) UpsertPollState(ctx context.Context, states []PollState) error {
	if len(states) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, st := range states {
		updatedAt := st.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		b.Queue(upsertPollStateSQL,
			st.Source, st.LastSuccessAt, st.SuccessCount,
			st.ConsecutiveFailures, st.LastError, updatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, b)
	for range states {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return eris.Wrap(err, "postgres: upsert poll state")
		}
	}
	return eris.Wrap(br.Close(), "postgres: close poll state batch")
}

func (s *PostgresStore) InsertHealth(ctx context.Context, h Health) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO live_health
		 (id, started_at, duration_s, sources_polled, articles_found, articles_new, records_upserted, errors)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		h.ID, h.StartedAt, h.DurationSecs, h.SourcesPolled,
		h.ArticlesFound, h.ArticlesNew, h.RecordsUpserted, h.Errors,
	)
	return eris.Wrap(err, "postgres: insert health")
}
