package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/validator-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// backend: a single-file database that needs no external service.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS validation_history (
	id                 TEXT PRIMARY KEY,
	phone_number       TEXT NOT NULL UNIQUE,
	is_valid           INTEGER NOT NULL DEFAULT 0,
	carrier            TEXT,
	line_type          TEXT,
	whatsapp_available INTEGER NOT NULL DEFAULT 0,
	confidence_score   REAL NOT NULL DEFAULT 0,
	last_validated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_decisions (
	id              TEXT PRIMARY KEY,
	phone_number    TEXT NOT NULL,
	strategy        TEXT NOT NULL,
	reasoning_trace TEXT NOT NULL,
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS provider_health (
	provider_name     TEXT PRIMARY KEY,
	success_count     INTEGER NOT NULL DEFAULT 0,
	failure_count     INTEGER NOT NULL DEFAULT 0,
	avg_response_time REAL NOT NULL DEFAULT 0,
	updated_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_agent_decisions_phone ON agent_decisions(phone_number);
CREATE INDEX IF NOT EXISTS idx_agent_decisions_created ON agent_decisions(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetHistory(ctx context.Context, phoneNumber string) (*model.ValidationHistory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, phone_number, is_valid, carrier, line_type, whatsapp_available, confidence_score, last_validated_at
		 FROM validation_history WHERE phone_number = ?`,
		phoneNumber,
	)

	var h model.ValidationHistory
	var carrier, lineType sql.NullString
	err := row.Scan(&h.ID, &h.PhoneNumber, &h.IsValid, &carrier, &lineType,
		&h.WhatsAppAvailable, &h.ConfidenceScore, &h.LastValidatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get history %s", phoneNumber)
	}
	h.Carrier = carrier.String
	h.LineType = lineType.String
	return &h, nil
}

func (s *SQLiteStore) UpsertHistory(ctx context.Context, h model.ValidationHistory) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.LastValidatedAt.IsZero() {
		h.LastValidatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO validation_history (id, phone_number, is_valid, carrier, line_type, whatsapp_available, confidence_score, last_validated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(phone_number) DO UPDATE SET
			is_valid = excluded.is_valid,
			carrier = excluded.carrier,
			line_type = excluded.line_type,
			whatsapp_available = excluded.whatsapp_available,
			confidence_score = excluded.confidence_score,
			last_validated_at = excluded.last_validated_at`,
		h.ID, h.PhoneNumber, h.IsValid, h.Carrier, h.LineType,
		h.WhatsAppAvailable, h.ConfidenceScore, h.LastValidatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert history %s", h.PhoneNumber)
}

func (s *SQLiteStore) AppendDecision(ctx context.Context, rec model.DecisionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	traceJSON, err := json.Marshal(rec.Trace)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal trace")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agent_decisions (id, phone_number, strategy, reasoning_trace, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.PhoneNumber, string(rec.Strategy), string(traceJSON), rec.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: append decision %s", rec.PhoneNumber)
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, phoneNumber string, limit int) ([]model.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, phone_number, strategy, reasoning_trace, created_at
		 FROM agent_decisions WHERE phone_number = ?
		 ORDER BY created_at DESC LIMIT ?`,
		phoneNumber, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list decisions %s", phoneNumber)
	}
	defer rows.Close()

	var recs []model.DecisionRecord
	for rows.Next() {
		var rec model.DecisionRecord
		var strategy, traceJSON string
		if err := rows.Scan(&rec.ID, &rec.PhoneNumber, &strategy, &traceJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan decision")
		}
		rec.Strategy = model.ValidationStrategy(strategy)
		if err := json.Unmarshal([]byte(traceJSON), &rec.Trace); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal trace")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: iterate decisions")
}

// RecordProviderResult upserts the provider row and folds the new sample into
// the moving average in a single statement, so concurrent recorders cannot
// lose updates. The old average is weighted by the pre-increment operation
// total and divided by the post-increment total.
func (s *SQLiteStore) RecordProviderResult(ctx context.Context, providerName string, success bool, responseTime float64) error {
	successInc, failureInc := 0, 1
	if success {
		successInc, failureInc = 1, 0
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provider_health (provider_name, success_count, failure_count, avg_response_time, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(provider_name) DO UPDATE SET
			success_count = provider_health.success_count + excluded.success_count,
			failure_count = provider_health.failure_count + excluded.failure_count,
			avg_response_time =
				(provider_health.avg_response_time * (provider_health.success_count + provider_health.failure_count) + excluded.avg_response_time)
				/ (provider_health.success_count + provider_health.failure_count + 1),
			updated_at = excluded.updated_at`,
		providerName, successInc, failureInc, responseTime, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: record provider result %s", providerName)
}

func (s *SQLiteStore) GetProviderHealth(ctx context.Context, providerName string) (*model.ProviderHealth, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT provider_name, success_count, failure_count, avg_response_time, updated_at
		 FROM provider_health WHERE provider_name = ?`,
		providerName,
	)

	var h model.ProviderHealth
	err := row.Scan(&h.ProviderName, &h.SuccessCount, &h.FailureCount, &h.AvgResponseTime, &h.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get provider health %s", providerName)
	}
	return &h, nil
}

func (s *SQLiteStore) ListProviderHealth(ctx context.Context) ([]model.ProviderHealth, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider_name, success_count, failure_count, avg_response_time, updated_at
		 FROM provider_health ORDER BY provider_name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list provider health")
	}
	defer rows.Close()

	var health []model.ProviderHealth
	for rows.Next() {
		var h model.ProviderHealth
		if err := rows.Scan(&h.ProviderName, &h.SuccessCount, &h.FailureCount, &h.AvgResponseTime, &h.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provider health")
		}
		health = append(health, h)
	}
	return health, eris.Wrap(rows.Err(), "sqlite: iterate provider health")
}
