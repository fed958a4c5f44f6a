package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/validator-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"get_history":     `SELECT id, phone_number, is_valid, carrier, line_type, whatsapp_available, confidence_score, last_validated_at FROM validation_history WHERE phone_number = $1`,
	"append_decision": `INSERT INTO agent_decisions (id, phone_number, strategy, reasoning_trace, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"get_provider":    `SELECT provider_name, success_count, failure_count, avg_response_time, updated_at FROM provider_health WHERE provider_name = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS validation_history (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	phone_number       TEXT NOT NULL UNIQUE,
	is_valid           BOOLEAN NOT NULL DEFAULT false,
	carrier            TEXT,
	line_type          TEXT,
	whatsapp_available BOOLEAN NOT NULL DEFAULT false,
	confidence_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_validated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS agent_decisions (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	phone_number    TEXT NOT NULL,
	strategy        TEXT NOT NULL,
	reasoning_trace JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS provider_health (
	provider_name     TEXT PRIMARY KEY,
	success_count     BIGINT NOT NULL DEFAULT 0,
	failure_count     BIGINT NOT NULL DEFAULT 0,
	avg_response_time DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_agent_decisions_phone ON agent_decisions(phone_number);
CREATE INDEX IF NOT EXISTS idx_agent_decisions_created ON agent_decisions(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetHistory(ctx context.Context, phoneNumber string) (*model.ValidationHistory, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, phone_number, is_valid, carrier, line_type, whatsapp_available, confidence_score, last_validated_at
		 FROM validation_history WHERE phone_number = $1`,
		phoneNumber,
	)

	var h model.ValidationHistory
	var carrier, lineType *string
	err := row.Scan(&h.ID, &h.PhoneNumber, &h.IsValid, &carrier, &lineType,
		&h.WhatsAppAvailable, &h.ConfidenceScore, &h.LastValidatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get history %s", phoneNumber)
	}
	if carrier != nil {
		h.Carrier = *carrier
	}
	if lineType != nil {
		h.LineType = *lineType
	}
	return &h, nil
}

func (s *PostgresStore) UpsertHistory(ctx context.Context, h model.ValidationHistory) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.LastValidatedAt.IsZero() {
		h.LastValidatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO validation_history (id, phone_number, is_valid, carrier, line_type, whatsapp_available, confidence_score, last_validated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (phone_number) DO UPDATE SET
			is_valid = EXCLUDED.is_valid,
			carrier = EXCLUDED.carrier,
			line_type = EXCLUDED.line_type,
			whatsapp_available = EXCLUDED.whatsapp_available,
			confidence_score = EXCLUDED.confidence_score,
			last_validated_at = EXCLUDED.last_validated_at`,
		h.ID, h.PhoneNumber, h.IsValid, h.Carrier, h.LineType,
		h.WhatsAppAvailable, h.ConfidenceScore, h.LastValidatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert history %s", h.PhoneNumber)
}

func (s *PostgresStore) AppendDecision(ctx context.Context, rec model.DecisionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	traceJSON, err := json.Marshal(rec.Trace)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal trace")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO agent_decisions (id, phone_number, strategy, reasoning_trace, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.PhoneNumber, string(rec.Strategy), traceJSON, rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: append decision %s", rec.PhoneNumber)
}

func (s *PostgresStore) ListDecisions(ctx context.Context, phoneNumber string, limit int) ([]model.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, phone_number, strategy, reasoning_trace, created_at
		 FROM agent_decisions WHERE phone_number = $1
		 ORDER BY created_at DESC LIMIT $2`,
		phoneNumber, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list decisions %s", phoneNumber)
	}
	defer rows.Close()

	var recs []model.DecisionRecord
	for rows.Next() {
		var rec model.DecisionRecord
		var strategy string
		var traceJSON []byte
		if err := rows.Scan(&rec.ID, &rec.PhoneNumber, &strategy, &traceJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan decision")
		}
		rec.Strategy = model.ValidationStrategy(strategy)
		if err := json.Unmarshal(traceJSON, &rec.Trace); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal trace")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: iterate decisions")
}

// RecordProviderResult folds one sample into the provider row with a single
// atomic upsert; the row arithmetic runs inside the statement so concurrent
// updates serialize on the row lock instead of losing increments.
func (s *PostgresStore) RecordProviderResult(ctx context.Context, providerName string, success bool, responseTime float64) error {
	successInc, failureInc := 0, 1
	if success {
		successInc, failureInc = 1, 0
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO provider_health (provider_name, success_count, failure_count, avg_response_time, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (provider_name) DO UPDATE SET
			success_count = provider_health.success_count + EXCLUDED.success_count,
			failure_count = provider_health.failure_count + EXCLUDED.failure_count,
			avg_response_time =
				(provider_health.avg_response_time * (provider_health.success_count + provider_health.failure_count) + EXCLUDED.avg_response_time)
				/ (provider_health.success_count + provider_health.failure_count + 1),
			updated_at = EXCLUDED.updated_at`,
		providerName, successInc, failureInc, responseTime, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: record provider result %s", providerName)
}

func (s *PostgresStore) GetProviderHealth(ctx context.Context, providerName string) (*model.ProviderHealth, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT provider_name, success_count, failure_count, avg_response_time, updated_at
		 FROM provider_health WHERE provider_name = $1`,
		providerName,
	)

	var h model.ProviderHealth
	err := row.Scan(&h.ProviderName, &h.SuccessCount, &h.FailureCount, &h.AvgResponseTime, &h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get provider health %s", providerName)
	}
	return &h, nil
}

func (s *PostgresStore) ListProviderHealth(ctx context.Context) ([]model.ProviderHealth, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT provider_name, success_count, failure_count, avg_response_time, updated_at
		 FROM provider_health ORDER BY provider_name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list provider health")
	}
	defer rows.Close()

	var health []model.ProviderHealth
	for rows.Next() {
		var h model.ProviderHealth
		if err := rows.Scan(&h.ProviderName, &h.SuccessCount, &h.FailureCount, &h.AvgResponseTime, &h.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provider health")
		}
		health = append(health, h)
	}
	return health, eris.Wrap(rows.Err(), "postgres: iterate provider health")
}
