package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/validator-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgres_GetHistory_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, phone_number, is_valid`).
		WithArgs("14155552671").
		WillReturnError(pgx.ErrNoRows)

	h, err := s.GetHistory(context.Background(), "14155552671")
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetHistory_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	carrier := "Vivo"
	lineType := "mobile"
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, phone_number, is_valid`).
		WithArgs("5511999998888").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "phone_number", "is_valid", "carrier", "line_type",
			"whatsapp_available", "confidence_score", "last_validated_at",
		}).AddRow("id-1", "5511999998888", true, &carrier, &lineType, true, 90.0, now))

	h, err := s.GetHistory(context.Background(), "5511999998888")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.True(t, h.IsValid)
	assert.Equal(t, "Vivo", h.Carrier)
	assert.Equal(t, "mobile", h.LineType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertHistory(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO validation_history`).
		WithArgs(pgxmock.AnyArg(), "14155552671", true, "AT&T", "mobile", true, 90.0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertHistory(context.Background(), model.ValidationHistory{
		PhoneNumber:       "14155552671",
		IsValid:           true,
		Carrier:           "AT&T",
		LineType:          "mobile",
		WhatsAppAvailable: true,
		ConfidenceScore:   90,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AppendDecision(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO agent_decisions`).
		WithArgs(pgxmock.AnyArg(), "14155552671", "immediate", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.AppendDecision(context.Background(), model.DecisionRecord{
		PhoneNumber: "14155552671",
		Strategy:    model.StrategyImmediate,
		Trace: model.DecisionTrace{
			FinalDecision: model.StrategyImmediate,
			Reasoning:     "Standard priority, proceeding with validation.",
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordProviderResult_Success(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO provider_health`).
		WithArgs("whapi", 1, 0, 4.0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordProviderResult(context.Background(), "whapi", true, 4.0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordProviderResult_Failure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO provider_health`).
		WithArgs("whapi", 0, 1, 10.0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordProviderResult(context.Background(), "whapi", false, 10.0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListProviderHealth(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT provider_name, success_count`).
		WillReturnRows(pgxmock.NewRows([]string{
			"provider_name", "success_count", "failure_count", "avg_response_time", "updated_at",
		}).
			AddRow("mock", int64(3), int64(0), 0.1, now).
			AddRow("whapi", int64(10), int64(2), 1.8, now))

	health, err := s.ListProviderHealth(context.Background())
	require.NoError(t, err)
	require.Len(t, health, 2)
	assert.Equal(t, "mock", health[0].ProviderName)
	assert.Equal(t, int64(2), health[1].FailureCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS validation_history`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
