package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/validator-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Validation history ---

func TestSQLite_History_MissingRow(t *testing.T) {
	st := newTestSQLiteStore(t)

	h, err := st.GetHistory(context.Background(), "14155552671")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestSQLite_History_UpsertAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.UpsertHistory(ctx, model.ValidationHistory{
		PhoneNumber:       "5511999998888",
		IsValid:           true,
		Carrier:           "Vivo",
		LineType:          "mobile",
		WhatsAppAvailable: true,
		ConfidenceScore:   90,
	})
	require.NoError(t, err)

	h, err := st.GetHistory(ctx, "5511999998888")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.True(t, h.IsValid)
	assert.True(t, h.WhatsAppAvailable)
	assert.Equal(t, "Vivo", h.Carrier)
	assert.Equal(t, 90.0, h.ConfidenceScore)
	assert.False(t, h.LastValidatedAt.IsZero())
}

func TestSQLite_History_OneRowPerNumber(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertHistory(ctx, model.ValidationHistory{
		PhoneNumber: "14155552671", IsValid: true, ConfidenceScore: 75,
	}))
	require.NoError(t, st.UpsertHistory(ctx, model.ValidationHistory{
		PhoneNumber: "14155552671", IsValid: false, ConfidenceScore: 15,
	}))

	h, err := st.GetHistory(ctx, "14155552671")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.False(t, h.IsValid)
	assert.Equal(t, 15.0, h.ConfidenceScore)
}

// --- Decision log ---

func TestSQLite_Decisions_AppendAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	trace := model.DecisionTrace{
		Steps: []model.DecisionSignal{
			{RuleName: "History Check", Passed: false, Details: "No valid recent history found"},
			{RuleName: "Country Priority", Passed: true, Details: "Country BR is High priority"},
		},
		FinalDecision: model.StrategyImmediate,
		Reasoning:     "High priority market, proceed with immediate validation.",
	}

	require.NoError(t, st.AppendDecision(ctx, model.DecisionRecord{
		PhoneNumber: "5511999998888",
		Strategy:    model.StrategyImmediate,
		Trace:       trace,
	}))
	require.NoError(t, st.AppendDecision(ctx, model.DecisionRecord{
		PhoneNumber: "5511999998888",
		Strategy:    model.StrategySkip,
		Trace:       model.DecisionTrace{FinalDecision: model.StrategySkip, Reasoning: "Information already known and valid."},
	}))

	recs, err := st.ListDecisions(ctx, "5511999998888", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// The append-only log keeps the full trace round-trippable.
	var full model.DecisionRecord
	for _, r := range recs {
		if r.Strategy == model.StrategyImmediate {
			full = r
		}
	}
	require.Len(t, full.Trace.Steps, 2)
	assert.Equal(t, "History Check", full.Trace.Steps[0].RuleName)
	assert.Equal(t, model.StrategyImmediate, full.Trace.FinalDecision)
}

func TestSQLite_Decisions_EmptyList(t *testing.T) {
	st := newTestSQLiteStore(t)

	recs, err := st.ListDecisions(context.Background(), "none", 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

// --- Provider health ---

func TestSQLite_ProviderHealth_MovingAverage(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// First success: average equals the sample.
	require.NoError(t, st.RecordProviderResult(ctx, "whapi", true, 4.0))

	h, err := st.GetProviderHealth(ctx, "whapi")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, int64(1), h.SuccessCount)
	assert.Equal(t, int64(0), h.FailureCount)
	assert.InDelta(t, 4.0, h.AvgResponseTime, 1e-9)

	// Second success: old average weighted by the prior total of 1.
	require.NoError(t, st.RecordProviderResult(ctx, "whapi", true, 8.0))

	h, err = st.GetProviderHealth(ctx, "whapi")
	require.NoError(t, err)
	assert.Equal(t, int64(2), h.SuccessCount)
	assert.InDelta(t, 6.0, h.AvgResponseTime, 1e-9)
}

func TestSQLite_ProviderHealth_FailureCountsInAverage(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.RecordProviderResult(ctx, "whapi", true, 2.0))
	require.NoError(t, st.RecordProviderResult(ctx, "whapi", false, 10.0))
	require.NoError(t, st.RecordProviderResult(ctx, "whapi", true, 3.0))

	h, err := st.GetProviderHealth(ctx, "whapi")
	require.NoError(t, err)
	assert.Equal(t, int64(2), h.SuccessCount)
	assert.Equal(t, int64(1), h.FailureCount)
	assert.InDelta(t, 5.0, h.AvgResponseTime, 1e-9)
}

func TestSQLite_ProviderHealth_List(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.RecordProviderResult(ctx, "whapi", true, 1.0))
	require.NoError(t, st.RecordProviderResult(ctx, "mock", true, 0.1))

	health, err := st.ListProviderHealth(ctx)
	require.NoError(t, err)
	require.Len(t, health, 2)
	assert.Equal(t, "mock", health[0].ProviderName)
	assert.Equal(t, "whapi", health[1].ProviderName)
}

func TestSQLite_ProviderHealth_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	h, err := st.GetProviderHealth(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, h)
}
