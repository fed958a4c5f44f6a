// Package store persists validation history, decision traces, and provider
// health behind a driver-agnostic interface.
package store

import (
	"context"

	"github.com/sells-group/validator-cli/internal/model"
)

// Store defines the persistence interface for the validation pipeline.
//
// GetHistory returns (nil, nil) when no row exists: an absent history is a
// normal input to the decision engine, not an error. RecordProviderResult
// must be atomic per provider row so concurrent updates never lose counts.
type Store interface {
	// Validation history (at most one row per phone number)
	GetHistory(ctx context.Context, phoneNumber string) (*model.ValidationHistory, error)
	UpsertHistory(ctx context.Context, h model.ValidationHistory) error

	// Decision audit log (append-only)
	AppendDecision(ctx context.Context, rec model.DecisionRecord) error
	ListDecisions(ctx context.Context, phoneNumber string, limit int) ([]model.DecisionRecord, error)

	// Provider health
	RecordProviderResult(ctx context.Context, providerName string, success bool, responseTime float64) error
	GetProviderHealth(ctx context.Context, providerName string) (*model.ProviderHealth, error)
	ListProviderHealth(ctx context.Context) ([]model.ProviderHealth, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
