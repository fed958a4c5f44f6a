// Package provider performs the remote validation checks: a best-effort
// format lookup and a messaging-availability check with bounded retries and
// failover between a primary and a fallback provider.
package provider

import (
	"context"

	"github.com/sells-group/validator-cli/pkg/whapi"
)

// Provider identifiers as they appear in failover metadata, confidence
// weighting, and provider_health rows.
const (
	Primary  = whapi.ProviderName
	Fallback = "mock"
)

// AvailabilityChecker answers whether a number is reachable on the messaging
// platform. Implementations map provider-specific status fields to a boolean
// and surface transport failures as retryable errors.
type AvailabilityChecker interface {
	CheckContact(ctx context.Context, phoneNumber string) (bool, error)
}

// MockChecker is the fallback availability provider. It always reports the
// number as reachable, which is why results it produces earn reduced
// provider-reliability credit from the scorer.
type MockChecker struct{}

// CheckContact implements AvailabilityChecker.
func (MockChecker) CheckContact(_ context.Context, _ string) (bool, error) {
	return true, nil
}
