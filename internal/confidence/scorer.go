// Package confidence turns the signals gathered during a validation pass into
// a single auditable 0-100 score.
package confidence

import (
	"github.com/sells-group/validator-cli/internal/model"
	"github.com/sells-group/validator-cli/internal/provider"
)

// Classification labels for the score thresholds.
const (
	ClassificationHigh   = "HIGH"
	ClassificationMedium = "MEDIUM"
	ClassificationLow    = "LOW"
)

// Point allocation per signal. All positive signals together sum to 100.
const (
	pointsFormat           = 20
	pointsPrimaryProvider  = 25
	pointsFallbackProvider = 10
	pointsWhatsAppFound    = 30
	pointsHistory          = 10
	pointsConsistency      = 15
)

// Score computes the confidence score for a validation result. It is pure and
// deterministic: the same four inputs always produce the same score,
// classification, and breakdown.
//
// A confirmed-absent WhatsApp result earns no detection credit even though it
// is itself informative; the asymmetry is intentional (the score measures
// confidence in reachability, not confidence in the answer).
func Score(isValidFormat, whatsappExists bool, providerUsed string, historyPresent bool) model.ConfidenceResult {
	score := 0.0
	breakdown := make(map[string]float64, 5)

	if isValidFormat {
		score += pointsFormat
		breakdown["format"] = pointsFormat
	} else {
		breakdown["format"] = 0
	}

	switch providerUsed {
	case provider.Primary:
		score += pointsPrimaryProvider
		breakdown["provider_reliability"] = pointsPrimaryProvider
	case provider.Fallback:
		score += pointsFallbackProvider
		breakdown["provider_reliability"] = pointsFallbackProvider
	default:
		breakdown["provider_reliability"] = 0
	}

	if whatsappExists {
		score += pointsWhatsAppFound
		breakdown["whatsapp_detection"] = pointsWhatsAppFound
	} else {
		breakdown["whatsapp_detection"] = 0
	}

	if historyPresent {
		score += pointsHistory
		breakdown["history"] = pointsHistory
	} else {
		breakdown["history"] = 0
	}

	// Base credit granted unconditionally.
	score += pointsConsistency
	breakdown["consistency"] = pointsConsistency

	final := min(max(score, 0), 100)

	return model.ConfidenceResult{
		Score:          final,
		Classification: classify(final),
		Breakdown:      breakdown,
	}
}

func classify(score float64) string {
	switch {
	case score >= 80:
		return ClassificationHigh
	case score >= 60:
		return ClassificationMedium
	default:
		return ClassificationLow
	}
}
