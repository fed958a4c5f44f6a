// Package decision chooses a validation strategy for a phone number from
// historical data and format signals, producing an audit trace of every rule
// it evaluated.
package decision

import (
	"fmt"

	"github.com/sells-group/validator-cli/internal/model"
)

// Rule names as they appear in decision traces. Stable identifiers: traces
// are persisted and analyzed offline.
const (
	RuleHistoryCheck    = "History Check"
	RuleNumVerifyFormat = "NumVerify Format"
	RuleCountryPriority = "Country Priority"
)

// Engine evaluates the decision rules in a fixed order. It holds no mutable
// state beyond its policy and is safe for concurrent use.
type Engine struct {
	policy Policy
}

// NewEngine creates an Engine with the given policy.
func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Decide chooses a validation strategy. It is pure and total: a missing
// history row or format result is valid input, not an error. The first
// terminal rule short-circuits, but every evaluated rule is appended to the
// trace, including the one that triggered the return.
func (e *Engine) Decide(phoneNumber, countryCode string, history *model.ValidationHistory, formatCheck *model.FormatResult) model.DecisionTrace {
	var steps []model.DecisionSignal

	// Rule 1: trust known-good history to avoid paying for a remote check.
	// Recency is deliberately not considered; a stale positive row skips
	// exactly like a fresh one.
	if history != nil && history.IsValid && history.WhatsAppAvailable {
		steps = append(steps, model.DecisionSignal{
			RuleName: RuleHistoryCheck,
			Passed:   true,
			Details:  "Found recent successful validation in history",
		})
		return model.DecisionTrace{
			Steps:         steps,
			FinalDecision: model.StrategySkip,
			Reasoning:     "Information already known and valid.",
		}
	}

	steps = append(steps, model.DecisionSignal{
		RuleName: RuleHistoryCheck,
		Passed:   false,
		Details:  "No valid recent history found",
	})

	// Rule 2: an invalid format makes the messaging check pointless.
	if formatCheck != nil {
		steps = append(steps, model.DecisionSignal{
			RuleName: RuleNumVerifyFormat,
			Passed:   formatCheck.Valid,
			Details:  fmt.Sprintf("Format Valid: %t, Type: %s", formatCheck.Valid, formatCheck.LineType),
		})

		if !formatCheck.Valid {
			return model.DecisionTrace{
				Steps:         steps,
				FinalDecision: model.StrategySkip,
				Reasoning:     "Number format is invalid according to NumVerify.",
			}
		}
	} else {
		steps = append(steps, model.DecisionSignal{
			RuleName: RuleNumVerifyFormat,
			Passed:   false,
			Details:  "No format data supplied",
		})
	}

	// Rule 3: country priority. Recorded for audit only; both branches
	// conclude IMMEDIATE under the current policy.
	isPriority := e.policy.IsPriority(countryCode)
	priorityLabel := "Standard"
	if isPriority {
		priorityLabel = "High"
	}
	steps = append(steps, model.DecisionSignal{
		RuleName: RuleCountryPriority,
		Passed:   isPriority,
		Details:  fmt.Sprintf("Country %s is %s priority", countryCode, priorityLabel),
	})

	reasoning := "Standard priority, proceeding with validation."
	if isPriority {
		reasoning = "High priority market, proceed with immediate validation."
	}

	return model.DecisionTrace{
		Steps:         steps,
		FinalDecision: model.StrategyImmediate,
		Reasoning:     reasoning,
	}
}
