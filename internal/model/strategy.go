package model

// ValidationStrategy is the course of action chosen for a phone number.
type ValidationStrategy string

const (
	// StrategyImmediate runs the remote availability check now.
	StrategyImmediate ValidationStrategy = "immediate"
	// StrategyDeferred queues the check for later. Reserved: the decision
	// engine can emit it but the pipeline does not execute deferred work yet.
	StrategyDeferred ValidationStrategy = "deferred"
	// StrategySkip trusts existing data and makes no remote call.
	StrategySkip ValidationStrategy = "skip"
)

// DecisionSignal is one evaluated rule in a decision pass. Signals are
// append-only; their order is the evaluation order and matters for audit.
type DecisionSignal struct {
	RuleName string `json:"rule_name"`
	Passed   bool   `json:"passed"`
	Details  string `json:"details"`
}

// DecisionTrace is the ordered audit log of a single decision pass: every
// rule evaluated, the final strategy, and a human-readable reasoning string.
// Immutable after creation.
type DecisionTrace struct {
	Steps         []DecisionSignal   `json:"steps"`
	FinalDecision ValidationStrategy `json:"final_decision"`
	Reasoning     string             `json:"reasoning"`
}
