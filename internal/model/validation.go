package model

import "time"

// FormatResult is the outcome of a format/carrier lookup for one number.
// A missing credential or a failed call degrades to a permissive or invalid
// result rather than an error; the failure mode is encoded in LineType.
type FormatResult struct {
	Valid         bool   `json:"valid"`
	Number        string `json:"number,omitempty"`
	International string `json:"international_format,omitempty"`
	CountryCode   string `json:"country_code,omitempty"`
	Carrier       string `json:"carrier,omitempty"`
	LineType      string `json:"line_type,omitempty"`
}

// AvailabilityResult is the outcome of a messaging-availability check,
// including which provider finally answered and every provider attempted,
// in order. ResponseTimes holds the wall-clock seconds spent per provider
// slot (retries included) for health tracking.
type AvailabilityResult struct {
	Available     bool               `json:"available"`
	Provider      string             `json:"provider"`
	Tried         []string           `json:"tried"`
	ResponseTimes map[string]float64 `json:"-"`
}

// ConfidenceResult is a deterministic 0-100 score with its per-signal
// breakdown. The breakdown is exposed unmodified to every consumer.
type ConfidenceResult struct {
	Score          float64            `json:"score"`
	Classification string             `json:"classification"`
	Breakdown      map[string]float64 `json:"breakdown"`
}

// ValidationRequest is a single-number validation request.
type ValidationRequest struct {
	PhoneNumber string            `json:"phone_number"`
	CountryCode string            `json:"country_code"`
	Context     map[string]string `json:"context,omitempty"`
}

// RetryMetadata reports the provider failover path taken for a request.
type RetryMetadata struct {
	Provider string   `json:"provider,omitempty"`
	Tried    []string `json:"tried,omitempty"`
}

// ValidationResponse is the full result of one validation pass.
type ValidationResponse struct {
	Success            bool               `json:"success"`
	PhoneNumber        string             `json:"phone_number"`
	CountryCode        string             `json:"country_code"`
	FormattedNumber    string             `json:"formatted_number,omitempty"`
	Carrier            string             `json:"carrier,omitempty"`
	LineType           string             `json:"line_type,omitempty"`
	WhatsAppAvailable  bool               `json:"whatsapp_available"`
	ValidationStrategy ValidationStrategy `json:"validation_strategy"`
	ConfidenceScore    float64            `json:"confidence_score"`
	Confidence         ConfidenceResult   `json:"confidence"`
	DecisionTrace      DecisionTrace      `json:"decision_trace"`
	RetryMetadata      RetryMetadata      `json:"retry_metadata"`
	Reasoning          string             `json:"reasoning"`
}

// ValidationHistory is the last known validation outcome for a phone number.
// At most one row exists per number.
type ValidationHistory struct {
	ID                string    `json:"id"`
	PhoneNumber       string    `json:"phone_number"`
	IsValid           bool      `json:"is_valid"`
	Carrier           string    `json:"carrier,omitempty"`
	LineType          string    `json:"line_type,omitempty"`
	WhatsAppAvailable bool      `json:"whatsapp_available"`
	ConfidenceScore   float64   `json:"confidence_score"`
	LastValidatedAt   time.Time `json:"last_validated_at"`
}

// DecisionRecord is one appended entry of the agent_decisions audit log.
type DecisionRecord struct {
	ID          string             `json:"id"`
	PhoneNumber string             `json:"phone_number"`
	Strategy    ValidationStrategy `json:"strategy"`
	Trace       DecisionTrace      `json:"trace"`
	CreatedAt   time.Time          `json:"created_at"`
}

// ProviderHealth is the running success/failure tally for one provider.
// AvgResponseTime is a count-weighted moving average over all recorded
// operations; counts never decrease.
type ProviderHealth struct {
	ProviderName    string    `json:"provider_name"`
	SuccessCount    int64     `json:"success_count"`
	FailureCount    int64     `json:"failure_count"`
	AvgResponseTime float64   `json:"avg_response_time"`
	UpdatedAt       time.Time `json:"updated_at"`
}
