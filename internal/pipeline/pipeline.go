// Package pipeline coordinates one validation pass: history lookup, format
// check, strategy decision, provider orchestration, scoring, and background
// recording.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/validator-cli/internal/confidence"
	"github.com/sells-group/validator-cli/internal/decision"
	"github.com/sells-group/validator-cli/internal/learning"
	"github.com/sells-group/validator-cli/internal/metrics"
	"github.com/sells-group/validator-cli/internal/model"
	"github.com/sells-group/validator-cli/internal/provider"
	"github.com/sells-group/validator-cli/internal/store"
)

// defaultCountryCode is assumed when a request omits the country.
const defaultCountryCode = "US"

// Pipeline runs validations end to end. Validate never returns an error:
// every failure mode downstream degrades to a scored result, and persistence
// happens off the request path.
type Pipeline struct {
	store        store.Store
	orchestrator *provider.Orchestrator
	engine       *decision.Engine
	recorder     *learning.Recorder
	metrics      *metrics.Metrics
}

// New assembles a Pipeline. The recorder and metrics may be nil for one-shot
// use where background recording or instrumentation is not wanted.
func New(st store.Store, orch *provider.Orchestrator, eng *decision.Engine, rec *learning.Recorder, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		store:        st,
		orchestrator: orch,
		engine:       eng,
		recorder:     rec,
		metrics:      m,
	}
}

// Validate runs one validation pass for a phone number.
func (p *Pipeline) Validate(ctx context.Context, req model.ValidationRequest) *model.ValidationResponse {
	if req.CountryCode == "" {
		req.CountryCode = defaultCountryCode
	}

	history, err := p.store.GetHistory(ctx, req.PhoneNumber)
	if err != nil {
		// A broken history lookup must not fail the validation; decide as
		// if the number had never been seen.
		zap.L().Warn("history lookup failed, proceeding without history",
			zap.String("phone", req.PhoneNumber), zap.Error(err))
		history = nil
	}

	formatResult := p.orchestrator.CheckFormat(ctx, req.PhoneNumber, req.CountryCode)

	trace := p.engine.Decide(req.PhoneNumber, req.CountryCode, history, &formatResult)

	var resp *model.ValidationResponse
	switch {
	case trace.FinalDecision == model.StrategySkip && history != nil && history.IsValid && history.WhatsAppAvailable:
		resp = p.fromHistory(req, formatResult, history, trace)
	case trace.FinalDecision == model.StrategySkip:
		resp = p.fromInvalidFormat(req, formatResult, history, trace)
	default:
		resp = p.fromImmediate(ctx, req, formatResult, history, trace)
	}

	if p.recorder != nil {
		p.recorder.RecordDecision(model.DecisionRecord{
			PhoneNumber: req.PhoneNumber,
			Strategy:    trace.FinalDecision,
			Trace:       trace,
		})
	}
	p.metrics.ObserveValidation(string(trace.FinalDecision), resp.ConfidenceScore)

	return resp
}

// fromHistory answers from the stored row without any remote availability
// check. The format check already ran, so its result feeds the formatted
// number and the format signal; the scorer sees no provider because this
// pass did not exercise one.
func (p *Pipeline) fromHistory(req model.ValidationRequest, formatResult model.FormatResult, history *model.ValidationHistory, trace model.DecisionTrace) *model.ValidationResponse {
	conf := confidence.Score(formatResult.Valid, history.WhatsAppAvailable, "", true)

	return &model.ValidationResponse{
		Success:            true,
		PhoneNumber:        req.PhoneNumber,
		CountryCode:        req.CountryCode,
		FormattedNumber:    formatResult.International,
		Carrier:            history.Carrier,
		LineType:           history.LineType,
		WhatsAppAvailable:  history.WhatsAppAvailable,
		ValidationStrategy: trace.FinalDecision,
		ConfidenceScore:    conf.Score,
		Confidence:         conf,
		DecisionTrace:      trace,
		Reasoning:          trace.Reasoning,
	}
}

// fromInvalidFormat handles the skip taken when the format check fails. No
// availability check runs; the outcome is still recorded so a later request
// for the same number has history.
func (p *Pipeline) fromInvalidFormat(req model.ValidationRequest, formatResult model.FormatResult, history *model.ValidationHistory, trace model.DecisionTrace) *model.ValidationResponse {
	conf := confidence.Score(false, false, "", history != nil)

	if p.recorder != nil {
		p.recorder.RecordHistory(model.ValidationHistory{
			PhoneNumber:     req.PhoneNumber,
			IsValid:         false,
			Carrier:         formatResult.Carrier,
			LineType:        formatResult.LineType,
			ConfidenceScore: conf.Score,
		})
	}

	return &model.ValidationResponse{
		Success:            true,
		PhoneNumber:        req.PhoneNumber,
		CountryCode:        req.CountryCode,
		FormattedNumber:    formatResult.International,
		Carrier:            formatResult.Carrier,
		LineType:           formatResult.LineType,
		WhatsAppAvailable:  false,
		ValidationStrategy: trace.FinalDecision,
		ConfidenceScore:    conf.Score,
		Confidence:         conf,
		DecisionTrace:      trace,
		Reasoning:          trace.Reasoning,
	}
}

// fromImmediate runs the availability check and scores the combined signals.
func (p *Pipeline) fromImmediate(ctx context.Context, req model.ValidationRequest, formatResult model.FormatResult, history *model.ValidationHistory, trace model.DecisionTrace) *model.ValidationResponse {
	avail := p.orchestrator.CheckAvailability(ctx, req.PhoneNumber)

	// A provider that was tried but did not produce the final answer failed.
	for _, name := range avail.Tried {
		succeeded := name == avail.Provider
		seconds := avail.ResponseTimes[name]
		p.metrics.ObserveProvider(name, succeeded, seconds)
		if p.recorder != nil {
			p.recorder.RecordProviderResult(name, succeeded, seconds)
		}
	}

	conf := confidence.Score(formatResult.Valid, avail.Available, avail.Provider, history != nil)

	if p.recorder != nil {
		p.recorder.RecordHistory(model.ValidationHistory{
			PhoneNumber:       req.PhoneNumber,
			IsValid:           formatResult.Valid,
			Carrier:           formatResult.Carrier,
			LineType:          formatResult.LineType,
			WhatsAppAvailable: avail.Available,
			ConfidenceScore:   conf.Score,
		})
	}

	return &model.ValidationResponse{
		Success:            true,
		PhoneNumber:        req.PhoneNumber,
		CountryCode:        req.CountryCode,
		FormattedNumber:    formatResult.International,
		Carrier:            formatResult.Carrier,
		LineType:           formatResult.LineType,
		WhatsAppAvailable:  avail.Available,
		ValidationStrategy: trace.FinalDecision,
		ConfidenceScore:    conf.Score,
		Confidence:         conf,
		DecisionTrace:      trace,
		RetryMetadata: model.RetryMetadata{
			Provider: avail.Provider,
			Tried:    avail.Tried,
		},
		Reasoning: trace.Reasoning,
	}
}
