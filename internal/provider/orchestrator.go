package provider

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/validator-cli/internal/model"
	"github.com/sells-group/validator-cli/internal/resilience"
	"github.com/sells-group/validator-cli/pkg/numverify"
	"github.com/sells-group/validator-cli/pkg/whapi"
)

// Config tunes orchestrator behavior. Zero values fall back to the defaults
// used in production: 10s per-call timeout and the standard retry policies.
type Config struct {
	Timeout        time.Duration
	PrimaryPolicy  resilience.Policy
	FallbackPolicy resilience.Policy
	RateLimit      rate.Limit
	RateBurst      int
}

// Orchestrator performs the remote checks for the validation pipeline. The
// format check is single-shot best-effort; the availability check runs the
// primary provider under its retry policy and fails over to the fallback.
type Orchestrator struct {
	format    numverify.Client // nil when no credential is configured
	primary   AvailabilityChecker
	fallback  AvailabilityChecker
	timeout   time.Duration
	primaryP  resilience.Policy
	fallbackP resilience.Policy

	// One limiter per upstream service; the in-process fallback is not limited.
	formatLimiter  *rate.Limiter
	primaryLimiter *rate.Limiter
}

// New creates an Orchestrator. Pass a nil format client when no NumVerify
// credential is configured; the format check then degrades to a permissive
// default instead of calling out. A nil fallback defaults to MockChecker.
func New(cfg Config, format numverify.Client, primary AvailabilityChecker, fallback AvailabilityChecker) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PrimaryPolicy.MaxAttempts == 0 {
		cfg.PrimaryPolicy = resilience.DefaultPolicy()
	}
	if cfg.FallbackPolicy.MaxAttempts == 0 {
		cfg.FallbackPolicy = resilience.FallbackPolicy()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = rate.Inf
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	if fallback == nil {
		fallback = MockChecker{}
	}

	return &Orchestrator{
		format:         format,
		primary:        primary,
		fallback:       fallback,
		timeout:        cfg.Timeout,
		primaryP:       cfg.PrimaryPolicy,
		fallbackP:      cfg.FallbackPolicy,
		formatLimiter:  rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		primaryLimiter: rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
	}
}

// CheckFormat validates the number format via NumVerify. A single best-effort
// attempt: failures degrade to an invalid result whose line type names the
// failure mode, and are never retried.
func (o *Orchestrator) CheckFormat(ctx context.Context, phoneNumber, countryCode string) model.FormatResult {
	if o.format == nil {
		zap.L().Warn("numverify credential missing, skipping enhanced format check",
			zap.String("phone", phoneNumber))
		return model.FormatResult{Valid: true, LineType: "unknown (api_key_missing)"}
	}

	if err := o.formatLimiter.Wait(ctx); err != nil {
		return model.FormatResult{Valid: false, LineType: "unknown (exception)", Carrier: "unknown (exception)"}
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.format.Validate(callCtx, phoneNumber, countryCode)
	if err != nil {
		var se *numverify.StatusError
		if errors.As(err, &se) {
			zap.L().Error("numverify returned non-success status",
				zap.String("phone", phoneNumber),
				zap.Int("status", se.Code))
			return model.FormatResult{Valid: false, LineType: "unknown (error)", Carrier: "unknown (error)"}
		}
		zap.L().Error("numverify call failed",
			zap.String("phone", phoneNumber),
			zap.Error(err))
		return model.FormatResult{Valid: false, LineType: "unknown (exception)", Carrier: "unknown (exception)"}
	}

	return model.FormatResult{
		Valid:         resp.Valid,
		Number:        resp.Number,
		International: resp.InternationalFormat,
		CountryCode:   resp.CountryCode,
		Carrier:       resp.Carrier,
		LineType:      resp.LineType,
	}
}

// CheckAvailability answers whether the number is reachable on WhatsApp,
// failing over from the primary provider to the fallback once the primary's
// retry budget is exhausted. It never returns an error: the worst case is a
// degraded result naming every provider attempted.
func (o *Orchestrator) CheckAvailability(ctx context.Context, phoneNumber string) model.AvailabilityResult {
	tried := make([]string, 0, 2)
	times := make(map[string]float64, 2)

	start := time.Now()
	available, err := o.callPrimary(ctx, phoneNumber)
	times[Primary] = time.Since(start).Seconds()
	tried = append(tried, Primary)

	if err == nil {
		return model.AvailabilityResult{
			Available:     available,
			Provider:      Primary,
			Tried:         tried,
			ResponseTimes: times,
		}
	}
	zap.L().Warn("primary availability provider failed, falling back",
		zap.String("phone", phoneNumber),
		zap.String("provider", Primary),
		zap.Error(err))

	start = time.Now()
	available, err = resilience.Attempt(ctx, o.fallbackP, func(ctx context.Context) (bool, error) {
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		return o.fallback.CheckContact(callCtx, phoneNumber)
	})
	times[Fallback] = time.Since(start).Seconds()
	tried = append(tried, Fallback)

	if err != nil {
		zap.L().Error("fallback availability provider failed",
			zap.String("phone", phoneNumber),
			zap.Error(err))
		return model.AvailabilityResult{
			Available:     false,
			Provider:      Fallback,
			Tried:         tried,
			ResponseTimes: times,
		}
	}

	return model.AvailabilityResult{
		Available:     available,
		Provider:      Fallback,
		Tried:         tried,
		ResponseTimes: times,
	}
}

func (o *Orchestrator) callPrimary(ctx context.Context, phoneNumber string) (bool, error) {
	policy := o.primaryP
	policy.ShouldRetry = retryablePrimaryError
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.RetryLogger(Primary)
	}

	return resilience.Attempt(ctx, policy, func(ctx context.Context) (bool, error) {
		if err := o.primaryLimiter.Wait(ctx); err != nil {
			return false, err
		}
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		return o.primary.CheckContact(callCtx, phoneNumber)
	})
}

// retryablePrimaryError retries transport-level failures and non-success HTTP
// statuses. Application-level answers (including a missing credential) fail
// over immediately instead of burning attempts.
func retryablePrimaryError(err error) bool {
	var se *whapi.StatusError
	if errors.As(err, &se) {
		return true
	}
	if errors.Is(err, whapi.ErrMissingToken) {
		return false
	}
	return resilience.IsTransient(err)
}
