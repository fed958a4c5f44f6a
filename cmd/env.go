package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/validator-cli/internal/decision"
	"github.com/sells-group/validator-cli/internal/learning"
	"github.com/sells-group/validator-cli/internal/metrics"
	"github.com/sells-group/validator-cli/internal/pipeline"
	"github.com/sells-group/validator-cli/internal/provider"
	"github.com/sells-group/validator-cli/internal/resilience"
	"github.com/sells-group/validator-cli/internal/store"
	"github.com/sells-group/validator-cli/pkg/numverify"
	"github.com/sells-group/validator-cli/pkg/whapi"
)

// pipelineEnv holds the initialized store, recorder, and pipeline needed by
// the validate/batch/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Recorder *learning.Recorder
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
}

// Close drains the recorder queue, then releases the store.
func (pe *pipelineEnv) Close() {
	if pe.Recorder != nil {
		_ = pe.Recorder.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "validator.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline sets up the store, provider clients, decision engine,
// background recorder, and pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	// Format client is optional; without a key the format check degrades to
	// a permissive default.
	var formatClient numverify.Client
	if cfg.NumVerify.Key != "" {
		formatClient = numverify.NewClient(cfg.NumVerify.Key, numverify.WithBaseURL(cfg.NumVerify.BaseURL))
	} else {
		zap.L().Warn("VALIDATOR_NUMVERIFY_KEY not set, format checks degrade to permissive defaults")
	}

	whapiClient := whapi.NewClient(cfg.Whapi.Token, whapi.WithBaseURL(cfg.Whapi.BaseURL))

	primaryPolicy := resilience.DefaultPolicy()
	primaryPolicy.MaxAttempts = cfg.Providers.PrimaryAttempts
	fallbackPolicy := resilience.FallbackPolicy()
	fallbackPolicy.MaxAttempts = cfg.Providers.FallbackAttempts

	orch := provider.New(provider.Config{
		Timeout:        time.Duration(cfg.Providers.TimeoutSecs) * time.Second,
		PrimaryPolicy:  primaryPolicy,
		FallbackPolicy: fallbackPolicy,
		RateLimit:      rate.Limit(cfg.Providers.RatePerSecond),
		RateBurst:      cfg.Providers.RateBurst,
	}, formatClient, whapiClient, nil)

	policy := decision.DefaultPolicy()
	if cfg.Decision.PolicyFile != "" {
		policy, err = decision.LoadPolicy(cfg.Decision.PolicyFile)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load decision policy")
		}
	}
	engine := decision.NewEngine(policy)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	recorder := learning.NewRecorder(st, m, learning.Config{
		QueueSize:       cfg.Learning.QueueSize,
		JobTimeout:      time.Duration(cfg.Learning.JobTimeoutSecs) * time.Second,
		ShutdownTimeout: time.Duration(cfg.Learning.ShutdownTimeoutSecs) * time.Second,
	})

	p := pipeline.New(st, orch, engine, recorder, m)

	return &pipelineEnv{
		Store:    st,
		Pipeline: p,
		Recorder: recorder,
		Metrics:  m,
		Registry: registry,
	}, nil
}
