// Package learning records validation outcomes in the background so the
// request path never waits on the database.
package learning

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/validator-cli/internal/metrics"
	"github.com/sells-group/validator-cli/internal/model"
	"github.com/sells-group/validator-cli/internal/store"
)

// Config tunes the background recorder.
type Config struct {
	// QueueSize bounds the pending-job buffer. When full, new jobs are
	// dropped and logged rather than blocking the caller.
	QueueSize int
	// JobTimeout bounds each store write.
	JobTimeout time.Duration
	// ShutdownTimeout bounds how long Close waits for queued jobs to drain.
	ShutdownTimeout time.Duration
}

type job func(ctx context.Context)

// Recorder runs store writes on a single background worker. Enqueue methods
// never block and never return errors; a failed write is logged and dropped.
type Recorder struct {
	store   store.Store
	metrics *metrics.Metrics
	cfg     Config

	queue chan job
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewRecorder creates a Recorder and starts its worker.
func NewRecorder(st store.Store, m *metrics.Metrics, cfg Config) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	r := &Recorder{
		store:   st,
		metrics: m,
		cfg:     cfg,
		queue:   make(chan job, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for j := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.JobTimeout)
		j(ctx)
		cancel()
	}
}

// Close stops accepting jobs and waits for the queue to drain, up to the
// configured shutdown timeout.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-time.After(r.cfg.ShutdownTimeout):
		zap.L().Warn("learning: shutdown timeout, abandoning queued jobs")
		return nil
	}
}

func (r *Recorder) enqueue(name string, j job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		zap.L().Warn("learning: recorder closed, dropping job", zap.String("job", name))
		r.metrics.ObserveQueueDrop()
		return
	}
	select {
	case r.queue <- j:
	default:
		zap.L().Warn("learning: queue full, dropping job", zap.String("job", name))
		r.metrics.ObserveQueueDrop()
	}
}

// RecordDecision appends one entry to the decision audit log.
func (r *Recorder) RecordDecision(rec model.DecisionRecord) {
	r.enqueue("decision", func(ctx context.Context) {
		if err := r.store.AppendDecision(ctx, rec); err != nil {
			zap.L().Warn("learning: append decision failed",
				zap.String("phone_number", rec.PhoneNumber), zap.Error(err))
		}
	})
}

// RecordProviderResult folds one provider sample into its health row.
func (r *Recorder) RecordProviderResult(providerName string, success bool, responseTime float64) {
	r.enqueue("provider", func(ctx context.Context) {
		if err := r.store.RecordProviderResult(ctx, providerName, success, responseTime); err != nil {
			zap.L().Warn("learning: record provider result failed",
				zap.String("provider", providerName), zap.Error(err))
		}
	})
}

// RecordHistory upserts the latest validation outcome for a number.
func (r *Recorder) RecordHistory(h model.ValidationHistory) {
	r.enqueue("history", func(ctx context.Context) {
		if err := r.store.UpsertHistory(ctx, h); err != nil {
			zap.L().Warn("learning: upsert history failed",
				zap.String("phone_number", h.PhoneNumber), zap.Error(err))
		}
	})
}

// Flush blocks until all jobs queued before the call have run. It is intended
// for the one-shot CLI commands and tests; the server relies on Close instead.
func (r *Recorder) Flush() {
	done := make(chan struct{})
	r.enqueue("flush", func(context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(r.cfg.ShutdownTimeout):
		zap.L().Warn("learning: flush timeout")
	}
}
