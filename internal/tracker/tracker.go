// Package tracker matches dispatched correlation tokens against the
// observations that eventually come back, and flags round trips that never
// complete.
//
// The registry is in-memory only: a restart loses pending round trips,
// which is acceptable because every cycle is self-contained and the next
// one starts fresh. Deduplication of redelivered observations also lives
// here rather than in the ingestor; marking a token twice is a no-op.
package tracker

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sebader/iotedge-end2end/internal/domain"
	"github.com/sebader/iotedge-end2end/internal/metrics"
)

// Config holds tracker configuration.
type Config struct {
	// Threshold is the age after which an unobserved round trip is
	// considered expired. Default: 5 minutes.
	Threshold time.Duration

	// SweepInterval is how often the tracker scans for expired round
	// trips. Default: 1 minute.
	SweepInterval time.Duration

	// MaxCompleted bounds how many finished round trips are retained for
	// the snapshot endpoint. Default: 100.
	MaxCompleted int
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:     5 * time.Minute,
		SweepInterval: time.Minute,
		MaxCompleted:  100,
	}
}

type entry struct {
	dispatchedAt time.Time
	observedAt   *time.Time
	expired      bool
}

// Tracker is safe for concurrent use by the dispatcher, the ingestor, and
// its own sweep loop.
type Tracker struct {
	config  Config
	metrics metrics.Sink // optional, nil = disabled
	logger  *slog.Logger
	clock   func() time.Time

	mu        sync.Mutex
	pending   map[domain.CorrelationToken]*entry
	completed []domain.RoundTrip
}

func New(config Config) *Tracker {
	if config.Threshold <= 0 {
		config.Threshold = DefaultConfig().Threshold
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultConfig().SweepInterval
	}
	if config.MaxCompleted <= 0 {
		config.MaxCompleted = DefaultConfig().MaxCompleted
	}
	return &Tracker{
		config:  config,
		logger:  slog.Default().With("component", "tracker"),
		clock:   time.Now,
		pending: make(map[domain.CorrelationToken]*entry),
	}
}

// WithMetrics attaches a metrics sink to the tracker.
func (t *Tracker) WithMetrics(sink metrics.Sink) *Tracker {
	t.metrics = sink
	return t
}

// RegisterDispatch records that a cycle's token went out.
func (t *Tracker) RegisterDispatch(token domain.CorrelationToken, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[token] = &entry{dispatchedAt: at}
}

// MarkObserved closes the loop for a token. Unknown tokens (restart, or
// traffic from another monitor instance) are logged and ignored. Marking
// the same token twice is a no-op.
func (t *Tracker) MarkObserved(token domain.CorrelationToken, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.pending[token]
	if !ok {
		t.logger.Debug("observation for unknown token", "correlation_id", token.String())
		return
	}
	if e.observedAt != nil {
		return
	}

	observed := at
	e.observedAt = &observed

	latency := at.Sub(e.dispatchedAt)
	t.logger.Info("round trip completed",
		"correlation_id", token.String(),
		"latency", latency.String(),
	)
	if t.metrics != nil {
		t.metrics.RoundTripLatency(latency.Seconds())
	}

	t.retire(token, domain.RoundTrip{
		CorrelationID: token,
		DispatchedAt:  e.dispatchedAt,
		ObservedAt:    e.observedAt,
	})
}

// Run starts the sweep loop. It blocks until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.config.SweepInterval)
	defer ticker.Stop()

	t.logger.Info("started",
		"threshold", t.config.Threshold.String(),
		"sweep_interval", t.config.SweepInterval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("stopped")
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

// sweep expires round trips older than the threshold.
func (t *Tracker) sweep() {
	cutoff := t.clock().UTC().Add(-t.config.Threshold)

	t.mu.Lock()
	defer t.mu.Unlock()

	for token, e := range t.pending {
		if e.observedAt != nil || !e.dispatchedAt.Before(cutoff) {
			continue
		}
		t.logger.Warn("round trip expired",
			"correlation_id", token.String(),
			"dispatched_at", e.dispatchedAt.Format(time.RFC3339),
		)
		if t.metrics != nil {
			t.metrics.RoundTripExpired()
		}
		t.retire(token, domain.RoundTrip{
			CorrelationID: token,
			DispatchedAt:  e.dispatchedAt,
			Expired:       true,
		})
	}
}

// retire moves a round trip from pending to the bounded completed list.
// Callers must hold t.mu.
func (t *Tracker) retire(token domain.CorrelationToken, rt domain.RoundTrip) {
	delete(t.pending, token)
	t.completed = append(t.completed, rt)
	if len(t.completed) > t.config.MaxCompleted {
		t.completed = t.completed[len(t.completed)-t.config.MaxCompleted:]
	}
}

// Snapshot returns pending round trips (oldest first) followed by the
// retained completed ones.
func (t *Tracker) Snapshot() []domain.RoundTrip {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]domain.RoundTrip, 0, len(t.pending)+len(t.completed))
	for token, e := range t.pending {
		result = append(result, domain.RoundTrip{
			CorrelationID: token,
			DispatchedAt:  e.dispatchedAt,
			ObservedAt:    e.observedAt,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DispatchedAt.Before(result[j].DispatchedAt)
	})
	result = append(result, t.completed...)
	return result
}
