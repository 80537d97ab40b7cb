// Package ingestor records terminal observations for delivered messages at
// the cloud ingestion point.
package ingestor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sebader/iotedge-end2end/internal/domain"
	"github.com/sebader/iotedge-end2end/internal/metrics"
)

// ObservationStore persists observation events. Optional; persistence
// failures never affect ingestion.
type ObservationStore interface {
	InsertObservation(ctx context.Context, obs domain.Observation) error
}

// ObservationSink records aggregate observation data (Redis). Optional.
type ObservationSink interface {
	RecordObservation(ctx context.Context, token domain.CorrelationToken, at time.Time) error
}

// TokenMarker closes the round-trip loop for an observed token.
type TokenMarker interface {
	MarkObserved(token domain.CorrelationToken, at time.Time)
}

// Ingestor observes inbound deliveries. It never errors: a message without
// a correlation id is expected non-test traffic, and redelivered messages
// simply produce two observation events.
type Ingestor struct {
	store   ObservationStore // optional, nil = disabled
	sink    ObservationSink  // optional, nil = disabled
	tracker TokenMarker      // optional, nil = disabled
	metrics metrics.Sink     // optional, nil = disabled
	logger  *slog.Logger
	clock   func() time.Time
}

func New() *Ingestor {
	return &Ingestor{
		logger: slog.Default().With("component", "ingestor"),
		clock:  time.Now,
	}
}

// WithStore attaches an observation store to the ingestor.
func (g *Ingestor) WithStore(store ObservationStore) *Ingestor {
	g.store = store
	return g
}

// WithSink attaches an aggregate observation sink to the ingestor.
func (g *Ingestor) WithSink(sink ObservationSink) *Ingestor {
	g.sink = sink
	return g
}

// WithTracker attaches a round-trip marker to the ingestor.
func (g *Ingestor) WithTracker(tracker TokenMarker) *Ingestor {
	g.tracker = tracker
	return g
}

// WithMetrics attaches a metrics sink to the ingestor.
func (g *Ingestor) WithMetrics(sink metrics.Sink) *Ingestor {
	g.metrics = sink
	return g
}

// Observe records one delivered message. Side effects only; deduplication
// belongs to whoever analyzes the event stream.
func (g *Ingestor) Observe(ctx context.Context, msg domain.DeliveredMessage) {
	token, ok := msg.CorrelationID()
	if !ok {
		g.logger.Warn("message without correlation id", "body_bytes", len(msg.Body))
		if g.metrics != nil {
			g.metrics.UntrackedMessage()
		}
		return
	}

	observedAt := g.clock().UTC()

	g.logger.Info("message observed",
		"correlation_id", token.String(),
		"observed_at", observedAt.Format(time.RFC3339Nano),
		"body_bytes", len(msg.Body),
	)
	if g.metrics != nil {
		g.metrics.MessageObserved()
	}
	if g.tracker != nil {
		g.tracker.MarkObserved(token, observedAt)
	}

	obs := domain.Observation{
		ID:            uuid.New(),
		CorrelationID: token,
		ObservedAt:    observedAt,
		BodyBytes:     len(msg.Body),
	}

	if g.store != nil {
		if err := g.store.InsertObservation(ctx, obs); err != nil {
			g.logger.Warn("failed to persist observation", "correlation_id", token.String(), "error", err)
		}
	}
	if g.sink != nil {
		if err := g.sink.RecordObservation(ctx, token, observedAt); err != nil {
			g.logger.Warn("failed to record observation", "correlation_id", token.String(), "error", err)
		}
	}
}
