package channel

import (
	"context"
	"errors"

	"github.com/sebader/iotedge-end2end/internal/domain"
)

// ErrBusFull is returned when the trigger buffer is saturated. The cycle is
// dropped rather than delayed; the next tick fires independently.
var ErrBusFull = errors.New("event bus buffer full")

// MetricsSink records bus-level telemetry.
type MetricsSink interface {
	EmitError()
}

type Option func(*EventBus)

// WithMetrics attaches a metrics sink to the bus.
func WithMetrics(sink MetricsSink) Option {
	return func(b *EventBus) {
		b.metrics = sink
	}
}

// EventBus carries cycle triggers from the trigger to the dispatcher.
type EventBus struct {
	ch      chan domain.CycleTrigger
	metrics MetricsSink
}

func NewEventBus(buffer int, opts ...Option) *EventBus {
	b := &EventBus{
		ch: make(chan domain.CycleTrigger, buffer),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Emit enqueues a trigger without blocking. A full buffer is an error, not
// a stall: backpressure must never delay the timer.
func (b *EventBus) Emit(ctx context.Context, event domain.CycleTrigger) error {
	select {
	case b.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ErrBusFull
	}
}

func (b *EventBus) Channel() <-chan domain.CycleTrigger {
	return b.ch
}
