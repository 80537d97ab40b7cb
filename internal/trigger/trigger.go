// Package trigger emits one cycle trigger per tick, either on a fixed
// interval or on a cron schedule.
//
// Triggers deliberately do not enforce mutual exclusion between cycles: a
// cycle that outlives the interval simply overlaps the next one, each under
// its own correlation token.
package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/sebader/iotedge-end2end/internal/domain"
)

// EventEmitter delivers triggers to the dispatcher.
type EventEmitter interface {
	Emit(ctx context.Context, event domain.CycleTrigger) error
}

// Schedule yields successive fire times. Provided by the cron parser when a
// schedule expression is configured.
type Schedule interface {
	Next(after time.Time) time.Time
}

// Config holds trigger configuration. When Schedule is set it takes
// precedence over Interval.
type Config struct {
	Interval time.Duration
	Schedule Schedule
}

type Trigger struct {
	config  Config
	emitter EventEmitter
	logger  *slog.Logger
	clock   func() time.Time
}

func New(config Config, emitter EventEmitter) *Trigger {
	return &Trigger{
		config:  config,
		emitter: emitter,
		logger:  slog.Default().With("component", "trigger"),
		clock:   time.Now,
	}
}

// Run blocks until ctx is cancelled, emitting one trigger per tick.
func (t *Trigger) Run(ctx context.Context) {
	if t.config.Schedule != nil {
		t.logger.Info("started", "mode", "schedule")
		t.runSchedule(ctx)
		return
	}

	t.logger.Info("started", "mode", "interval", "interval", t.config.Interval.String())
	t.runInterval(ctx)
}

func (t *Trigger) runInterval(ctx context.Context) {
	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("stopped")
			return
		case fired := <-ticker.C:
			t.emit(ctx, fired.UTC(), fired.UTC())
		}
	}
}

func (t *Trigger) runSchedule(ctx context.Context) {
	for {
		now := t.clock().UTC()
		next := t.config.Schedule.Next(now)
		if next.IsZero() {
			t.logger.Warn("schedule yields no further fire times, stopping")
			return
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			t.logger.Info("stopped")
			return
		case <-timer.C:
			t.emit(ctx, next, t.clock().UTC())
		}
	}
}

func (t *Trigger) emit(ctx context.Context, scheduledAt, firedAt time.Time) {
	event := domain.CycleTrigger{
		ScheduledAt: scheduledAt,
		FiredAt:     firedAt,
	}
	if err := t.emitter.Emit(ctx, event); err != nil {
		t.logger.Warn("failed to emit trigger", "error", err)
	}
}
