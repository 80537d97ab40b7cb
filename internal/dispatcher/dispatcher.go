package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sebader/iotedge-end2end/internal/domain"
	"github.com/sebader/iotedge-end2end/internal/metrics"
)

// MethodInvoker issues one direct-method call to one destination. It is the
// only place a transport error may surface; everything above it works with
// outcome values.
type MethodInvoker interface {
	Invoke(ctx context.Context, dest domain.Destination, req InvocationRequest) InvocationResult
}

// OutcomeStore persists invocation outcomes for later analysis. Optional;
// persistence failures never affect dispatch correctness.
type OutcomeStore interface {
	InsertOutcome(ctx context.Context, outcome domain.InvocationOutcome) error
}

// CycleRegistrar is notified when a cycle's token goes out the door, so the
// round trip can be matched against the eventual observation.
type CycleRegistrar interface {
	RegisterDispatch(token domain.CorrelationToken, at time.Time)
}

// InvocationRequest is the body of one direct-method call.
type InvocationRequest struct {
	Method          string
	Payload         domain.RequestPayload
	ResponseTimeout time.Duration
}

// InvocationResult is what the invoker returns. Status carries the method's
// returned code; Err is set only when the call itself failed.
type InvocationResult struct {
	Status   int
	Payload  []byte
	Err      error
	Duration time.Duration
}

// Dispatcher fans one verification cycle out to every configured
// destination. Destinations are independent: one failing call never
// prevents the others from being attempted.
type Dispatcher struct {
	invoker MethodInvoker
	store   OutcomeStore   // optional, nil = disabled
	tracker CycleRegistrar // optional, nil = disabled
	metrics metrics.Sink   // optional, nil = disabled

	invokeTimeout   time.Duration
	responseTimeout time.Duration
	messageText     string

	logger *slog.Logger
	clock  func() time.Time

	cycles sync.WaitGroup
}

func New(invoker MethodInvoker) *Dispatcher {
	return &Dispatcher{
		invoker:         invoker,
		invokeTimeout:   10 * time.Second,
		responseTimeout: 10 * time.Second,
		messageText:     "e2e test message",
		logger:          slog.Default().With("component", "dispatcher"),
		clock:           time.Now,
	}
}

// WithTimeouts sets the per-call invocation and response timeouts.
func (d *Dispatcher) WithTimeouts(invoke, response time.Duration) *Dispatcher {
	if invoke > 0 {
		d.invokeTimeout = invoke
	}
	if response > 0 {
		d.responseTimeout = response
	}
	return d
}

// WithMessageText sets the payload text sent on every cycle.
func (d *Dispatcher) WithMessageText(text string) *Dispatcher {
	if text != "" {
		d.messageText = text
	}
	return d
}

// WithStore attaches an outcome store to the dispatcher.
func (d *Dispatcher) WithStore(store OutcomeStore) *Dispatcher {
	d.store = store
	return d
}

// WithTracker attaches a round-trip registrar to the dispatcher.
func (d *Dispatcher) WithTracker(tracker CycleRegistrar) *Dispatcher {
	d.tracker = tracker
	return d
}

// WithMetrics attaches a metrics sink to the dispatcher.
func (d *Dispatcher) WithMetrics(sink metrics.Sink) *Dispatcher {
	d.metrics = sink
	return d
}

// Run consumes cycle triggers until the context is cancelled. Each trigger
// starts an independent cycle in its own goroutine: a slow cycle never
// blocks the next one, overlapping cycles are distinguished by their
// tokens. Run waits for in-flight cycles before returning; each call's own
// timeout bounds the wait.
func (d *Dispatcher) Run(ctx context.Context, triggers <-chan domain.CycleTrigger, destinations []domain.Destination) {
	for {
		select {
		case <-ctx.Done():
			d.cycles.Wait()
			d.logger.Info("stopped")
			return
		case trigger := <-triggers:
			d.cycles.Add(1)
			go func(trigger domain.CycleTrigger) {
				defer d.cycles.Done()
				if lag := trigger.FiredAt.Sub(trigger.ScheduledAt); lag > time.Second {
					d.logger.Debug("trigger fired late", "lag", lag.String())
				}
				d.RunCycle(ctx, destinations)
			}(trigger)
		}
	}
}

// RunCycle generates one fresh correlation token and attempts every
// destination exactly once, concurrently. The returned outcomes are indexed
// like destinations; ordering across destinations carries no meaning.
func (d *Dispatcher) RunCycle(ctx context.Context, destinations []domain.Destination) []domain.InvocationOutcome {
	token := domain.NewCorrelationToken()
	logger := d.logger.With("correlation_id", token.String())

	logger.Info("cycle started", "destinations", len(destinations))

	if d.tracker != nil {
		d.tracker.RegisterDispatch(token, d.clock().UTC())
	}
	if d.metrics != nil {
		d.metrics.CyclesInFlightIncr()
		defer d.metrics.CyclesInFlightDecr()
	}

	outcomes := make([]domain.InvocationOutcome, len(destinations))

	var wg sync.WaitGroup
	for i, dest := range destinations {
		wg.Add(1)
		go func(i int, dest domain.Destination) {
			defer wg.Done()
			outcomes[i] = d.invokeOne(ctx, token, dest, logger)
		}(i, dest)
	}
	wg.Wait()

	var succeeded int
	for _, outcome := range outcomes {
		if outcome.Kind == domain.OutcomeSuccess {
			succeeded++
		}
	}
	logger.Info("cycle completed", "succeeded", succeeded, "attempted", len(destinations))

	return outcomes
}

// invokeOne attempts a single destination and converts whatever happens at
// the call boundary into an immutable outcome.
func (d *Dispatcher) invokeOne(ctx context.Context, token domain.CorrelationToken, dest domain.Destination, logger *slog.Logger) domain.InvocationOutcome {
	logger.Info("invocation started", "destination", dest.String())
	if d.metrics != nil {
		d.metrics.InvocationStarted(dest.String())
	}

	callCtx, cancel := context.WithTimeout(ctx, d.invokeTimeout)
	defer cancel()

	req := InvocationRequest{
		Method: domain.MethodNewMessageRequest,
		Payload: domain.RequestPayload{
			CorrelationID: token.String(),
			Text:          d.messageText,
		},
		ResponseTimeout: d.responseTimeout,
	}

	startedAt := d.clock().UTC()
	result := d.safeInvoke(callCtx, dest, req)
	finishedAt := d.clock().UTC()

	outcome := domain.InvocationOutcome{
		ID:            uuid.New(),
		CorrelationID: token,
		Destination:   dest,
		StatusCode:    result.Status,
		StartedAt:     startedAt,
		FinishedAt:    finishedAt,
	}

	switch {
	case result.Err != nil:
		outcome.Kind = domain.OutcomeError
		outcome.StatusCode = 0
		outcome.Error = result.Err.Error()
		logger.Error("invocation error", "destination", dest.String(), "error", result.Err)
	case domain.ClassifyStatus(result.Status) == domain.OutcomeSuccess:
		outcome.Kind = domain.OutcomeSuccess
		logger.Info("invocation succeeded", "destination", dest.String(), "status", result.Status)
	default:
		outcome.Kind = domain.OutcomeFailure
		logger.Warn("invocation failed", "destination", dest.String(), "status", result.Status)
	}

	if d.metrics != nil {
		d.metrics.InvocationCompleted(dest.String(), metrics.ClassifyStatus(result.Status, result.Err), result.Duration)
		d.metrics.InvocationOutcome(string(outcome.Kind))
	}

	if d.store != nil {
		if err := d.store.InsertOutcome(ctx, outcome); err != nil {
			logger.Warn("failed to record outcome", "destination", dest.String(), "error", err)
		}
	}

	return outcome
}

// safeInvoke narrows the catch boundary to exactly the collaborator call
// site: a panicking invoker becomes an error outcome for its destination,
// never an aborted cycle.
func (d *Dispatcher) safeInvoke(ctx context.Context, dest domain.Destination, req InvocationRequest) (result InvocationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = InvocationResult{Err: fmt.Errorf("invoker panic: %v", r)}
		}
	}()
	return d.invoker.Invoke(ctx, dest, req)
}
