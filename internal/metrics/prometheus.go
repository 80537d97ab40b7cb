package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Dispatcher metrics
	invocationsStartedTotal *prometheus.CounterVec
	invocationsTotal        *prometheus.CounterVec
	invocationOutcomesTotal *prometheus.CounterVec
	invocationDuration      prometheus.Histogram
	cyclesInFlight          prometheus.Gauge

	// Edge handler metrics
	requestsReceivedTotal *prometheus.CounterVec
	forwardsTotal         *prometheus.CounterVec
	forwardDuration       prometheus.Histogram

	// Ingestor metrics
	messagesObservedTotal  prometheus.Counter
	untrackedMessagesTotal prometheus.Counter

	// Round-trip metrics
	roundTripLatency      prometheus.Histogram
	roundTripExpiredTotal prometheus.Counter

	// Event bus metrics
	emitErrorsTotal prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails it logs a warning and returns a functional sink;
// collectors that failed to register simply stay unexported.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initDispatcherMetrics(reg)
	s.initHandlerMetrics(reg)
	s.initIngestorMetrics(reg)
	return s
}

func (s *PrometheusSink) initDispatcherMetrics(reg prometheus.Registerer) {
	s.invocationsStartedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "e2e_dispatcher_invocations_started_total",
		Help: "Total number of direct-method invocations started, per destination.",
	}, []string{"destination"})

	s.invocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "e2e_dispatcher_invocations_total",
		Help: "Total number of completed direct-method invocations.",
	}, []string{"destination", "status_class"})

	s.invocationOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "e2e_dispatcher_invocation_outcomes_total",
		Help: "Total number of invocation outcomes by kind (success, failure, error).",
	}, []string{"kind"})

	s.invocationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "e2e_dispatcher_invocation_duration_seconds",
		Help:    "Direct-method invocation latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.cyclesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "e2e_dispatcher_cycles_in_flight",
		Help: "Number of verification cycles currently running.",
	})

	s.register(reg, s.invocationsStartedTotal, "e2e_dispatcher_invocations_started_total")
	s.register(reg, s.invocationsTotal, "e2e_dispatcher_invocations_total")
	s.register(reg, s.invocationOutcomesTotal, "e2e_dispatcher_invocation_outcomes_total")
	s.register(reg, s.invocationDuration, "e2e_dispatcher_invocation_duration_seconds")
	s.register(reg, s.cyclesInFlight, "e2e_dispatcher_cycles_in_flight")
}

func (s *PrometheusSink) initHandlerMetrics(reg prometheus.Registerer) {
	s.requestsReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "e2e_handler_requests_received_total",
		Help: "Total number of direct-method requests received, per method name.",
	}, []string{"method"})

	s.forwardsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "e2e_handler_forwards_total",
		Help: "Total number of edge-hub forwards by outcome.",
	}, []string{"outcome"})

	s.forwardDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "e2e_handler_forward_duration_seconds",
		Help:    "Edge-hub forward latency in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	s.register(reg, s.requestsReceivedTotal, "e2e_handler_requests_received_total")
	s.register(reg, s.forwardsTotal, "e2e_handler_forwards_total")
	s.register(reg, s.forwardDuration, "e2e_handler_forward_duration_seconds")
}

func (s *PrometheusSink) initIngestorMetrics(reg prometheus.Registerer) {
	s.messagesObservedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "e2e_ingestor_messages_observed_total",
		Help: "Total number of delivered messages carrying a correlation id.",
	})
	s.untrackedMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "e2e_ingestor_untracked_messages_total",
		Help: "Total number of delivered messages without a correlation id.",
	})
	s.roundTripLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "e2e_roundtrip_latency_seconds",
		Help:    "End-to-end latency from dispatch to observation in seconds.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 300},
	})
	s.roundTripExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "e2e_roundtrip_expired_total",
		Help: "Total number of round trips never observed within the threshold.",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "e2e_eventbus_emit_errors_total",
		Help: "Total number of trigger emit errors (buffer full).",
	})

	s.register(reg, s.messagesObservedTotal, "e2e_ingestor_messages_observed_total")
	s.register(reg, s.untrackedMessagesTotal, "e2e_ingestor_untracked_messages_total")
	s.register(reg, s.roundTripLatency, "e2e_roundtrip_latency_seconds")
	s.register(reg, s.roundTripExpiredTotal, "e2e_roundtrip_expired_total")
	s.register(reg, s.emitErrorsTotal, "e2e_eventbus_emit_errors_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		slog.Warn("metrics: failed to register collector", "name", name, "error", err)
	}
}

// Dispatcher metrics implementation

func (s *PrometheusSink) InvocationStarted(destination string) {
	s.invocationsStartedTotal.WithLabelValues(destination).Inc()
}

func (s *PrometheusSink) InvocationCompleted(destination, statusClass string, duration time.Duration) {
	s.invocationsTotal.WithLabelValues(destination, statusClass).Inc()
	s.invocationDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) InvocationOutcome(kind string) {
	s.invocationOutcomesTotal.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) CyclesInFlightIncr() {
	s.cyclesInFlight.Inc()
}

func (s *PrometheusSink) CyclesInFlightDecr() {
	s.cyclesInFlight.Dec()
}

// Edge handler metrics implementation

func (s *PrometheusSink) RequestReceived(method string) {
	s.requestsReceivedTotal.WithLabelValues(method).Inc()
}

func (s *PrometheusSink) ForwardCompleted(outcome string, duration time.Duration) {
	s.forwardsTotal.WithLabelValues(outcome).Inc()
	s.forwardDuration.Observe(duration.Seconds())
}

// Ingestor metrics implementation

func (s *PrometheusSink) MessageObserved() {
	s.messagesObservedTotal.Inc()
}

func (s *PrometheusSink) UntrackedMessage() {
	s.untrackedMessagesTotal.Inc()
}

// Round-trip metrics implementation

func (s *PrometheusSink) RoundTripLatency(seconds float64) {
	s.roundTripLatency.Observe(seconds)
}

func (s *PrometheusSink) RoundTripExpired() {
	s.roundTripExpiredTotal.Inc()
}

// Event bus metrics implementation

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}
