package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) InvocationStarted(destination string)                                 {}
func (n *NoopSink) InvocationCompleted(destination, statusClass string, d time.Duration) {}
func (n *NoopSink) InvocationOutcome(kind string)                                        {}
func (n *NoopSink) CyclesInFlightIncr()                                                  {}
func (n *NoopSink) CyclesInFlightDecr()                                                  {}
func (n *NoopSink) RequestReceived(method string)                                        {}
func (n *NoopSink) ForwardCompleted(outcome string, d time.Duration)                     {}
func (n *NoopSink) MessageObserved()                                                     {}
func (n *NoopSink) UntrackedMessage()                                                    {}
func (n *NoopSink) RoundTripLatency(seconds float64)                                     {}
func (n *NoopSink) RoundTripExpired()                                                    {}
func (n *NoopSink) EmitError()                                                           {}
