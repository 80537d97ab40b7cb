package metrics

import (
	"strings"
	"time"
)

// Sink defines the interface for recording telemetry counters.
// All methods are fire-and-forget: implementations MUST NOT block or
// propagate errors. If the backend is unavailable, implementations log
// warnings and continue.
type Sink interface {
	// Dispatcher
	InvocationStarted(destination string)
	InvocationCompleted(destination, statusClass string, duration time.Duration)
	InvocationOutcome(kind string)
	CyclesInFlightIncr()
	CyclesInFlightDecr()

	// Edge handler
	RequestReceived(method string)
	ForwardCompleted(outcome string, duration time.Duration)

	// Ingestor
	MessageObserved()
	UntrackedMessage()

	// Round-trip tracker
	RoundTripLatency(seconds float64)
	RoundTripExpired()

	// Event bus
	EmitError()
}

// Outcome constants for ForwardCompleted.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// StatusClass constants for InvocationCompleted.
const (
	StatusClass2xx             = "2xx"
	StatusClass4xx             = "4xx"
	StatusClass5xx             = "5xx"
	StatusClassTimeout         = "timeout"
	StatusClassConnectionError = "connection_error"
	StatusClassOtherError      = "other_error"
)

// ClassifyStatus maps a method status code and transport error to a
// bounded-cardinality status class.
func ClassifyStatus(statusCode int, err error) string {
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
			return StatusClassTimeout
		}
		if strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") ||
			strings.Contains(msg, "network is unreachable") || strings.Contains(msg, "dial") {
			return StatusClassConnectionError
		}
		return StatusClassOtherError
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	case statusCode >= 500:
		return StatusClass5xx
	default:
		return StatusClassOtherError
	}
}
