package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeKind classifies a single direct-method attempt.
type OutcomeKind string

const (
	// OutcomeSuccess: the call returned a status in [200, 299].
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeFailure: the call returned a status outside [200, 299].
	OutcomeFailure OutcomeKind = "failure"
	// OutcomeError: the call itself failed (timeout, transport error).
	OutcomeError OutcomeKind = "error"
)

// ClassifyStatus maps a returned method status code to an outcome kind.
// This three-way split (together with OutcomeError for raised transport
// errors) gates which telemetry category is emitted, so it must not drift.
func ClassifyStatus(status int) OutcomeKind {
	if status >= 200 && status <= 299 {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// InvocationOutcome records the result of one direct-method attempt against
// one destination. Created when the attempt completes and never mutated.
type InvocationOutcome struct {
	ID            uuid.UUID
	CorrelationID CorrelationToken
	Destination   Destination
	Kind          OutcomeKind

	// StatusCode is the returned method status. Zero for OutcomeError.
	StatusCode int
	// Error holds the transport error text. Empty unless Kind is OutcomeError.
	Error string

	StartedAt  time.Time
	FinishedAt time.Time
}
