package domain

import "time"

// RoundTrip is the tracked lifecycle of one cycle's token: dispatched at the
// cloud, hopefully observed back at ingestion before the threshold passes.
type RoundTrip struct {
	CorrelationID CorrelationToken `json:"correlation_id"`
	DispatchedAt  time.Time        `json:"dispatched_at"`
	ObservedAt    *time.Time       `json:"observed_at,omitempty"`
	Expired       bool             `json:"expired"`
}
