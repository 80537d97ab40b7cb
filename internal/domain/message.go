package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message property keys and fixed values at the messaging boundary.
const (
	PropertyCorrelationID = "correlationId"
	PropertyScope         = "scope"

	// ScopeE2ETest marks forwarded messages as verification traffic so
	// downstream consumers can separate them from real workloads.
	ScopeE2ETest = "e2etest"

	ContentTypeJSON     = "application/json"
	ContentEncodingUTF8 = "utf-8"
)

// OutboundMessage is what the edge handler forwards toward the hub.
type OutboundMessage struct {
	Body            []byte
	ContentType     string
	ContentEncoding string
	Properties      map[string]string
}

// DeliveredMessage is one inbound delivery at the cloud ingestion point.
// Read-only; redelivery semantics belong to the transport.
type DeliveredMessage struct {
	Body       []byte
	Properties map[string]string
}

// CorrelationID returns the message's correlation token, if present.
func (m DeliveredMessage) CorrelationID() (CorrelationToken, bool) {
	v, ok := m.Properties[PropertyCorrelationID]
	if !ok || v == "" {
		return "", false
	}
	return CorrelationToken(v), true
}

// Observation is one "message observed" event recorded by the ingestor.
type Observation struct {
	ID            uuid.UUID
	CorrelationID CorrelationToken
	ObservedAt    time.Time
	BodyBytes     int
}
