// Package handler implements the edge-side request handler: it maps one
// inbound direct-method call onto one outbound message carrying the same
// correlation token.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sebader/iotedge-end2end/internal/domain"
	"github.com/sebader/iotedge-end2end/internal/metrics"
)

// MessageForwarder sends an outbound message toward the hub. External
// collaborator; its errors become 500 responses, never crashes.
type MessageForwarder interface {
	Forward(ctx context.Context, msg domain.OutboundMessage) error
}

// MethodRequest is one inbound direct-method call. The method name is
// resolved before the body is parsed.
type MethodRequest struct {
	Name string
	Body []byte
}

// MethodResponse is the structured reply to a direct-method call.
type MethodResponse struct {
	Status  int
	Payload domain.ResponsePayload
}

// Handler serves direct-method calls. Safe for concurrent use; the
// invocation counter is atomic and exists for observability only.
type Handler struct {
	forwarder MessageForwarder
	metrics   metrics.Sink // optional, nil = disabled
	logger    *slog.Logger

	invocations atomic.Int64
}

func New(forwarder MessageForwarder) *Handler {
	return &Handler{
		forwarder: forwarder,
		logger:    slog.Default().With("component", "handler"),
	}
}

// WithMetrics attaches a metrics sink to the handler.
func (h *Handler) WithMetrics(sink metrics.Sink) *Handler {
	h.metrics = sink
	return h
}

// Invocations returns how many calls this handler has served.
func (h *Handler) Invocations() int64 {
	return h.invocations.Load()
}

// Handle serves one direct-method call. Every failure path returns a
// structured response; nothing at this boundary is allowed to escalate
// beyond the call.
func (h *Handler) Handle(ctx context.Context, req MethodRequest) MethodResponse {
	count := h.invocations.Add(1)

	if h.metrics != nil {
		h.metrics.RequestReceived(req.Name)
	}

	// Unknown method names are answered before the body is touched, so a
	// malformed payload never masks the 404.
	if req.Name != domain.MethodNewMessageRequest {
		h.logger.Warn("unrecognized method", "method", req.Name, "invocation", count)
		return MethodResponse{
			Status:  404,
			Payload: domain.ResponsePayload{ModuleResponse: fmt.Sprintf("Method %s not implemented", req.Name)},
		}
	}

	var payload domain.RequestPayload
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		h.logger.Error("failed to deserialize request", "invocation", count, "error", err)
		return MethodResponse{
			Status:  400,
			Payload: domain.ResponsePayload{ModuleResponse: fmt.Sprintf("Failed to deserialize request: %v", err)},
		}
	}

	logger := h.logger.With("correlation_id", payload.CorrelationID)
	logger.Info("request received", "invocation", count)

	msg := domain.OutboundMessage{
		Body:            []byte(payload.Text),
		ContentType:     domain.ContentTypeJSON,
		ContentEncoding: domain.ContentEncodingUTF8,
		Properties: map[string]string{
			domain.PropertyCorrelationID: payload.CorrelationID,
			domain.PropertyScope:         domain.ScopeE2ETest,
		},
	}

	start := time.Now()
	if err := h.forwarder.Forward(ctx, msg); err != nil {
		logger.Error("forward failed", "error", err)
		if h.metrics != nil {
			h.metrics.ForwardCompleted(metrics.OutcomeFailure, time.Since(start))
		}
		return MethodResponse{
			Status:  500,
			Payload: domain.ResponsePayload{ModuleResponse: "Failed to send message to Edge Hub"},
		}
	}

	logger.Info("forward succeeded")
	if h.metrics != nil {
		h.metrics.ForwardCompleted(metrics.OutcomeSuccess, time.Since(start))
	}

	return MethodResponse{
		Status:  200,
		Payload: domain.ResponsePayload{ModuleResponse: "Message sent successfully to Edge Hub"},
	}
}
