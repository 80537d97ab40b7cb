// Package api exposes the monitor's HTTP surface: health, the inbound
// delivery boundary, and a round-trip snapshot.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sebader/iotedge-end2end/internal/domain"
)

// MaxIngestBody caps the accepted delivery body size.
const MaxIngestBody = 1 << 20

// Ingestor observes one delivered message.
type Ingestor interface {
	Observe(ctx context.Context, msg domain.DeliveredMessage)
}

// RoundTripSource provides the current round-trip snapshot.
type RoundTripSource interface {
	Snapshot() []domain.RoundTrip
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	ingestor   Ingestor
	roundTrips RoundTripSource
	db         HealthChecker
	logger     *slog.Logger
}

func NewHandler(ingestor Ingestor, roundTrips RoundTripSource) *Handler {
	return &Handler{
		ingestor:   ingestor,
		roundTrips: roundTrips,
		logger:     slog.Default().With("component", "api"),
	}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/ingest" && r.Method == http.MethodPost:
		h.ingest(w, r)

	case path == "/roundtrips" && r.Method == http.MethodGet:
		h.listRoundTrips(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

// Property headers at the delivery boundary. The routing fabric maps
// message properties onto these; only correlationId is inspected further in.
const (
	HeaderCorrelationID = "X-Correlation-Id"
	HeaderScope         = "X-Scope"
)

// ingest is the inbound delivery boundary: body plus property headers
// become a DeliveredMessage handed to the ingestor. Always 202; a message
// the ingestor cannot correlate is an expected occurrence, not a client
// error, and the transport must not be told to redeliver it.
func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxIngestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	properties := make(map[string]string)
	if v := r.Header.Get(HeaderCorrelationID); v != "" {
		properties[domain.PropertyCorrelationID] = v
	}
	if v := r.Header.Get(HeaderScope); v != "" {
		properties[domain.PropertyScope] = v
	}

	h.ingestor.Observe(r.Context(), domain.DeliveredMessage{
		Body:       body,
		Properties: properties,
	})

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) listRoundTrips(w http.ResponseWriter, r *http.Request) {
	trips := h.roundTrips.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(trips),
		"round_trips": trips,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
