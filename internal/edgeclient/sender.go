package edgeclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sebader/iotedge-end2end/internal/domain"
)

// Property headers on the outbound hub request. Mirrors the ingest side of
// the delivery boundary.
const (
	headerCorrelationID = "X-Correlation-Id"
	headerScope         = "X-Scope"
)

// HubSender forwards outbound messages to the hub's ingest endpoint. It
// implements handler.MessageForwarder.
type HubSender struct {
	client  *http.Client
	url     string
	timeout time.Duration
	health  *ConnectionHealth // optional, nil = no status reporting
}

func NewHubSender(url string, timeout time.Duration) *HubSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HubSender{
		client:  &http.Client{},
		url:     url,
		timeout: timeout,
	}
}

// WithHealth attaches a connection health tracker; forward results feed
// the connection monitor through it.
func (s *HubSender) WithHealth(health *ConnectionHealth) *HubSender {
	s.health = health
	return s
}

// Forward posts the message body with its properties mapped onto headers.
func (s *HubSender) Forward(ctx context.Context, msg domain.OutboundMessage) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if msg.ContentType != "" {
		req.Header.Set("Content-Type", msg.ContentType)
	}
	if msg.ContentEncoding != "" {
		req.Header.Set("Content-Encoding", msg.ContentEncoding)
	}
	if v := msg.Properties[domain.PropertyCorrelationID]; v != "" {
		req.Header.Set(headerCorrelationID, v)
	}
	if v := msg.Properties[domain.PropertyScope]; v != "" {
		req.Header.Set(headerScope, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.recordFailure(err)
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("hub returned status %d", resp.StatusCode)
		s.recordFailure(err)
		return err
	}

	s.recordSuccess()
	return nil
}

func (s *HubSender) recordFailure(err error) {
	if s.health != nil {
		s.health.RecordFailure(err)
	}
}

func (s *HubSender) recordSuccess() {
	if s.health != nil {
		s.health.RecordSuccess()
	}
}
