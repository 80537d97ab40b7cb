package edgeclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sebader/iotedge-end2end/internal/domain"
)

func outbound(token string) domain.OutboundMessage {
	return domain.OutboundMessage{
		Body:            []byte("e2e test message"),
		ContentType:     domain.ContentTypeJSON,
		ContentEncoding: domain.ContentEncodingUTF8,
		Properties: map[string]string{
			domain.PropertyCorrelationID: token,
			domain.PropertyScope:         domain.ScopeE2ETest,
		},
	}
}

func TestForward_PropertiesBecomeHeaders(t *testing.T) {
	var gotCorrelation, gotScope, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCorrelation = r.Header.Get("X-Correlation-Id")
		gotScope = r.Header.Get("X-Scope")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	s := NewHubSender(server.URL, 5*time.Second)
	if err := s.Forward(context.Background(), outbound("tok-1")); err != nil {
		t.Fatalf("forward: %v", err)
	}

	if gotCorrelation != "tok-1" {
		t.Errorf("correlation header = %q", gotCorrelation)
	}
	if gotScope != domain.ScopeE2ETest {
		t.Errorf("scope header = %q", gotScope)
	}
	if gotContentType != domain.ContentTypeJSON {
		t.Errorf("content type = %q", gotContentType)
	}
}

func TestForward_NonSuccessStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	s := NewHubSender(server.URL, 5*time.Second)
	if err := s.Forward(context.Background(), outbound("tok-1")); err == nil {
		t.Fatal("expected an error for status 502")
	}
}

func TestForward_TransportErrorReportedToHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	feed := NewStatusFeed(16)
	health := NewConnectionHealth(5, feed)
	s := NewHubSender(server.URL, time.Second).WithHealth(health)

	if err := s.Forward(context.Background(), outbound("tok-1")); err == nil {
		t.Fatal("expected a transport error")
	}

	changes := drain(feed)
	if len(changes) != 1 {
		t.Fatalf("expected 1 status change, got %d", len(changes))
	}
	if changes[0].State != domain.ConnectionDisconnectedRetrying {
		t.Errorf("state = %s, want retrying", changes[0].State)
	}
}

func TestForward_SuccessAfterFailureRestoresConnection(t *testing.T) {
	fail := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	feed := NewStatusFeed(16)
	health := NewConnectionHealth(5, feed)
	s := NewHubSender(server.URL, time.Second).WithHealth(health)

	s.Forward(context.Background(), outbound("tok-1"))
	fail = false
	if err := s.Forward(context.Background(), outbound("tok-2")); err != nil {
		t.Fatalf("forward after recovery: %v", err)
	}

	changes := drain(feed)
	if len(changes) != 2 {
		t.Fatalf("expected 2 status changes, got %d", len(changes))
	}
	if changes[1].State != domain.ConnectionConnected {
		t.Errorf("final state = %s, want connected", changes[1].State)
	}
}

func TestForward_Timeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	s := NewHubSender(server.URL, 20*time.Millisecond)
	if err := s.Forward(context.Background(), outbound("tok-1")); err == nil {
		t.Fatal("expected a timeout error")
	}
}
