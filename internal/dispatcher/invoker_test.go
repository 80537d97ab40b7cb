package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sebader/iotedge-end2end/internal/domain"
)

func testRequest() InvocationRequest {
	return InvocationRequest{
		Method: domain.MethodNewMessageRequest,
		Payload: domain.RequestPayload{
			CorrelationID: "abc-123",
			Text:          "hello",
		},
		ResponseTimeout: 10 * time.Second,
	}
}

func TestHTTPMethodInvoker_MethodStatusFromEnvelope(t *testing.T) {
	var gotPath string
	var gotEnvelope methodEnvelope

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotEnvelope); err != nil {
			t.Errorf("decode envelope: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": 200, "payload": {"ModuleResponse": "ok"}}`))
	}))
	defer server.Close()

	invoker := NewHTTPMethodInvoker(server.URL, "")
	dest := domain.Destination{DeviceID: "dev1", ModuleID: "mod1"}

	result := invoker.Invoke(context.Background(), dest, testRequest())

	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Status != 200 {
		t.Errorf("status = %d, want 200", result.Status)
	}
	if !strings.Contains(gotPath, "/twins/dev1/modules/mod1/methods") {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotEnvelope.MethodName != domain.MethodNewMessageRequest {
		t.Errorf("method name = %q", gotEnvelope.MethodName)
	}
	if gotEnvelope.Payload.CorrelationID != "abc-123" {
		t.Errorf("correlation id = %q", gotEnvelope.Payload.CorrelationID)
	}
}

func TestHTTPMethodInvoker_ModuleFailureStatusPassedThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": 500, "payload": {"ModuleResponse": "Failed to send message to Edge Hub"}}`))
	}))
	defer server.Close()

	invoker := NewHTTPMethodInvoker(server.URL, "")
	result := invoker.Invoke(context.Background(), domain.Destination{DeviceID: "d", ModuleID: "m"}, testRequest())

	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Status != 500 {
		t.Errorf("status = %d, want 500", result.Status)
	}
}

func TestHTTPMethodInvoker_HubErrorSurfacesAsReturnedCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	invoker := NewHTTPMethodInvoker(server.URL, "")
	result := invoker.Invoke(context.Background(), domain.Destination{DeviceID: "d", ModuleID: "m"}, testRequest())

	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Status != 404 {
		t.Errorf("status = %d, want 404", result.Status)
	}
}

func TestHTTPMethodInvoker_TransportErrorBecomesErr(t *testing.T) {
	// Closed server: connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	invoker := NewHTTPMethodInvoker(server.URL, "")
	result := invoker.Invoke(context.Background(), domain.Destination{DeviceID: "d", ModuleID: "m"}, testRequest())

	if result.Err == nil {
		t.Fatal("expected a transport error")
	}
}

func TestHTTPMethodInvoker_ContextTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	invoker := NewHTTPMethodInvoker(server.URL, "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := invoker.Invoke(ctx, domain.Destination{DeviceID: "d", ModuleID: "m"}, testRequest())

	if result.Err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestHTTPMethodInvoker_AuthorizationHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"status": 200}`))
	}))
	defer server.Close()

	invoker := NewHTTPMethodInvoker(server.URL, "SharedAccessSignature sr=test")
	invoker.Invoke(context.Background(), domain.Destination{DeviceID: "d", ModuleID: "m"}, testRequest())

	if gotAuth != "SharedAccessSignature sr=test" {
		t.Errorf("authorization header = %q", gotAuth)
	}
}
