package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sebader/iotedge-end2end/internal/domain"
)

// mockForwarder records forwarded messages with a configurable error.
type mockForwarder struct {
	mu       sync.Mutex
	messages []domain.OutboundMessage
	err      error
}

func (f *mockForwarder) Forward(ctx context.Context, msg domain.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *mockForwarder) last() (domain.OutboundMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return domain.OutboundMessage{}, false
	}
	return f.messages[len(f.messages)-1], true
}

func validBody() []byte {
	return []byte(`{"correlationId":"abc-123","text":"hello"}`)
}

func TestHandle_SuccessfulForward(t *testing.T) {
	forwarder := &mockForwarder{}
	h := New(forwarder)

	resp := h.Handle(context.Background(), MethodRequest{
		Name: domain.MethodNewMessageRequest,
		Body: validBody(),
	})

	if resp.Status != 200 {
		t.Errorf("status = %d, want 200", resp.Status)
	}
	if resp.Payload.ModuleResponse != "Message sent successfully to Edge Hub" {
		t.Errorf("module response = %q", resp.Payload.ModuleResponse)
	}

	msg, ok := forwarder.last()
	if !ok {
		t.Fatal("no message forwarded")
	}
	if got := msg.Properties[domain.PropertyCorrelationID]; got != "abc-123" {
		t.Errorf("correlation property = %q, want abc-123", got)
	}
	if got := msg.Properties[domain.PropertyScope]; got != domain.ScopeE2ETest {
		t.Errorf("scope property = %q, want %q", got, domain.ScopeE2ETest)
	}
	if string(msg.Body) != "hello" {
		t.Errorf("body = %q, want hello", msg.Body)
	}
	if msg.ContentType != domain.ContentTypeJSON {
		t.Errorf("content type = %q", msg.ContentType)
	}
	if msg.ContentEncoding != domain.ContentEncodingUTF8 {
		t.Errorf("content encoding = %q", msg.ContentEncoding)
	}
}

// Applying the handler twice to logically identical requests must yield the
// same token on the output both times.
func TestHandle_CorrelationPropagationIsIdempotent(t *testing.T) {
	forwarder := &mockForwarder{}
	h := New(forwarder)

	for i := 0; i < 2; i++ {
		h.Handle(context.Background(), MethodRequest{
			Name: domain.MethodNewMessageRequest,
			Body: validBody(),
		})
		msg, ok := forwarder.last()
		if !ok {
			t.Fatal("no message forwarded")
		}
		if got := msg.Properties[domain.PropertyCorrelationID]; got != "abc-123" {
			t.Errorf("pass %d: correlation property = %q, want abc-123", i+1, got)
		}
	}
}

func TestHandle_UnknownMethod(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   []byte
	}{
		{"unknown with valid body", "Unknown", validBody()},
		{"unknown with malformed body", "Unknown", []byte(`{not json`)},
		{"empty method name", "", validBody()},
		{"case mismatch", "newmessagerequest", validBody()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forwarder := &mockForwarder{}
			h := New(forwarder)

			resp := h.Handle(context.Background(), MethodRequest{Name: tt.method, Body: tt.body})

			if resp.Status != 404 {
				t.Errorf("status = %d, want 404", resp.Status)
			}
			want := fmt.Sprintf("Method %s not implemented", tt.method)
			if resp.Payload.ModuleResponse != want {
				t.Errorf("module response = %q, want %q", resp.Payload.ModuleResponse, want)
			}
			if _, forwarded := forwarder.last(); forwarded {
				t.Error("unknown method must not forward anything")
			}
		})
	}
}

func TestHandle_MalformedBody(t *testing.T) {
	forwarder := &mockForwarder{}
	h := New(forwarder)

	resp := h.Handle(context.Background(), MethodRequest{
		Name: domain.MethodNewMessageRequest,
		Body: []byte(`{"correlationId": 42`),
	})

	if resp.Status != 400 {
		t.Errorf("status = %d, want 400", resp.Status)
	}
	if resp.Payload.ModuleResponse == "" {
		t.Error("expected a descriptive failure response")
	}
	if _, forwarded := forwarder.last(); forwarded {
		t.Error("malformed request must not forward anything")
	}
}

func TestHandle_ForwardFailure(t *testing.T) {
	forwarder := &mockForwarder{err: errors.New("hub unreachable")}
	h := New(forwarder)

	resp := h.Handle(context.Background(), MethodRequest{
		Name: domain.MethodNewMessageRequest,
		Body: validBody(),
	})

	if resp.Status != 500 {
		t.Errorf("status = %d, want 500", resp.Status)
	}
	if resp.Payload.ModuleResponse != "Failed to send message to Edge Hub" {
		t.Errorf("module response = %q", resp.Payload.ModuleResponse)
	}

	// The handler keeps serving after a forward failure.
	forwarder.err = nil
	resp = h.Handle(context.Background(), MethodRequest{
		Name: domain.MethodNewMessageRequest,
		Body: validBody(),
	})
	if resp.Status != 200 {
		t.Errorf("status after recovery = %d, want 200", resp.Status)
	}
}

func TestHandle_InvocationCounter(t *testing.T) {
	forwarder := &mockForwarder{}
	h := New(forwarder)

	const calls = 50
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Handle(context.Background(), MethodRequest{
				Name: domain.MethodNewMessageRequest,
				Body: validBody(),
			})
		}()
	}
	wg.Wait()

	if got := h.Invocations(); got != calls {
		t.Errorf("invocations = %d, want %d", got, calls)
	}
}

func TestHandle_EmptyCorrelationIDPropagatedVerbatim(t *testing.T) {
	forwarder := &mockForwarder{}
	h := New(forwarder)

	resp := h.Handle(context.Background(), MethodRequest{
		Name: domain.MethodNewMessageRequest,
		Body: []byte(`{"correlationId":"","text":"x"}`),
	})

	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
	msg, _ := forwarder.last()
	if got, ok := msg.Properties[domain.PropertyCorrelationID]; ok && got != "" {
		t.Errorf("correlation property = %q, want empty", got)
	}
}
