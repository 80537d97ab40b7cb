package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sebader/iotedge-end2end/internal/domain"
)

// HTTPMethodInvoker issues direct-method calls through the hub's twin
// method REST endpoint.
type HTTPMethodInvoker struct {
	client   *http.Client
	baseURL  string
	sasToken string
}

func NewHTTPMethodInvoker(baseURL, sasToken string) *HTTPMethodInvoker {
	return &HTTPMethodInvoker{
		client:   &http.Client{},
		baseURL:  strings.TrimRight(baseURL, "/"),
		sasToken: sasToken,
	}
}

// methodEnvelope is the hub's direct-method request wire format.
type methodEnvelope struct {
	MethodName               string                `json:"methodName"`
	ResponseTimeoutInSeconds int                   `json:"responseTimeoutInSeconds"`
	Payload                  domain.RequestPayload `json:"payload"`
}

// methodResponse is the hub's direct-method response wire format. The
// status field is the method status returned by the module, not the HTTP
// status of the hub call.
type methodResponse struct {
	Status  int             `json:"status"`
	Payload json.RawMessage `json:"payload"`
}

// Invoke posts one direct-method call and maps the response envelope onto
// an InvocationResult. A non-200 hub response surfaces its HTTP status as
// the returned code; only transport-level failures populate Err.
func (s *HTTPMethodInvoker) Invoke(ctx context.Context, dest domain.Destination, req InvocationRequest) InvocationResult {
	start := time.Now()

	envelope := methodEnvelope{
		MethodName:               req.Method,
		ResponseTimeoutInSeconds: int(req.ResponseTimeout.Seconds()),
		Payload:                  req.Payload,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return InvocationResult{Err: fmt.Errorf("marshal: %w", err), Duration: time.Since(start)}
	}

	url := fmt.Sprintf("%s/twins/%s/modules/%s/methods?api-version=2021-04-12",
		s.baseURL, dest.DeviceID, dest.ModuleID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return InvocationResult{Err: fmt.Errorf("create request: %w", err), Duration: time.Since(start)}
	}

	httpReq.Header.Set("Content-Type", domain.ContentTypeJSON)
	if s.sasToken != "" {
		httpReq.Header.Set("Authorization", s.sasToken)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return InvocationResult{Err: fmt.Errorf("send: %w", err), Duration: time.Since(start)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return InvocationResult{Err: fmt.Errorf("read response: %w", err), Duration: time.Since(start)}
	}

	if resp.StatusCode != http.StatusOK {
		return InvocationResult{Status: resp.StatusCode, Payload: respBody, Duration: time.Since(start)}
	}

	var envelopeResp methodResponse
	if err := json.Unmarshal(respBody, &envelopeResp); err != nil {
		return InvocationResult{Err: fmt.Errorf("decode response: %w", err), Duration: time.Since(start)}
	}

	return InvocationResult{
		Status:   envelopeResp.Status,
		Payload:  envelopeResp.Payload,
		Duration: time.Since(start),
	}
}
