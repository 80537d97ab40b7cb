package metrics

import (
	"context"
	"errors"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
		want   string
	}{
		{"200 ok", 200, nil, StatusClass2xx},
		{"299 edge", 299, nil, StatusClass2xx},
		{"404 not found", 404, nil, StatusClass4xx},
		{"500 internal", 500, nil, StatusClass5xx},
		{"300 redirect", 300, nil, StatusClassOtherError},
		{"199 informational", 199, nil, StatusClassOtherError},
		{"deadline exceeded", 0, context.DeadlineExceeded, StatusClassTimeout},
		{"timeout text", 0, errors.New("i/o timeout"), StatusClassTimeout},
		{"connection refused", 0, errors.New("dial tcp: connection refused"), StatusClassConnectionError},
		{"no such host", 0, errors.New("lookup hub: no such host"), StatusClassConnectionError},
		{"other error", 0, errors.New("tls handshake failed"), StatusClassOtherError},
		{"error wins over status", 200, errors.New("read: broken pipe"), StatusClassOtherError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyStatus(tt.status, tt.err); got != tt.want {
				t.Errorf("ClassifyStatus(%d, %v) = %q, want %q", tt.status, tt.err, got, tt.want)
			}
		})
	}
}
