package edgeclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sebader/iotedge-end2end/internal/handler"
)

// maxMethodBody caps the accepted direct-method payload size.
const maxMethodBody = 256 << 10

// MethodHandler serves one direct-method call.
type MethodHandler interface {
	Handle(ctx context.Context, req handler.MethodRequest) handler.MethodResponse
}

// Listener receives direct-method calls over the local transport endpoint
// (POST /methods/{name}) and hands them to the handler. The method name
// comes from the path, so it is resolved before the body is ever parsed.
type Listener struct {
	addr    string
	handler MethodHandler
	logger  *slog.Logger
	server  *http.Server
}

func NewListener(addr string, h MethodHandler) *Listener {
	l := &Listener{
		addr:    addr,
		handler: h,
		logger:  slog.Default().With("component", "listener"),
	}
	l.server = &http.Server{
		Addr:    addr,
		Handler: l,
	}
	return l
}

func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/methods/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/methods/")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMethodBody))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	resp := l.handler.Handle(r.Context(), handler.MethodRequest{
		Name: name,
		Body: body,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	if err := json.NewEncoder(w).Encode(resp.Payload); err != nil {
		l.logger.Warn("failed to write response", "error", err)
	}
}

// Listen serves until ctx is cancelled, then shuts the server down.
func (l *Listener) Listen(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		l.logger.Info("listening for method calls", "addr", l.addr)
		if err := l.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return l.server.Shutdown(shutdownCtx)
	}
}
