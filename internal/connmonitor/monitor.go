// Package connmonitor watches the edge transport connection and decides,
// per status change, whether the process keeps running.
//
// Every transition is logged. Exactly one condition is fatal: the transport
// reporting that its own reconnection attempts are exhausted. The monitor
// then terminates the whole process so an external supervisor restarts it
// from a clean state. Everything else is trusted to the transport's own
// reconnection logic.
package connmonitor

import (
	"context"
	"log/slog"
	"os"

	"github.com/sebader/iotedge-end2end/internal/domain"
	"github.com/sebader/iotedge-end2end/internal/logging"
)

// ExitRetryExpired is the distinguished exit code for the unrecoverable
// connection condition.
const ExitRetryExpired = 3

// Monitor consumes connection status changes from the transport adapter's
// event channel. It never touches call-handling state.
type Monitor struct {
	exit   func(int)
	logger *slog.Logger
}

func New() *Monitor {
	return &Monitor{
		exit:   os.Exit,
		logger: slog.Default().With("component", "connmonitor"),
	}
}

// WithExitFunc replaces os.Exit; used by tests.
func (m *Monitor) WithExitFunc(exit func(int)) *Monitor {
	m.exit = exit
	return m
}

// Run blocks until ctx is cancelled, logging every status change. A change
// with reason retry-expired terminates the process with ExitRetryExpired.
// Termination is abrupt: in-flight calls are not drained.
func (m *Monitor) Run(ctx context.Context, changes <-chan domain.ConnectionChange) {
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("stopped")
			return
		case change := <-changes:
			m.observe(ctx, change)
		}
	}
}

func (m *Monitor) observe(ctx context.Context, change domain.ConnectionChange) {
	m.logger.Info("connection status changed",
		"state", string(change.State),
		"reason", change.Reason,
	)

	if change.Reason == domain.ReasonRetryExpired {
		m.logger.Log(ctx, logging.LevelFatal,
			"transport gave up reconnecting, terminating for supervisor restart",
			"exit_code", ExitRetryExpired,
		)
		m.exit(ExitRetryExpired)
	}
}
