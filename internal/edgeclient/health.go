package edgeclient

import (
	"sync"

	"github.com/sebader/iotedge-end2end/internal/domain"
)

// ConnectionHealth tracks consecutive forward failures and translates them
// into connection status changes on the feed. One failure means the
// transport is disconnected but still retrying; threshold consecutive
// failures mean its retries are exhausted, the one condition the monitor
// treats as fatal. A threshold of 0 disables the expiry transition.
type ConnectionHealth struct {
	mu                  sync.Mutex
	consecutiveFailures int
	threshold           int
	feed                *StatusFeed
}

func NewConnectionHealth(threshold int, feed *StatusFeed) *ConnectionHealth {
	return &ConnectionHealth{
		threshold: threshold,
		feed:      feed,
	}
}

// RecordSuccess resets the failure streak. The first success after a
// disconnect reports the connection as restored.
func (h *ConnectionHealth) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.consecutiveFailures > 0 {
		h.feed.Notify(domain.ConnectionConnected, "communication restored")
	}
	h.consecutiveFailures = 0
}

// RecordFailure extends the failure streak and reports the resulting state.
func (h *ConnectionHealth) RecordFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.consecutiveFailures++

	if h.threshold > 0 && h.consecutiveFailures >= h.threshold {
		h.feed.Notify(domain.ConnectionDisconnectedExpired, domain.ReasonRetryExpired)
		return
	}

	h.feed.Notify(domain.ConnectionDisconnectedRetrying, err.Error())
}
