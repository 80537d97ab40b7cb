// Package edgeclient adapts the edge module to its transport: it listens
// for direct-method calls, forwards outbound messages to the hub, and
// surfaces connection status changes as an event channel so the monitor's
// state machine stays independent of any callback registration mechanism.
package edgeclient

import (
	"time"

	"github.com/sebader/iotedge-end2end/internal/domain"
)

// StatusFeed is the seam between a transport adapter and the connection
// monitor. Adapters push status changes in; the monitor consumes them from
// the channel on its own schedule.
type StatusFeed struct {
	ch chan domain.ConnectionChange
}

func NewStatusFeed(buffer int) *StatusFeed {
	if buffer <= 0 {
		buffer = 16
	}
	return &StatusFeed{
		ch: make(chan domain.ConnectionChange, buffer),
	}
}

// Notify pushes one status change. Non-blocking: if the monitor has fallen
// behind, the oldest unconsumed change is dropped in favor of the newest,
// since only the latest state matters.
func (f *StatusFeed) Notify(state domain.ConnectionState, reason string) {
	change := domain.ConnectionChange{
		State:  state,
		Reason: reason,
		At:     time.Now().UTC(),
	}
	for {
		select {
		case f.ch <- change:
			return
		default:
			select {
			case <-f.ch:
			default:
			}
		}
	}
}

// Changes returns the channel the connection monitor consumes.
func (f *StatusFeed) Changes() <-chan domain.ConnectionChange {
	return f.ch
}
