package domain

import "time"

// ConnectionState describes the edge transport connection as reported by
// the transport layer. Owned exclusively by the connection monitor.
type ConnectionState string

const (
	ConnectionConnected            ConnectionState = "connected"
	ConnectionDisconnectedRetrying ConnectionState = "disconnected_retrying"
	ConnectionDisconnectedExpired  ConnectionState = "disconnected_expired"
	ConnectionDisabled             ConnectionState = "disabled"
	ConnectionClosed               ConnectionState = "closed"
)

// ReasonRetryExpired means the transport has exhausted its own reconnection
// attempts and given up. The only unrecoverable condition in the system.
const ReasonRetryExpired = "retry-expired"

// ConnectionChange is one status-change notification pushed by a transport
// adapter onto the monitor's event channel.
type ConnectionChange struct {
	State  ConnectionState
	Reason string
	At     time.Time
}
