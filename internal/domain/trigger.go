package domain

import "time"

// CycleTrigger is emitted by the trigger when a verification cycle is due.
// Triggers are not mutually exclusive: if one cycle outlives the interval,
// the next trigger starts an independent cycle under its own token.
type CycleTrigger struct {
	ScheduledAt time.Time // intended fire time (UTC)
	FiredAt     time.Time // actual emission time
}
