package domain

import "github.com/google/uuid"

// CorrelationToken tags every hop of one verification cycle so the full
// round trip can be reconstructed afterwards. Generated once per cycle,
// immutable, never reused.
type CorrelationToken string

// NewCorrelationToken returns a fresh random token.
func NewCorrelationToken() CorrelationToken {
	return CorrelationToken(uuid.NewString())
}

func (t CorrelationToken) String() string {
	return string(t)
}
