package connection

import (
	"strings"
	"time"

	"github.com/c360/agentwire/errors"
)

// Status is an immutable snapshot of the logical connection. The manager
// replaces it on every transition; callers receive copies.
type Status struct {
	Connected     bool      `json:"connected"`
	LastConnected time.Time `json:"lastConnected"` // zero until the first open
	Error         string    `json:"error,omitempty"`
}

// Equal reports whether two snapshots describe the same state
func (s Status) Equal(other Status) bool {
	return s.Connected == other.Connected &&
		s.LastConnected.Equal(other.LastConnected) &&
		s.Error == other.Error
}

// Exhausted reports whether the manager gave up reconnecting. Only Connect
// leaves this state.
func (s Status) Exhausted() bool {
	return !s.Connected && strings.Contains(s.Error, errors.ErrReconnectExhausted.Error())
}

// StatusListener observes status transitions
type StatusListener func(Status)
