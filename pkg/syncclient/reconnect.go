package syncclient

import (
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ConnState is one of the named states of the reconnection machine.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reconnector governs when the agent may re-establish a lost connection:
// Disconnected -> Connecting -> Connected, with Failed terminal once the
// attempt budget is spent. At most one attempt is in flight at a time.
type Reconnector struct {
	mu          sync.Mutex
	state       ConnState
	attempts    int
	maxAttempts int
	bo          *backoff.ExponentialBackOff
	closed      bool
}

func NewReconnector(maxAttempts int, initial, max time.Duration) *Reconnector {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.MaxInterval = max
	// Attempts are budgeted by count, never by wall time.
	bo.MaxElapsedTime = 0
	bo.Reset()
	return &Reconnector{
		state:       StateDisconnected,
		maxAttempts: maxAttempts,
		bo:          bo,
	}
}

// BeginAttempt moves Disconnected -> Connecting and returns how long to wait
// before dialing: zero for a fresh connection, exponential backoff after
// failures. Returns ErrReconnectExhausted once the budget is spent; that
// state is terminal and must be surfaced, not silently retried.
func (r *Reconnector) BeginAttempt() (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}
	switch r.state {
	case StateFailed:
		return 0, ErrReconnectExhausted
	case StateConnecting, StateConnected:
		return 0, fmt.Errorf("syncclient: connection attempt already in flight (state %s)", r.state)
	}
	if r.attempts >= r.maxAttempts {
		r.state = StateFailed
		return 0, ErrReconnectExhausted
	}

	r.state = StateConnecting
	if r.attempts == 0 {
		return 0, nil
	}
	return r.bo.NextBackOff(), nil
}

// AttemptFailed records a failed dial: back to Disconnected with the retry
// counter advanced.
func (r *Reconnector) AttemptFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateConnecting {
		r.state = StateDisconnected
		r.attempts++
	}
}

// Succeeded moves Connecting -> Connected and resets the retry budget.
func (r *Reconnector) Succeeded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateConnecting {
		r.state = StateConnected
		r.attempts = 0
		r.bo.Reset()
	}
}

// Dropped records an unexpected loss of an established connection.
func (r *Reconnector) Dropped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateConnected {
		r.state = StateDisconnected
	}
}

// Close marks a deliberate shutdown; no further attempts are allowed.
func (r *Reconnector) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.state = StateDisconnected
}

func (r *Reconnector) State() ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Attempts reports the consecutive failed attempts since the last success.
func (r *Reconnector) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}
