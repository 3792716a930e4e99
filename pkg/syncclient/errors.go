package syncclient

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound mirrors the server's 404 for an unknown entry.
	ErrNotFound = errors.New("syncclient: entry not found")

	// ErrDuplicateTrack mirrors the server's 409 for an already-queued
	// track. Adds are not blindly retried so this stays accurate.
	ErrDuplicateTrack = errors.New("syncclient: track already queued")

	// ErrReconnectExhausted reports that the reconnect attempt budget is
	// spent. It is terminal for this agent instance.
	ErrReconnectExhausted = errors.New("syncclient: reconnect attempts exhausted")

	// ErrClosed reports use of an agent after a deliberate Close.
	ErrClosed = errors.New("syncclient: agent closed")
)

// apiError carries a non-2xx server response.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("syncclient: server returned %d: %s", e.status, e.msg)
}
