package api

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkAbsent marks failures caused by the network being
	// unreachable, as opposed to the server answering with an error.
	ErrNetworkAbsent = errors.New("network unreachable")

	// ErrUnauthorized marks a 401 response. Terminal for the session.
	ErrUnauthorized = errors.New("unauthorized")
)

// ServerError is a non-2xx response other than 401: validation failures,
// business rejections, server faults. Terminal for the call, never queued.
type ServerError struct {
	StatusCode int
	Body       []byte
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server rejected request: status %d", e.StatusCode)
}

// QueuedError reports that a mutating call could not reach the server and was
// durably captured for replay. Callers should render it as a deferred
// success, not a failure.
type QueuedError struct {
	QueueID string
	Err     error
}

func (e *QueuedError) Error() string {
	return fmt.Sprintf("request queued for sync (%s): %v", e.QueueID, e.Err)
}

func (e *QueuedError) Unwrap() []error {
	return []error{ErrNetworkAbsent, e.Err}
}

// IsOffline distinguishes the queued case from a hard failure.
func (e *QueuedError) IsOffline() bool { return true }

// Queued reports that the intent survived and will replay on reconnect.
func (e *QueuedError) Queued() bool { return true }

// IsNetworkAbsent reports whether err was caused by missing connectivity.
func IsNetworkAbsent(err error) bool {
	return errors.Is(err, ErrNetworkAbsent)
}
