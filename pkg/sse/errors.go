package sse

import (
	"context"
	"errors"
	"fmt"
)

// ErrSessionClosed is returned when writing to a session that has ended.
var ErrSessionClosed = errors.New("sse: session closed")

// DisconnectError reports a write that failed because the client went away or
// the session was cancelled. It matches context.Canceled, so callers can treat
// it like any other cancellation.
type DisconnectError struct {
	Op  string // "event", "comment", "flush"
	Err error
}

// Error returns the error message.
func (e *DisconnectError) Error() string {
	return fmt.Sprintf("sse: %s: client disconnected: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *DisconnectError) Unwrap() error {
	return e.Err
}

// Is makes DisconnectError match context.Canceled.
func (e *DisconnectError) Is(target error) bool {
	return target == context.Canceled
}
