package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Sentinel errors for common server error conditions.
var (
	// ErrServerClosed is returned by Start after Close or Shutdown.
	ErrServerClosed = errors.New("server: server closed")

	// ErrMalformedRequestLine is returned when the request line is not exactly
	// "METHOD SP request-target SP HTTP-version".
	ErrMalformedRequestLine = errors.New("server: malformed request line")

	// ErrLineTooLong is returned when a request or header line exceeds the
	// configured limit.
	ErrLineTooLong = errors.New("server: line too long")

	// ErrEmptyRequest is returned when the peer closed the connection before
	// sending a request line.
	ErrEmptyRequest = errors.New("server: empty request")

	// ErrNoResponse is returned when a response is written for a request no
	// handler answered.
	ErrNoResponse = errors.New("server: no response set")

	// ErrNilStream is returned when a stream factory returns a nil reader.
	ErrNilStream = errors.New("server: stream factory returned nil body")
)

// ParseError reports a request that could not be parsed. It is fatal to the
// connection: no response is sent.
type ParseError struct {
	Op   string // "request line", "header", "body"
	Line string // offending line, when known
	Err  error
}

// Error returns the error message with parse context.
func (e *ParseError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("server: parse %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: parse %s %q: %v", e.Op, e.Line, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// HandlerError wraps an error returned by, or a panic raised in, a handler
// during dispatch.
type HandlerError struct {
	Handler string // handler identity, see HandlerName
	Err     error  // returned error, nil for panics
	Panic   any    // recovered panic value
	Stack   []byte
}

// Error returns the error message.
func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("server: handler %s panicked: %v", e.Handler, e.Panic)
	}
	return fmt.Sprintf("server: handler %s: %v", e.Handler, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// ConnError wraps a failure while writing a response on a connection.
type ConnError struct {
	ConnID uint64
	Op     string
	Err    error
}

// Error returns the error message with connection context.
func (e *ConnError) Error() string {
	return fmt.Sprintf("server: conn %d: %s: %v", e.ConnID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ConnError) Unwrap() error {
	return e.Err
}

// IsDisconnect reports whether err denotes an ordinary client disconnect or a
// cancellation rather than a server fault.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED):
		return true
	}
	return false
}
