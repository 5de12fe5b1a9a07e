package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrServerClosed", ErrServerClosed, "server: server closed"},
		{"ErrMalformedRequestLine", ErrMalformedRequestLine, "server: malformed request line"},
		{"ErrLineTooLong", ErrLineTooLong, "server: line too long"},
		{"ErrEmptyRequest", ErrEmptyRequest, "server: empty request"},
		{"ErrNoResponse", ErrNoResponse, "server: no response set"},
		{"ErrNilStream", ErrNilStream, "server: stream factory returned nil body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("Error message = %q, want %q", tt.err.Error(), tt.msg)
			}
		})
	}
}

func TestParseError(t *testing.T) {
	err := &ParseError{Op: "request line", Line: "GET /", Err: ErrMalformedRequestLine}

	expected := `server: parse request line "GET /": server: malformed request line`
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, ErrMalformedRequestLine) {
		t.Error("Unwrap should return the cause error")
	}

	noLine := &ParseError{Op: "body", Err: io.ErrUnexpectedEOF}
	if noLine.Error() != "server: parse body: unexpected EOF" {
		t.Errorf("Error() = %q", noLine.Error())
	}
}

func TestHandlerError(t *testing.T) {
	cause := errors.New("boom")
	err := &HandlerError{Handler: "static", Err: cause}
	if err.Error() != "server: handler static: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should return the cause error")
	}

	p := &HandlerError{Handler: "static", Panic: "bad"}
	if p.Error() != "server: handler static panicked: bad" {
		t.Errorf("Error() = %q", p.Error())
	}
}

func TestConnError(t *testing.T) {
	cause := errors.New("connection reset")
	err := &ConnError{ConnID: 7, Op: "write", Err: cause}
	if err.Error() != "server: conn 7: write: connection reset" {
		t.Errorf("Error() = %q", err.Error())
	}
	var target *ConnError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &target) || target.ConnID != 7 {
		t.Error("errors.As should find ConnError")
	}
}

func TestIsDisconnect(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, true},
		{"deadline", context.DeadlineExceeded, true},
		{"eof", io.EOF, true},
		{"closed pipe", io.ErrClosedPipe, true},
		{"net closed", fmt.Errorf("write: %w", net.ErrClosed), true},
		{"epipe", &net.OpError{Op: "write", Err: syscall.EPIPE}, true},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"other", errors.New("disk full"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDisconnect(tt.err); got != tt.want {
				t.Errorf("IsDisconnect(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
