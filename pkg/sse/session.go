package sse

import (
	"context"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/yllibed/httpserver/pkg/server"
)

// Session is one open SSE stream. Its methods are safe for concurrent use.
type Session struct {
	req       *server.Request
	w         *server.StreamWriter
	mu        *semaphore.Weighted
	ctx       context.Context
	cancel    context.CancelFunc
	autoFlush bool
	lastID    string
}

func newSession(ctx context.Context, cancel context.CancelFunc, req *server.Request, w *server.StreamWriter, autoFlush bool) *Session {
	return &Session{
		req:       req,
		w:         w,
		mu:        semaphore.NewWeighted(1),
		ctx:       ctx,
		cancel:    cancel,
		autoFlush: autoFlush,
		lastID:    strings.TrimSpace(req.Header().Get("Last-Event-ID")),
	}
}

// Request returns the request that opened the session.
func (s *Session) Request() *server.Request { return s.req }

// Connected reports whether the session is still open.
func (s *Session) Connected() bool { return s.ctx.Err() == nil }

// Context returns the session context. It is cancelled when the client
// disconnects, the server shuts down, or the session callback returns.
func (s *Session) Context() context.Context { return s.ctx }

// LastEventID returns the Last-Event-ID request header sent by a reconnecting
// client, or "".
func (s *Session) LastEventID() string { return s.lastID }

// EventOption sets optional event fields.
type EventOption func(*event)

type event struct {
	name string
	id   string
}

// WithEventName sets the event type.
func WithEventName(name string) EventOption {
	return func(e *event) { e.name = name }
}

// WithID sets the event id.
func WithID(id string) EventOption {
	return func(e *event) { e.id = id }
}

// SendEvent sends one event. data may span several lines.
func (s *Session) SendEvent(ctx context.Context, data string, opts ...EventOption) error {
	var e event
	for _, opt := range opts {
		opt(&e)
	}
	return s.write(ctx, "event", func() error {
		return writeEvent(s.w, data, e.name, e.id)
	})
}

// SendComment sends a comment frame, which clients ignore.
func (s *Session) SendComment(ctx context.Context, text string) error {
	return s.write(ctx, "comment", func() error {
		return writeComment(s.w, text)
	})
}

// Flush sends buffered frames. It is only needed when AutoFlush is off.
func (s *Session) Flush(ctx context.Context) error {
	if err := s.lock(ctx, "flush"); err != nil {
		return err
	}
	defer s.mu.Release(1)
	return s.fail("flush", s.w.Flush())
}

func (s *Session) write(ctx context.Context, op string, frame func() error) error {
	if err := s.lock(ctx, op); err != nil {
		return err
	}
	defer s.mu.Release(1)

	if err := frame(); err != nil {
		return s.fail(op, err)
	}
	if s.autoFlush {
		return s.fail(op, s.w.Flush())
	}
	return nil
}

// lock acquires the write mutex. It fails when ctx is done or the session has
// ended.
func (s *Session) lock(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.ctx.Err() != nil {
		return &DisconnectError{Op: op, Err: ErrSessionClosed}
	}
	if err := s.mu.Acquire(ctx, 1); err != nil {
		return err
	}
	if s.ctx.Err() != nil {
		s.mu.Release(1)
		return &DisconnectError{Op: op, Err: ErrSessionClosed}
	}
	return nil
}

// fail cancels the session on a write error.
func (s *Session) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	s.cancel()
	return &DisconnectError{Op: op, Err: err}
}
