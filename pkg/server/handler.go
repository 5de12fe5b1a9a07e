package server

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Handler processes requests dispatched by a Pipeline.
//
// A handler that wants to own the response calls one of the Set*Response
// methods on req. Leaving req untouched means "not interested"; the next
// handler gets a chance. relativePath is the request target with any enclosing
// mount prefix stripped.
//
// A returned error is logged and does not stop dispatch.
type Handler interface {
	HandleRequest(ctx context.Context, req *Request, relativePath string) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request, relativePath string) error

// HandleRequest calls f.
func (f HandlerFunc) HandleRequest(ctx context.Context, req *Request, relativePath string) error {
	return f(ctx, req, relativePath)
}

// HandlerName returns the identity used for h in logs: its String method when
// it has one, its dynamic type otherwise.
func HandlerName(h Handler) string {
	if s, ok := h.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", h)
}

// Registration is returned by Register. Closing it removes the handler from
// its pipeline and closes the handler when it implements io.Closer. Close is
// idempotent.
type Registration struct {
	once    sync.Once
	remove  func()
	handler Handler
	err     error
}

// Handler returns the registered handler.
func (r *Registration) Handler() Handler { return r.handler }

// Close unregisters the handler and releases it.
func (r *Registration) Close() error {
	r.once.Do(func() {
		r.remove()
		if c, ok := r.handler.(io.Closer); ok {
			r.err = c.Close()
		}
	})
	return r.err
}
