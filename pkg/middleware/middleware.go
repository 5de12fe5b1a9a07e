package middleware

import (
	"context"
	"io"

	"github.com/yllibed/httpserver/pkg/server"
)

// Middleware decorates a pipeline handler.
type Middleware func(next server.Handler) server.Handler

// Chain wraps h with mws. The first middleware is the outermost.
func Chain(h server.Handler, mws ...Middleware) server.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// wrapped keeps the identity and lifecycle of the handler it decorates: its
// name in logs and its Close method.
type wrapped struct {
	next   server.Handler
	handle server.HandlerFunc
}

func wrap(next server.Handler, handle server.HandlerFunc) server.Handler {
	return &wrapped{next: next, handle: handle}
}

func (w *wrapped) HandleRequest(ctx context.Context, req *server.Request, relativePath string) error {
	return w.handle(ctx, req, relativePath)
}

func (w *wrapped) String() string { return server.HandlerName(w.next) }

func (w *wrapped) Close() error {
	if c, ok := w.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
