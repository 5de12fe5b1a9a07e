package handlers

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/yllibed/httpserver/internal/txn"
	"github.com/yllibed/httpserver/pkg/server"
)

// Notify turns POST requests on one path into notifications. The body of each
// request is delivered to every subscriber; the client gets "Notified". Other
// methods on the path get 405.
type Notify struct {
	path   string
	subs   *txn.Cell[*txn.List[*subscriber]]
	closed atomic.Bool
}

type subscriber struct {
	fn func(body string)
}

// NewNotify returns a Notify handler for path. An empty path uses "/notify".
func NewNotify(path string) *Notify {
	if path == "" {
		path = "/notify"
	}
	return &Notify{
		path: normalizePath(path),
		subs: txn.NewCell(txn.NewList[*subscriber]()),
	}
}

// Subscribe registers fn for every later notification. fn runs on the request
// goroutine, in subscription order. The returned func unsubscribes.
func (n *Notify) Subscribe(fn func(body string)) (cancel func()) {
	s := &subscriber{fn: fn}
	n.subs.Update(func(l *txn.List[*subscriber]) *txn.List[*subscriber] {
		return l.Append(s)
	})
	return func() {
		n.subs.Update(func(l *txn.List[*subscriber]) *txn.List[*subscriber] {
			return l.RemoveFunc(func(x *subscriber) bool { return x == s })
		})
	}
}

// Subscribers returns the number of subscribers.
func (n *Notify) Subscribers() int {
	return n.subs.Load().Len()
}

// HandleRequest implements server.Handler.
func (n *Notify) HandleRequest(ctx context.Context, req *server.Request, relativePath string) error {
	if !strings.EqualFold(stripQuery(relativePath), n.path) {
		return nil
	}
	if !strings.EqualFold(req.Method(), "POST") {
		req.SetResponse("text/plain", "Method not authorized - use a POST", server.WithStatus(405, "METHOD NOT ALLOWED"))
		return nil
	}

	req.SetResponse("text/plain", "Notified")
	if n.closed.Load() {
		return nil
	}
	for _, s := range n.subs.Load().All() {
		s.fn(req.Body())
	}
	return nil
}

// Close drops every subscriber. Later notifications are answered but not
// delivered.
func (n *Notify) Close() error {
	n.closed.Store(true)
	n.subs.Swap(txn.NewList[*subscriber]())
	return nil
}

// String identifies the handler in logs.
func (n *Notify) String() string { return "notify " + n.path }
