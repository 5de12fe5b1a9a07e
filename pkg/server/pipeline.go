package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime/debug"

	"github.com/yllibed/httpserver/internal/txn"
)

// Pipeline is an ordered chain of handlers. Registration order is dispatch
// order, and the first handler to set a response wins.
//
// The handler list is a persistent collection updated by compare-and-swap, so
// dispatch never blocks and always iterates one complete version of the list.
type Pipeline struct {
	entries *txn.Cell[*txn.List[*entry]]
	logger  *slog.Logger
}

type errorHookKey struct{}

// WithErrorHook returns a context under which every Pipeline dispatch, nested
// pipelines included, reports handler errors and panics to hook. Hooks already
// present in ctx keep receiving them.
func WithErrorHook(ctx context.Context, hook func(*HandlerError)) context.Context {
	if prev := errorHook(ctx); prev != nil {
		next := hook
		hook = func(herr *HandlerError) {
			prev(herr)
			next(herr)
		}
	}
	return context.WithValue(ctx, errorHookKey{}, hook)
}

func errorHook(ctx context.Context) func(*HandlerError) {
	hook, _ := ctx.Value(errorHookKey{}).(func(*HandlerError))
	return hook
}

// entry gives every registration its own identity, so the same handler can be
// registered twice and handlers need not be comparable.
type entry struct {
	h Handler
}

// NewPipeline creates an empty Pipeline. A nil logger uses slog.Default().
func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		entries: txn.NewCell(txn.NewList[*entry]()),
		logger:  logger,
	}
}

// Register appends h to the pipeline.
func (p *Pipeline) Register(h Handler) *Registration {
	e := &entry{h: h}
	p.entries.Update(func(l *txn.List[*entry]) *txn.List[*entry] {
		return l.Append(e)
	})
	return &Registration{
		handler: h,
		remove: func() {
			p.entries.Update(func(l *txn.List[*entry]) *txn.List[*entry] {
				return l.RemoveFunc(func(x *entry) bool { return x == e })
			})
		},
	}
}

// Len returns the number of registered handlers.
func (p *Pipeline) Len() int {
	return p.entries.Load().Len()
}

// Handlers returns a snapshot of the registered handlers in dispatch order.
func (p *Pipeline) Handlers() []Handler {
	entries := p.entries.Load().All()
	out := make([]Handler, len(entries))
	for i, e := range entries {
		out[i] = e.h
	}
	return out
}

// Dispatch offers req to each handler in order until one sets a response.
// Handler errors and panics are logged and isolated. It reports whether a
// response is set when it returns.
func (p *Pipeline) Dispatch(ctx context.Context, req *Request, relativePath string) bool {
	for _, e := range p.entries.Load().All() {
		if herr := p.invoke(ctx, e.h, req, relativePath); herr != nil {
			p.report(ctx, req, herr)
		}
		if req.IsResponseSet() {
			return true
		}
	}
	return req.IsResponseSet()
}

func (p *Pipeline) invoke(ctx context.Context, h Handler, req *Request, relativePath string) (herr *HandlerError) {
	defer func() {
		if r := recover(); r != nil {
			herr = &HandlerError{Handler: HandlerName(h), Panic: r, Stack: debug.Stack()}
		}
	}()
	if err := h.HandleRequest(ctx, req, relativePath); err != nil {
		return &HandlerError{Handler: HandlerName(h), Err: err}
	}
	return nil
}

func (p *Pipeline) report(ctx context.Context, req *Request, herr *HandlerError) {
	if hook := errorHook(ctx); hook != nil {
		hook(herr)
	}
	if herr.Panic != nil {
		p.logger.Error("handler panic",
			"handler", herr.Handler,
			"conn", req.ID(),
			"path", req.Path(),
			"panic", herr.Panic,
			"stack", string(herr.Stack),
		)
		return
	}
	if IsDisconnect(herr.Err) {
		p.logger.Debug("handler cancelled", "handler", herr.Handler, "conn", req.ID(), "error", herr.Err)
		return
	}
	p.logger.Error("error in handler",
		"handler", herr.Handler,
		"conn", req.ID(),
		"path", req.Path(),
		"error", herr.Err,
	)
}

// Close unregisters every handler and closes those implementing io.Closer.
func (p *Pipeline) Close() error {
	old := p.entries.Swap(txn.NewList[*entry]())
	var errs []error
	for _, e := range old.All() {
		if c, ok := e.h.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
