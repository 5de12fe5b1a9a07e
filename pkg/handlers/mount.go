package handlers

import (
	"context"
	"log/slog"

	"github.com/yllibed/httpserver/pkg/server"
)

// Mount groups handlers under a path prefix. Nested handlers see the relative
// path with the prefix removed, so mounts compose: a Mount registered in a
// Mount matches the concatenation of both prefixes.
//
// Nested handlers are dispatched like the root pipeline: in registration
// order, stopping at the first response, with errors and panics isolated.
type Mount struct {
	prefix   string
	pipeline *server.Pipeline
}

// NewMount returns a Mount for prefix. A nil logger uses slog.Default().
func NewMount(prefix string, logger *slog.Logger) *Mount {
	if logger == nil {
		logger = slog.Default().With("component", "mount")
	}
	return &Mount{
		prefix:   normalizePrefix(prefix),
		pipeline: server.NewPipeline(logger),
	}
}

// Register adds h under the mount prefix.
func (m *Mount) Register(h server.Handler) *server.Registration {
	return m.pipeline.Register(h)
}

// Len returns the number of nested handlers.
func (m *Mount) Len() int { return m.pipeline.Len() }

// HandleRequest implements server.Handler.
func (m *Mount) HandleRequest(ctx context.Context, req *server.Request, relativePath string) error {
	sub, ok := matchPrefix(relativePath, m.prefix)
	if !ok {
		return nil
	}
	m.pipeline.Dispatch(ctx, req, sub)
	return nil
}

// Close unregisters and closes every nested handler.
func (m *Mount) Close() error {
	return m.pipeline.Close()
}

// String identifies the handler in logs.
func (m *Mount) String() string {
	if m.prefix == "" {
		return "mount /"
	}
	return "mount " + m.prefix
}
