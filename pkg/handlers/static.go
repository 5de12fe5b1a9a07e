package handlers

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/yllibed/httpserver/pkg/server"
)

// Static answers GET on one path with a fixed body. Other methods on that
// path get 405.
type Static struct {
	path        string
	contentType string
	body        []byte
}

// NewStatic returns a Static handler for path.
func NewStatic(path, contentType, body string) *Static {
	return &Static{
		path:        normalizePath(path),
		contentType: contentType,
		body:        []byte(body),
	}
}

// HandleRequest implements server.Handler.
func (s *Static) HandleRequest(ctx context.Context, req *server.Request, relativePath string) error {
	if !strings.EqualFold(stripQuery(relativePath), s.path) {
		return nil
	}
	if !strings.EqualFold(req.Method(), "GET") {
		req.SetResponse("text/plain", "Method not authorized - use a GET", server.WithStatus(405, "METHOD NOT ALLOWED"))
		return nil
	}
	req.SetStreamResponse(s.contentType, s.open)
	return nil
}

func (s *Static) open(context.Context) (io.ReadCloser, int64, error) {
	return io.NopCloser(bytes.NewReader(s.body)), int64(len(s.body)), nil
}

// String identifies the handler in logs.
func (s *Static) String() string { return "static " + s.path }
