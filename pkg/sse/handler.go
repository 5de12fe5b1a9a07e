package sse

import (
	"context"
	"strings"

	"github.com/yllibed/httpserver/pkg/server"
)

// Handler is a pipeline handler serving one SSE endpoint.
//
// A request is taken when its method and path match. A taken request that
// fails Validate is answered with 406 Not Acceptable; otherwise Serve runs as
// the session.
type Handler struct {
	// Path restricts the handler to one relative path, compared without the
	// query string and ignoring case. "" matches every path.
	Path string

	// Method is the accepted method. Default: GET.
	Method string

	// Match replaces the method and path filter when set.
	Match func(req *server.Request, relativePath string) bool

	// Validate checks the request headers. Default: Negotiate.
	Validate func(req *server.Request) bool

	// Options builds per-request session options.
	Options func(req *server.Request, relativePath string) []Option

	// Serve runs the session.
	Serve SessionFunc
}

// NewHandler returns a GET handler for path.
func NewHandler(path string, serve SessionFunc) *Handler {
	return &Handler{Path: path, Serve: serve}
}

// HandleRequest implements server.Handler.
func (h *Handler) HandleRequest(ctx context.Context, req *server.Request, relativePath string) error {
	if !h.matches(req, relativePath) {
		return nil
	}

	validate := h.Validate
	if validate == nil {
		validate = Negotiate
	}
	if !validate(req) {
		req.SetResponse("text/plain", "Not Acceptable", server.WithStatus(406, "Not Acceptable"))
		return nil
	}

	var opts []Option
	if h.Options != nil {
		opts = h.Options(req, relativePath)
	}
	Start(req, h.Serve, opts...)
	return nil
}

func (h *Handler) matches(req *server.Request, relativePath string) bool {
	if h.Match != nil {
		return h.Match(req, relativePath)
	}
	method := h.Method
	if method == "" {
		method = "GET"
	}
	if !strings.EqualFold(req.Method(), method) {
		return false
	}
	if h.Path == "" {
		return true
	}
	path, _, _ := strings.Cut(relativePath, "?")
	return strings.EqualFold(path, h.Path)
}

// String identifies the handler in logs.
func (h *Handler) String() string {
	if h.Path == "" {
		return "sse"
	}
	return "sse " + h.Path
}
