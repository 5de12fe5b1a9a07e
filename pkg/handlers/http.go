package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/yllibed/httpserver/pkg/server"
)

// HTTP runs a net/http handler, such as a chi router, inside the pipeline.
// The handler output is buffered and sent as a length-known stream.
type HTTP struct {
	handler     http.Handler
	fallThrough bool
	name        string
}

// HTTPOption configures an HTTP bridge.
type HTTPOption func(*HTTP)

// WithFallThrough leaves requests the wrapped handler answers with 404 to
// later pipeline handlers.
func WithFallThrough() HTTPOption {
	return func(h *HTTP) { h.fallThrough = true }
}

// WithName sets the handler name used in logs.
func WithName(name string) HTTPOption {
	return func(h *HTTP) { h.name = name }
}

// NewHTTP wraps h.
func NewHTTP(h http.Handler, opts ...HTTPOption) *HTTP {
	b := &HTTP{handler: h, name: "http"}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// HandleRequest implements server.Handler.
func (b *HTTP) HandleRequest(ctx context.Context, req *server.Request, relativePath string) error {
	hr, err := b.newRequest(ctx, req, relativePath)
	if err != nil {
		return err
	}

	rw := newBufferedResponseWriter()
	b.handler.ServeHTTP(rw, hr)

	status := rw.statusCode()
	if b.fallThrough && status == http.StatusNotFound {
		return nil
	}

	body := rw.body.Bytes()
	contentType := rw.header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	header := make(server.Header, len(rw.header))
	for k, vs := range rw.header {
		switch http.CanonicalHeaderKey(k) {
		case "Content-Type", "Content-Length", "Connection", "Transfer-Encoding":
			continue
		}
		for _, v := range vs {
			header.Add(k, v)
		}
	}

	req.SetStreamResponse(contentType, func(context.Context) (io.ReadCloser, int64, error) {
		return io.NopCloser(bytes.NewReader(body)), int64(len(body)), nil
	}, server.WithStatus(status, ""), server.WithHeaders(header))
	return nil
}

// newRequest converts req to a net/http request whose path is relativePath.
func (b *HTTP) newRequest(ctx context.Context, req *server.Request, relativePath string) (*http.Request, error) {
	host := req.Host()
	if host == "" {
		host = req.URL().Host
	}
	target := "http://" + host + relativePath

	hr, err := http.NewRequestWithContext(ctx, req.Method(), target, strings.NewReader(req.Body()))
	if err != nil {
		return nil, fmt.Errorf("handlers: build http request: %w", err)
	}
	for k, vs := range req.Header() {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}
	hr.Host = host
	hr.RemoteAddr = req.RemoteAddr()
	hr.RequestURI = relativePath
	hr.ContentLength = int64(len(req.Body()))
	hr.Proto = req.Proto()
	if major, minor, ok := http.ParseHTTPVersion(req.Proto()); ok {
		hr.ProtoMajor, hr.ProtoMinor = major, minor
	}
	return hr, nil
}

// String identifies the handler in logs.
func (b *HTTP) String() string { return b.name }

// bufferedResponseWriter collects a net/http response in memory.
type bufferedResponseWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponseWriter() *bufferedResponseWriter {
	return &bufferedResponseWriter{header: make(http.Header)}
}

func (w *bufferedResponseWriter) Header() http.Header { return w.header }

func (w *bufferedResponseWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *bufferedResponseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *bufferedResponseWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
