package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"

	"github.com/yllibed/httpserver/pkg/server"
)

// JSONFunc computes the result of a JSON endpoint. A status of 0 means 200.
type JSONFunc[T any] func(ctx context.Context, relativePath string, query url.Values) (result T, status int, err error)

// JSON serves the result of a function as indented JSON on one method and
// path. Failures are logged and answered with 500.
type JSON[T any] struct {
	method string
	path   string
	fn     JSONFunc[T]
	logger *slog.Logger
}

// NewJSON returns a JSON handler. A nil logger uses slog.Default().
func NewJSON[T any](method, path string, fn JSONFunc[T], logger *slog.Logger) *JSON[T] {
	if logger == nil {
		logger = slog.Default().With("component", "json")
	}
	return &JSON[T]{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		fn:     fn,
		logger: logger,
	}
}

// HandleRequest implements server.Handler.
func (j *JSON[T]) HandleRequest(ctx context.Context, req *server.Request, relativePath string) error {
	if !strings.EqualFold(req.Method(), j.method) {
		return nil
	}
	p, rawQuery, _ := strings.Cut(relativePath, "?")
	if !strings.EqualFold(p, j.path) {
		return nil
	}

	result, status, err := j.fn(ctx, relativePath, parseQuery(rawQuery))
	if err != nil {
		j.fail(req, relativePath, err)
		return nil
	}
	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		j.fail(req, relativePath, err)
		return nil
	}
	if status == 0 {
		status = 200
	}
	req.SetBytesResponse("application/json", body, server.WithStatus(status, ""))
	return nil
}

func (j *JSON[T]) fail(req *server.Request, relativePath string, err error) {
	j.logger.Error("error processing request", "path", relativePath, "error", err)
	req.SetResponse("text/plain", "Error processing request", server.WithStatus(500, "ERROR"))
}

// String identifies the handler in logs.
func (j *JSON[T]) String() string { return "json " + j.method + " " + j.path }

// parseQuery splits a raw query into values. Pairs without "=" are dropped;
// values are percent-decoded, keys are kept as sent and "+" is not a space.
func parseQuery(raw string) url.Values {
	values := make(url.Values)
	if raw == "" {
		return values
	}
	for _, pair := range strings.Split(raw, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if v, err := url.PathUnescape(value); err == nil {
			value = v
		}
		values[key] = append(values[key], value)
	}
	return values
}
