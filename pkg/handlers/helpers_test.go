package handlers

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/url"
	"testing"

	"github.com/yllibed/httpserver/pkg/server"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRequest(method, target string, header server.Header, body string) *server.Request {
	if header == nil {
		header = server.Header{"Host": {"localhost"}}
	}
	return server.NewRequest(method, target, header, body)
}

func handle(t *testing.T, h server.Handler, req *server.Request) *server.Response {
	t.Helper()
	if err := h.HandleRequest(context.Background(), req, req.Path()); err != nil {
		t.Fatalf("HandleRequest() error: %v", err)
	}
	return req.Response()
}

// bodyOf materialises a buffered or length-known stream body.
func bodyOf(t *testing.T, resp *server.Response) string {
	t.Helper()
	switch b := resp.Body.(type) {
	case server.BufferedBody:
		return string(b.Content)
	case server.StreamBody:
		rc, n, err := b.Open(context.Background())
		if err != nil {
			t.Fatalf("Open() error: %v", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if n >= 0 && int64(len(data)) != n {
			t.Errorf("stream length = %d, read %d bytes", n, len(data))
		}
		return string(data)
	case nil:
		return ""
	default:
		t.Fatalf("unexpected body %T", b)
		return ""
	}
}

func startServer(t *testing.T, handlers ...server.Handler) *url.URL {
	t.Helper()
	cfg := server.DefaultConfig().WithLogger(quietLogger())
	cfg.BindAddress4 = net.IPv4(127, 0, 0, 1)
	cfg.BindAddress6 = net.IPv6loopback

	s := server.New(cfg)
	for _, h := range handlers {
		s.RegisterHandler(h)
	}
	u, _, err := s.Start()
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return u
}
