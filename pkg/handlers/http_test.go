package handlers

import (
	"io"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newRouter() chi.Router {
	r := chi.NewRouter()
	r.Get("/hello/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("X-Route", "hello")
		_, _ = io.WriteString(w, "hello "+chi.URLParam(r, "name")+" via "+r.Host)
	})
	r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.Copy(w, r.Body)
	})
	return r
}

func TestHTTP_Router(t *testing.T) {
	h := NewHTTP(newRouter(), WithName("chi"))
	if h.String() != "chi" {
		t.Errorf("String() = %q", h.String())
	}

	resp := handle(t, h, newRequest("GET", "/hello/ada", nil, ""))
	if resp == nil {
		t.Fatal("expected a response")
	}
	if resp.StatusCode != 200 || resp.ContentType != "text/plain" {
		t.Errorf("status = %d, content type = %q", resp.StatusCode, resp.ContentType)
	}
	if resp.Header.Get("X-Route") != "hello" {
		t.Error("handler headers must be forwarded")
	}
	if resp.Header.Has("Content-Type") {
		t.Error("Content-Type must not be duplicated in extra headers")
	}
	if body := bodyOf(t, resp); body != "hello ada via localhost" {
		t.Errorf("body = %q", body)
	}

	resp = handle(t, h, newRequest("POST", "/echo", nil, "payload"))
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
	if body := bodyOf(t, resp); body != "payload" {
		t.Errorf("echo body = %q", body)
	}
}

func TestHTTP_NotFound(t *testing.T) {
	resp := handle(t, NewHTTP(newRouter()), newRequest("GET", "/missing", nil, ""))
	if resp == nil || resp.StatusCode != 404 {
		t.Errorf("without fall-through: %+v, want 404", resp)
	}

	if resp := handle(t, NewHTTP(newRouter(), WithFallThrough()), newRequest("GET", "/missing", nil, "")); resp != nil {
		t.Errorf("with fall-through: got %d, want no response", resp.StatusCode)
	}
}

func TestHTTP_MountedRelativePath(t *testing.T) {
	m := NewMount("/api", quietLogger())
	m.Register(NewHTTP(newRouter()))

	resp := handle(t, m, newRequest("GET", "/api/hello/bob", nil, ""))
	if resp == nil {
		t.Fatal("expected a response")
	}
	if body := bodyOf(t, resp); body != "hello bob via localhost" {
		t.Errorf("body = %q", body)
	}
}
