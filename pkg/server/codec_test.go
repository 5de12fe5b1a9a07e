package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func parse(t *testing.T, raw string, opts ParseOptions) (*Request, error) {
	t.Helper()
	return ReadRequest(bufio.NewReader(strings.NewReader(raw)), opts)
}

func TestReadRequest_Basic(t *testing.T) {
	raw := "GET /docs/index.html?x=1 HTTP/1.1\r\n" +
		"Host: example.com:8080\r\n" +
		"User-Agent: test-agent\r\n" +
		"Referrer: http://example.com/\r\n" +
		"Accept: text/html\r\n" +
		"X-Custom: one\r\n" +
		"x-custom: two\r\n" +
		"this line has no colon\r\n" +
		"\r\n"

	req, err := parse(t, raw, ParseOptions{LocalPort: 8080, RemoteAddr: "10.0.0.1:5555", ID: 3})
	if err != nil {
		t.Fatalf("ReadRequest() error: %v", err)
	}

	checks := []struct {
		name, got, want string
	}{
		{"Method", req.Method(), "GET"},
		{"Path", req.Path(), "/docs/index.html?x=1"},
		{"Proto", req.Proto(), "HTTP/1.1"},
		{"Host", req.Host(), "example.com:8080"},
		{"HostName", req.HostName(), "example.com"},
		{"UserAgent", req.UserAgent(), "test-agent"},
		{"Referer", req.Referer(), "http://example.com/"},
		{"Accept", req.Accept(), "text/html"},
		{"RemoteAddr", req.RemoteAddr(), "10.0.0.1:5555"},
		{"URL", req.URL().String(), "http://example.com:8080/docs/index.html?x=1"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}

	if req.Port() != 8080 || req.ID() != 3 {
		t.Errorf("Port/ID = %d/%d, want 8080/3", req.Port(), req.ID())
	}
	if got := req.Header().Values("X-Custom"); len(got) != 2 || got[1] != "two" {
		t.Errorf("X-Custom = %v, want [one two]", got)
	}
	if len(req.Header()) != 5 {
		t.Errorf("header count = %d, want 5", len(req.Header()))
	}
	if req.HasBody() {
		t.Error("HasBody should be false without Content-Length")
	}
}

func TestReadRequest_URLWithoutHost(t *testing.T) {
	req, err := parse(t, "GET /a HTTP/1.1\r\n\r\n", ParseOptions{LocalPort: 81})
	if err != nil {
		t.Fatalf("ReadRequest() error: %v", err)
	}
	if got := req.URL().String(); got != "http://0.0.0.0:81/a" {
		t.Errorf("URL = %q", got)
	}
}

func TestReadRequest_MalformedRequestLine(t *testing.T) {
	for _, line := range []string{"GET /", "GET / HTTP/1.1 extra", "GET", "/ HTTP/1.1"} {
		t.Run(line, func(t *testing.T) {
			_, err := parse(t, line+"\r\n\r\n", ParseOptions{})
			if !errors.Is(err, ErrMalformedRequestLine) {
				t.Errorf("err = %v, want ErrMalformedRequestLine", err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Op != "request line" {
				t.Errorf("err = %v, want *ParseError for request line", err)
			}
		})
	}
}

func TestReadRequest_Empty(t *testing.T) {
	_, err := parse(t, "", ParseOptions{})
	if !errors.Is(err, ErrEmptyRequest) {
		t.Errorf("err = %v, want ErrEmptyRequest", err)
	}
}

func TestReadRequest_LineTooLong(t *testing.T) {
	raw := "GET /" + strings.Repeat("a", 100) + " HTTP/1.1\r\n\r\n"
	_, err := parse(t, raw, ParseOptions{MaxLineBytes: 32})
	if !errors.Is(err, ErrLineTooLong) {
		t.Errorf("err = %v, want ErrLineTooLong", err)
	}
}

func TestReadRequest_HeadersUntilEOF(t *testing.T) {
	req, err := parse(t, "GET / HTTP/1.0\nHost: a", ParseOptions{})
	if err != nil {
		t.Fatalf("ReadRequest() error: %v", err)
	}
	if req.Host() != "a" {
		t.Errorf("Host = %q, want a", req.Host())
	}
}

func TestReadRequest_Body(t *testing.T) {
	tests := []struct {
		name       string
		headers    string
		body       string
		opts       ParseOptions
		want       string
		wantLength bool
	}{
		{
			name:       "utf8 bytes",
			headers:    "Content-Length: 6\r\n",
			body:       "héllo",
			want:       "héllo",
			wantLength: true,
		},
		{
			name:       "bom stripped",
			headers:    "Content-Length: 5\r\n",
			body:       "\xEF\xBB\xBFhi",
			want:       "hi",
			wantLength: true,
		},
		{
			name:       "latin1 charset",
			headers:    "Content-Type: text/plain; charset=ISO-8859-1\r\nContent-Length: 4\r\n",
			body:       "caf\xe9",
			want:       "café",
			wantLength: true,
		},
		{
			name:       "unknown charset falls back to utf8",
			headers:    "Content-Type: text/plain; charset=x-nope\r\nContent-Length: 2\r\n",
			body:       "ok",
			want:       "ok",
			wantLength: true,
		},
		{
			name:       "short read keeps partial body",
			headers:    "Content-Length: 10\r\n",
			body:       "abc",
			want:       "abc",
			wantLength: true,
		},
		{
			name:       "extra bytes ignored",
			headers:    "Content-Length: 2\r\n",
			body:       "abcdef",
			want:       "ab",
			wantLength: true,
		},
		{
			name:    "unparsable length",
			headers: "Content-Length: lots\r\n",
			body:    "abc",
			want:    "",
		},
		{
			name:    "negative length",
			headers: "Content-Length: -1\r\n",
			body:    "abc",
			want:    "",
		},
		{
			name:       "over limit not read",
			headers:    "Content-Length: 3\r\n",
			body:       "abc",
			opts:       ParseOptions{MaxBodyBytes: 2},
			want:       "",
			wantLength: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := "POST /echo HTTP/1.1\r\n" + tt.headers + "\r\n" + tt.body
			req, err := parse(t, raw, tt.opts)
			if err != nil {
				t.Fatalf("ReadRequest() error: %v", err)
			}
			if req.Body() != tt.want {
				t.Errorf("Body = %q, want %q", req.Body(), tt.want)
			}
			if _, ok := req.ContentLength(); ok != tt.wantLength {
				t.Errorf("ContentLength present = %v, want %v", ok, tt.wantLength)
			}
		})
	}
}

func writeResponse(t *testing.T, resp *Response) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	err := WriteResponse(context.Background(), bw, resp, func() {})
	return buf.String(), err
}

func TestWriteResponse_Buffered(t *testing.T) {
	resp := newResponse("text/plain", BufferedBody{Content: []byte("hello")}, []ResponseOption{
		WithHeader("X-B", "2"),
		WithHeader("x-a", "1"),
		WithHeader("Content-Length", "99"),
		WithHeader("Connection", "keep-alive"),
		WithHeader("content-type", "text/html"),
	})

	got, err := writeResponse(t, resp)
	if err != nil {
		t.Fatalf("WriteResponse() error: %v", err)
	}
	want := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/plain\r\n" +
		"Connection: close\r\n" +
		"X-A: 1\r\n" +
		"X-B: 2\r\n" +
		"Content-Length: 5\r\n" +
		"\r\n" +
		"hello"
	if got != want {
		t.Errorf("wire =\n%q\nwant\n%q", got, want)
	}
}

func TestWriteResponse_HeaderLineBreaksNeutralised(t *testing.T) {
	resp := newResponse("text/plain\r\nX-Type: 1", BufferedBody{Content: []byte("ok")}, []ResponseOption{
		WithStatus(200, "OK\r\nX-Reason: 1"),
		WithHeader("X-Echo", "a\r\nSet-Cookie: evil=1"),
		WithHeader("Bad Key", "v"),
		WithHeader("X-Bad\r\nSet-Cookie", "evil=2"),
	})

	got, err := writeResponse(t, resp)
	if err != nil {
		t.Fatalf("WriteResponse() error: %v", err)
	}
	head, _, _ := strings.Cut(got, "\r\n\r\n")
	for _, line := range strings.Split(head, "\r\n") {
		name, _, _ := strings.Cut(line, ":")
		switch name {
		case "Set-Cookie", "X-Type", "X-Reason", "Bad Key":
			t.Errorf("unexpected header line %q in %q", line, head)
		}
	}
	if strings.ContainsAny(strings.ReplaceAll(head, "\r\n", ""), "\r\n") {
		t.Errorf("bare line break in head %q", head)
	}
	if !strings.Contains(head, "X-Echo: a  Set-Cookie: evil=1\r\n") {
		t.Errorf("X-Echo not folded onto one line: %q", head)
	}
	if !strings.HasPrefix(head, "HTTP/1.1 200 OK  X-Reason: 1\r\n") {
		t.Errorf("status line = %q", head)
	}
}

func TestWriteResponse_Status(t *testing.T) {
	resp := newResponse("text/plain", BufferedBody{}, []ResponseOption{WithStatus(404, "NOT FOUND")})
	got, err := writeResponse(t, resp)
	if err != nil {
		t.Fatalf("WriteResponse() error: %v", err)
	}
	if !strings.HasPrefix(got, "HTTP/1.1 404 NOT FOUND\r\n") {
		t.Errorf("status line = %q", got)
	}
	if !strings.HasSuffix(got, "Content-Length: 0\r\n\r\n") {
		t.Errorf("wire = %q, want empty body with length 0", got)
	}

	defaulted := newResponse("text/plain", nil, []ResponseOption{WithStatus(418, "")})
	if defaulted.Reason != "I'm a teapot" {
		t.Errorf("Reason = %q", defaulted.Reason)
	}
}

type trackingCloser struct {
	io.Reader
	closed int
}

func (c *trackingCloser) Close() error {
	c.closed++
	return nil
}

func TestWriteResponse_StreamKnownLength(t *testing.T) {
	rc := &trackingCloser{Reader: strings.NewReader("abcdef")}
	resp := newResponse("application/octet-stream", StreamBody{
		Open: func(context.Context) (io.ReadCloser, int64, error) { return rc, 3, nil },
	}, nil)

	got, err := writeResponse(t, resp)
	if err != nil {
		t.Fatalf("WriteResponse() error: %v", err)
	}
	if !strings.Contains(got, "Content-Length: 3\r\n") || !strings.HasSuffix(got, "\r\n\r\nabc") {
		t.Errorf("wire = %q", got)
	}
	if rc.closed != 1 {
		t.Errorf("stream closed %d times, want 1", rc.closed)
	}
}

func TestWriteResponse_StreamClosedOnFailure(t *testing.T) {
	t.Run("sink fails", func(t *testing.T) {
		rc := &trackingCloser{Reader: strings.NewReader("abcdef")}
		resp := newResponse("text/plain", StreamBody{
			Open: func(context.Context) (io.ReadCloser, int64, error) { return rc, 6, nil },
		}, nil)

		err := WriteResponse(context.Background(), bufio.NewWriter(failingWriter{}), resp, func() {})
		if !errors.Is(err, io.ErrClosedPipe) {
			t.Errorf("err = %v, want ErrClosedPipe", err)
		}
		if rc.closed != 1 {
			t.Errorf("stream closed %d times, want 1", rc.closed)
		}
	})

	t.Run("cancelled mid-copy", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		rc := &trackingCloser{Reader: &cancellingReader{data: strings.Repeat("x", 64), cancel: cancel}}
		resp := newResponse("text/plain", StreamBody{
			Open: func(context.Context) (io.ReadCloser, int64, error) { return rc, 64, nil },
		}, nil)

		var buf bytes.Buffer
		err := WriteResponse(ctx, bufio.NewWriter(&buf), resp, func() {})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
		if rc.closed != 1 {
			t.Errorf("stream closed %d times, want 1", rc.closed)
		}
		if strings.Contains(buf.String(), strings.Repeat("x", 64)) {
			t.Errorf("copy should stop after cancellation: %q", buf.String())
		}
	})
}

// cancellingReader hands out 8 bytes per read and cancels after the first.
type cancellingReader struct {
	data   string
	cancel context.CancelFunc
}

func (r *cancellingReader) Read(p []byte) (int, error) {
	if r.data == "" {
		return 0, io.EOF
	}
	n := copy(p, r.data[:min(8, len(r.data))])
	r.data = r.data[n:]
	r.cancel()
	return n, nil
}

func TestWriteResponse_StreamUnknownLength(t *testing.T) {
	rc := &trackingCloser{Reader: strings.NewReader("abcdef")}
	resp := newResponse("text/plain", StreamBody{
		Open: func(context.Context) (io.ReadCloser, int64, error) { return rc, -1, nil },
	}, nil)

	got, err := writeResponse(t, resp)
	if err != nil {
		t.Fatalf("WriteResponse() error: %v", err)
	}
	if strings.Contains(got, "Content-Length") {
		t.Errorf("close-delimited stream must not carry Content-Length: %q", got)
	}
	if !strings.HasSuffix(got, "abcdef") || rc.closed != 1 {
		t.Errorf("wire = %q, closed = %d", got, rc.closed)
	}
}

func TestWriteResponse_StreamOpenError(t *testing.T) {
	cause := errors.New("gone")
	resp := newResponse("text/plain", StreamBody{
		Open: func(context.Context) (io.ReadCloser, int64, error) { return nil, 0, cause },
	}, nil)

	got, err := writeResponse(t, resp)
	if !errors.Is(err, cause) {
		t.Errorf("err = %v, want %v", err, cause)
	}
	if got != "" {
		t.Errorf("nothing should be written, got %q", got)
	}

	nilBody := newResponse("text/plain", StreamBody{
		Open: func(context.Context) (io.ReadCloser, int64, error) { return nil, 0, nil },
	}, nil)
	if _, err := writeResponse(t, nilBody); !errors.Is(err, ErrNilStream) {
		t.Errorf("err = %v, want ErrNilStream", err)
	}
}

func TestWriteResponse_Streaming(t *testing.T) {
	resp := newResponse("text/event-stream", StreamingBody{
		Write: func(ctx context.Context, w *StreamWriter) error {
			w.SetNewline("\n")
			if err := w.WriteLine("data: 1"); err != nil {
				return err
			}
			return w.WriteLine("")
		},
	}, nil)

	got, err := writeResponse(t, resp)
	if err != nil {
		t.Fatalf("WriteResponse() error: %v", err)
	}
	want := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/event-stream\r\n" +
		"Connection: close\r\n" +
		"\r\n" +
		"data: 1\n\n"
	if got != want {
		t.Errorf("wire =\n%q\nwant\n%q", got, want)
	}
}

func TestWriteResponse_NilResponse(t *testing.T) {
	if _, err := writeResponse(t, nil); !errors.Is(err, ErrNoResponse) {
		t.Errorf("err = %v, want ErrNoResponse", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestStreamWriter_FailureCancels(t *testing.T) {
	cancelled := 0
	w := NewStreamWriter(failingWriter{}, func() { cancelled++ })

	if _, err := w.WriteString("buffered"); err != nil {
		t.Fatalf("buffered write should not fail: %v", err)
	}
	if err := w.Flush(); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("Flush() error = %v, want ErrClosedPipe", err)
	}
	if err := w.WriteLine("again"); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("write after failure = %v, want sticky error", err)
	}
	if cancelled != 1 {
		t.Errorf("cancel called %d times, want 1", cancelled)
	}
	if w.Written() != int64(len("buffered")) {
		t.Errorf("Written = %d", w.Written())
	}
}
