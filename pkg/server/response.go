package server

import (
	"context"
	"io"
	"net/http"
)

// Response is the response intent a handler attaches to a Request.
//
// Exactly one Body variant carries the payload; the variant selects how the
// message body is delimited on the wire.
type Response struct {
	// ContentType is always emitted as the Content-Type header.
	ContentType string

	// StatusCode is the HTTP status code. Default: 200.
	StatusCode int

	// Reason is the reason phrase of the status line.
	// Default: http.StatusText(StatusCode).
	Reason string

	// Header holds extra response headers. Content-Type, Connection and
	// Content-Length entries are ignored when the response is written.
	Header Header

	// Body is one of BufferedBody, StreamBody or StreamingBody.
	Body Body
}

// Body is the payload of a Response. It is implemented by BufferedBody,
// StreamBody and StreamingBody only.
type Body interface {
	bodyKind() string
}

// BufferedBody is a payload known in full. It is written with a Content-Length
// computed from its byte length.
type BufferedBody struct {
	Content []byte
}

func (BufferedBody) bodyKind() string { return "buffered" }

// StreamFactory opens a length-known stream. The returned reader is closed by
// the server on every exit path once the factory has returned successfully.
type StreamFactory func(ctx context.Context) (body io.ReadCloser, length int64, err error)

// StreamBody is a payload read from a stream whose length is known once it is
// opened. Content-Length is taken from the reported length.
type StreamBody struct {
	Open StreamFactory
}

func (StreamBody) bodyKind() string { return "stream" }

// StreamingFunc produces a close-delimited body. It may write and flush
// incrementally for as long as it likes; the body ends when it returns and the
// connection closes. ctx is cancelled when the client disconnects or the server
// shuts down.
type StreamingFunc func(ctx context.Context, w *StreamWriter) error

// StreamingBody is a close-delimited payload with no declared length.
type StreamingBody struct {
	Write StreamingFunc
}

func (StreamingBody) bodyKind() string { return "streaming" }

// ResponseOption customises a Response when it is set on a Request.
type ResponseOption func(*Response)

// WithStatus sets the status code and reason phrase. An empty reason falls back
// to the standard text for code.
func WithStatus(code int, reason string) ResponseOption {
	return func(r *Response) {
		r.StatusCode = code
		r.Reason = reason
	}
}

// WithHeader adds values for key to the response headers.
func WithHeader(key string, values ...string) ResponseOption {
	return func(r *Response) {
		if r.Header == nil {
			r.Header = make(Header)
		}
		for _, v := range values {
			r.Header.Add(key, v)
		}
	}
}

// WithHeaders merges h into the response headers.
func WithHeaders(h Header) ResponseOption {
	return func(r *Response) {
		if len(h) == 0 {
			return
		}
		if r.Header == nil {
			r.Header = make(Header, len(h))
		}
		for k, vs := range h {
			for _, v := range vs {
				r.Header.Add(k, v)
			}
		}
	}
}

func newResponse(contentType string, body Body, opts []ResponseOption) *Response {
	resp := &Response{
		ContentType: contentType,
		StatusCode:  http.StatusOK,
		Body:        body,
	}
	for _, opt := range opts {
		opt(resp)
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	if resp.Reason == "" {
		resp.Reason = reasonPhrase(resp.StatusCode)
	}
	return resp
}

func reasonPhrase(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Unknown"
}
