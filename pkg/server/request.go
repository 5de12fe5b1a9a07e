package server

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// Request is one parsed HTTP request. It is created by the connection that
// received it and is immutable once parsing completes, apart from its response
// intent.
//
// The Header map returned by Header must not be modified.
type Request struct {
	id         uint64
	method     string
	path       string
	proto      string
	header     Header
	host       string
	hostName   string
	port       int
	remoteAddr string
	trusted    *TrustedProxies
	referer    string
	userAgent  string
	accept     string

	contentType   string
	contentLength int64
	hasLength     bool
	body          string

	urlOnce sync.Once
	url     *url.URL

	mu   sync.Mutex
	resp *Response
}

// NewRequest builds a request without reading it from a connection. Well-known
// header fields are promoted exactly as the wire parser does. It is intended for
// tests and for handlers that re-dispatch synthetic requests.
func NewRequest(method, target string, header Header, body string) *Request {
	req := &Request{
		method: method,
		path:   target,
		proto:  "HTTP/1.1",
		header: make(Header),
		body:   body,
	}
	for _, k := range header.Keys() {
		for _, v := range header[k] {
			req.header.Add(k, v)
			req.promote(k, v)
		}
	}
	return req
}

// ID returns the connection-scoped request identifier.
func (r *Request) ID() uint64 { return r.id }

// Method returns the request method token (GET, POST, ...).
func (r *Request) Method() string { return r.method }

// Path returns the raw request target: URL-encoded, query string included.
func (r *Request) Path() string { return r.path }

// Proto returns the protocol version string, usually "HTTP/1.1".
func (r *Request) Proto() string { return r.proto }

// Header returns the request header multimap.
func (r *Request) Header() Header { return r.header }

// Host returns the Host header as sent, port included.
func (r *Request) Host() string { return r.host }

// HostName returns the Host header without its port.
func (r *Request) HostName() string { return r.hostName }

// Port returns the local port the connection was accepted on.
func (r *Request) Port() int { return r.port }

// RemoteAddr returns the peer address of the connection.
func (r *Request) RemoteAddr() string { return r.remoteAddr }

// Referer returns the Referer (or Referrer) header.
func (r *Request) Referer() string { return r.referer }

// UserAgent returns the User-Agent header.
func (r *Request) UserAgent() string { return r.userAgent }

// Accept returns the unparsed Accept header.
func (r *Request) Accept() string { return r.accept }

// ContentType returns the unparsed Content-Type header.
func (r *Request) ContentType() string { return r.contentType }

// ContentLength returns the declared body length and whether a well-formed
// Content-Length header was present.
func (r *Request) ContentLength() (int64, bool) { return r.contentLength, r.hasLength }

// Body returns the decoded request body. It is empty unless ContentLength > 0.
func (r *Request) Body() string { return r.body }

// HasBody reports whether the request declares a non-empty body.
func (r *Request) HasBody() bool { return r.hasLength && r.contentLength > 0 }

// Accepts reports whether the Accept header admits mediaType.
func (r *Request) Accepts(mediaType string) bool {
	return AcceptsMediaType(r.accept, mediaType)
}

// URL returns the absolute URL composed from the Host header and the request
// target. When the Host header is missing, the local port is used with the
// unspecified address.
func (r *Request) URL() *url.URL {
	r.urlOnce.Do(func() {
		host := r.host
		if host == "" {
			host = net.JoinHostPort("0.0.0.0", strconv.Itoa(r.port))
		}
		u, err := url.Parse("http://" + host + r.path)
		if err != nil {
			// Fall back to an opaque URL carrying the raw target.
			u = &url.URL{Scheme: "http", Host: host, Opaque: r.path}
		}
		r.url = u
	})
	return r.url
}

// SetResponse sets a buffered response.
//
// Setting a response more than once is allowed; the last call wins.
func (r *Request) SetResponse(contentType, content string, opts ...ResponseOption) {
	r.setResponse(newResponse(contentType, BufferedBody{Content: []byte(content)}, opts))
}

// SetBytesResponse sets a buffered response from raw bytes.
func (r *Request) SetBytesResponse(contentType string, content []byte, opts ...ResponseOption) {
	r.setResponse(newResponse(contentType, BufferedBody{Content: content}, opts))
}

// SetStreamResponse sets a response whose body is read from the stream opened
// by open. The stream is closed once it has been sent, or on failure.
func (r *Request) SetStreamResponse(contentType string, open StreamFactory, opts ...ResponseOption) {
	r.setResponse(newResponse(contentType, StreamBody{Open: open}, opts))
}

// SetStreamingResponse sets a close-delimited streaming response. write is
// invoked after the head has been flushed and may stream indefinitely.
func (r *Request) SetStreamingResponse(contentType string, write StreamingFunc, opts ...ResponseOption) {
	r.setResponse(newResponse(contentType, StreamingBody{Write: write}, opts))
}

func (r *Request) setResponse(resp *Response) {
	r.mu.Lock()
	r.resp = resp
	r.mu.Unlock()
}

// IsResponseSet reports whether a handler has set a response.
func (r *Request) IsResponseSet() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resp != nil
}

// Response returns the response intent, or nil when none was set.
func (r *Request) Response() *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resp
}

// promote copies well-known header fields into their dedicated slots.
func (r *Request) promote(name, value string) {
	value = strings.TrimSpace(value)
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "HOST":
		r.host = value
		r.hostName = hostWithoutPort(value)
	case "REFERER", "REFERRER":
		r.referer = value
	case "USER-AGENT":
		r.userAgent = value
	case "ACCEPT":
		r.accept = value
	case "CONTENT-TYPE":
		r.contentType = value
	case "CONTENT-LENGTH":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n >= 0 {
			r.contentLength = n
			r.hasLength = true
		}
	}
}

func hostWithoutPort(host string) string {
	if strings.HasPrefix(host, "[") {
		if end := strings.IndexByte(host, ']'); end > 0 {
			return host[1:end]
		}
		return host
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		return strings.TrimSpace(host[:i])
	}
	return host
}
