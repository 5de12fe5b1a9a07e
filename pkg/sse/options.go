package sse

import (
	"log/slog"
	"time"

	"github.com/yllibed/httpserver/pkg/server"
)

// Options configures an SSE session.
type Options struct {
	// HeartbeatInterval is the period of keep-alive comments. 0 disables them.
	// Default: 45s.
	HeartbeatInterval time.Duration

	// HeartbeatComment is the text of keep-alive comments.
	// Default: "keepalive".
	HeartbeatComment string

	// AutoFlush flushes after every event and comment.
	// Default: true.
	AutoFlush bool

	// StatusCode and Reason of the response.
	// Default: 200 OK.
	StatusCode int
	Reason     string

	// Header holds extra response headers. Content-Type and Connection are
	// always controlled by the server. Cache-Control defaults to no-cache.
	Header server.Header

	// Logger for session failures.
	// Default: slog.Default().With("component", "sse").
	Logger *slog.Logger
}

// DefaultOptions returns the default session options.
func DefaultOptions() Options {
	return Options{
		HeartbeatInterval: 45 * time.Second,
		HeartbeatComment:  "keepalive",
		AutoFlush:         true,
		StatusCode:        200,
		Reason:            "OK",
	}
}

// Option configures a session.
type Option func(*Options)

// WithHeartbeat sets the heartbeat interval and comment. An empty comment
// keeps the current one.
func WithHeartbeat(interval time.Duration, comment string) Option {
	return func(o *Options) {
		o.HeartbeatInterval = interval
		if comment != "" {
			o.HeartbeatComment = comment
		}
	}
}

// WithAutoFlush toggles flushing after every write.
func WithAutoFlush(enabled bool) Option {
	return func(o *Options) {
		o.AutoFlush = enabled
	}
}

// WithStatus sets the response status.
func WithStatus(code int, reason string) Option {
	return func(o *Options) {
		o.StatusCode = code
		o.Reason = reason
	}
}

// WithHeader adds a response header.
func WithHeader(key string, values ...string) Option {
	return func(o *Options) {
		if o.Header == nil {
			o.Header = make(server.Header)
		}
		for _, v := range values {
			o.Header.Add(key, v)
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default().With("component", "sse")
	}
	return o
}
