package server

import (
	"log/slog"
	"net"
	"time"
)

// Config holds configuration for the Server.
type Config struct {
	// Listening

	// Port is the port to listen on. 0 lets the OS choose an IPv4 port, which
	// is then reused for IPv6.
	// Default: 0.
	Port int

	// BindAddress4 is the IPv4 address to bind.
	// Default: 0.0.0.0.
	BindAddress4 net.IP

	// BindAddress6 is the IPv6 address to bind.
	// Default: ::.
	BindAddress6 net.IP

	// Hostname4 is the host used to compose the public IPv4 root URI.
	// Default: "127.0.0.1".
	Hostname4 string

	// Hostname6 is the host used to compose the public IPv6 root URI.
	// Default: "::1".
	Hostname6 string

	// RequireIPv6 makes Start fail when the IPv6 listener cannot be bound.
	// When false, an IPv6 bind failure is logged and Start returns a nil IPv6 URI.
	// Default: false.
	RequireIPv6 bool

	// Limits

	// ReadTimeout bounds the time spent reading the request head and body.
	// 0 means no timeout.
	// Default: 0.
	ReadTimeout time.Duration

	// MaxLineBytes bounds the request line and each header line.
	// Default: 64KB.
	MaxLineBytes int

	// MaxBodyBytes bounds the request body read from the wire. Requests that
	// declare a larger Content-Length are dispatched without a body.
	// Default: 64MB.
	MaxBodyBytes int64

	// TrustedProxies lists the proxy IPs and CIDRs whose Forwarded and
	// X-Forwarded-For headers Request.ClientIP honours. Invalid entries are
	// logged and skipped.
	// Default: none.
	TrustedProxies []string

	// Logging

	// LogRequests logs every request and response at Info level.
	// Default: true.
	LogRequests bool

	// Logger is the structured logger.
	// Default: slog.Default().With("component", "server").
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:         0,
		BindAddress4: net.IPv4(0, 0, 0, 0),
		BindAddress6: make(net.IP, net.IPv6len),
		Hostname4:    "127.0.0.1",
		Hostname6:    "::1",
		MaxLineBytes: DefaultMaxLineBytes,
		MaxBodyBytes: 64 * 1024 * 1024, // 64MB
		LogRequests:  true,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if c.BindAddress4 != nil {
		clone.BindAddress4 = append(net.IP(nil), c.BindAddress4...)
	}
	if c.BindAddress6 != nil {
		clone.BindAddress6 = append(net.IP(nil), c.BindAddress6...)
	}
	if c.TrustedProxies != nil {
		clone.TrustedProxies = append([]string(nil), c.TrustedProxies...)
	}
	return &clone
}

// WithPort sets the port and returns the config for chaining.
func (c *Config) WithPort(port int) *Config {
	c.Port = port
	return c
}

// WithLogger sets the logger and returns the config for chaining.
func (c *Config) WithLogger(logger *slog.Logger) *Config {
	c.Logger = logger
	return c
}

// WithReadTimeout sets the read timeout and returns the config for chaining.
func (c *Config) WithReadTimeout(d time.Duration) *Config {
	c.ReadTimeout = d
	return c
}

// WithLogRequests toggles per-request logging and returns the config for chaining.
func (c *Config) WithLogRequests(enabled bool) *Config {
	c.LogRequests = enabled
	return c
}

// fillDefaults sets unset fields from DefaultConfig. LogRequests is left as is.
func (c *Config) fillDefaults() {
	defaults := DefaultConfig()
	if c.BindAddress4 == nil {
		c.BindAddress4 = defaults.BindAddress4
	}
	if c.BindAddress6 == nil {
		c.BindAddress6 = defaults.BindAddress6
	}
	if c.Hostname4 == "" {
		c.Hostname4 = defaults.Hostname4
	}
	if c.Hostname6 == "" {
		c.Hostname6 = defaults.Hostname6
	}
	if c.MaxLineBytes == 0 {
		c.MaxLineBytes = defaults.MaxLineBytes
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if c.Logger == nil {
		c.Logger = slog.Default().With("component", "server")
	}
}
