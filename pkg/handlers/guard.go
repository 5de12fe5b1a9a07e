package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yllibed/httpserver/pkg/server"
)

// NoLimit disables a GuardConfig limit. Zero is an enforced limit.
const NoLimit = -1

// GuardConfig holds the limits enforced by Guard. A negative limit disables
// its check; an empty list disables its allow-list. Start from
// DefaultGuardConfig: a zero limit rejects anything above zero.
type GuardConfig struct {
	// MaxURLLength bounds the request target, query included.
	// Default: 2048.
	MaxURLLength int

	// MaxHeaderCount bounds the number of distinct header names.
	// Default: 100.
	MaxHeaderCount int

	// MaxHeaderBytes bounds the cumulative length of header names and values.
	// Default: 32KB.
	MaxHeaderBytes int

	// MaxBodyBytes bounds the declared Content-Length.
	// Default: 10MB.
	MaxBodyBytes int64

	// AllowedMethods is the method allow-list, compared without case.
	// Default: GET, POST.
	AllowedMethods []string

	// AllowedHosts is the Host allow-list. An entry matches either the full
	// Host header or the host name without port. Empty allows any host.
	// Default: empty.
	AllowedHosts []string

	// RequireHost rejects requests without a Host header.
	// Default: true.
	RequireHost bool

	// Logger for rejections.
	// Default: slog.Default().With("component", "guard").
	Logger *slog.Logger
}

// DefaultGuardConfig returns a GuardConfig with the default limits.
func DefaultGuardConfig() *GuardConfig {
	return &GuardConfig{
		MaxURLLength:   2048,
		MaxHeaderCount: 100,
		MaxHeaderBytes: 32 * 1024,        // 32KB
		MaxBodyBytes:   10 * 1024 * 1024, // 10MB
		AllowedMethods: []string{"GET", "POST"},
		RequireHost:    true,
	}
}

// Guard rejects structurally unacceptable requests before they reach the
// handlers registered after it. Checks run in a fixed order and the first
// failure answers the request:
//
//  1. method allow-list: 405
//  2. missing Host: 400; Host not allowed: 403
//  3. URL length: 414
//  4. header count: 431
//  5. header size: 431
//  6. declared body size: 413
//
// A request that passes is forwarded to the inner handler, if any, and
// otherwise left for the rest of the pipeline.
type Guard struct {
	config  GuardConfig
	methods map[string]struct{}
	hosts   map[string]struct{}
	inner   server.Handler
	logger  *slog.Logger
}

// NewGuard creates a Guard. A nil config uses DefaultGuardConfig(); inner may
// be nil.
func NewGuard(config *GuardConfig, inner server.Handler) *Guard {
	if config == nil {
		config = DefaultGuardConfig()
	}
	g := &Guard{
		config: *config,
		inner:  inner,
		logger: config.Logger,
	}
	if g.logger == nil {
		g.logger = slog.Default().With("component", "guard")
	}
	if len(config.AllowedMethods) > 0 {
		g.methods = make(map[string]struct{}, len(config.AllowedMethods))
		for _, m := range config.AllowedMethods {
			g.methods[strings.ToUpper(m)] = struct{}{}
		}
	}
	if len(config.AllowedHosts) > 0 {
		g.hosts = make(map[string]struct{}, len(config.AllowedHosts))
		for _, h := range config.AllowedHosts {
			g.hosts[strings.ToLower(h)] = struct{}{}
		}
	}
	return g
}

// HandleRequest implements server.Handler.
func (g *Guard) HandleRequest(ctx context.Context, req *server.Request, relativePath string) error {
	if ok := g.check(req); !ok {
		return nil
	}
	if g.inner != nil {
		return g.inner.HandleRequest(ctx, req, relativePath)
	}
	return nil
}

func (g *Guard) check(req *server.Request) bool {
	cfg := &g.config

	if g.methods != nil {
		if _, ok := g.methods[strings.ToUpper(req.Method())]; !ok {
			return g.reject(req, 405, "METHOD NOT ALLOWED", fmt.Sprintf("Method '%s' not allowed", req.Method()))
		}
	}

	host := strings.TrimSpace(req.Host())
	if cfg.RequireHost && host == "" {
		return g.reject(req, 400, "BAD REQUEST", "Missing Host header")
	}
	if g.hosts != nil && host != "" {
		_, full := g.hosts[strings.ToLower(host)]
		_, name := g.hosts[strings.ToLower(req.HostName())]
		if !full && !(name && req.HostName() != "") {
			return g.reject(req, 403, "FORBIDDEN", "Host not allowed")
		}
	}

	if cfg.MaxURLLength >= 0 && len(req.Path()) > cfg.MaxURLLength {
		return g.reject(req, 414, "URI TOO LONG", fmt.Sprintf("URI too long (limit: %d chars)", cfg.MaxURLLength))
	}

	header := req.Header()
	if cfg.MaxHeaderCount >= 0 && len(header) > cfg.MaxHeaderCount {
		return g.reject(req, 431, "REQUEST HEADER FIELDS TOO LARGE", fmt.Sprintf("Too many headers (limit: %d)", cfg.MaxHeaderCount))
	}
	if cfg.MaxHeaderBytes >= 0 && header.Size() > cfg.MaxHeaderBytes {
		return g.reject(req, 431, "REQUEST HEADER FIELDS TOO LARGE", fmt.Sprintf("Headers too large (limit: %d chars)", cfg.MaxHeaderBytes))
	}

	if n, ok := req.ContentLength(); ok && cfg.MaxBodyBytes >= 0 && n > cfg.MaxBodyBytes {
		return g.reject(req, 413, "PAYLOAD TOO LARGE", fmt.Sprintf("Payload too large (limit: %d bytes)", cfg.MaxBodyBytes))
	}

	return true
}

func (g *Guard) reject(req *server.Request, status int, reason, message string) bool {
	g.logger.Debug("request rejected",
		"conn", req.ID(),
		"method", req.Method(),
		"path", req.Path(),
		"status", status,
		"reason", message,
	)
	req.SetResponse("text/plain", message, server.WithStatus(status, reason))
	return false
}

// String identifies the handler in logs.
func (g *Guard) String() string { return "guard" }
