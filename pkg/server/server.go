package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yllibed/httpserver/internal/txn"
)

// Server is an embeddable HTTP/1.1 server. Each accepted connection carries
// exactly one request/response exchange and is closed afterwards.
type Server struct {
	// Configuration
	config *Config

	// Handler pipeline, in registration order
	pipeline *Pipeline

	// In-flight connections, keyed by connection ID
	conns      *txn.Cell[*txn.Set[uint64, *conn]]
	nextConnID atomic.Uint64

	// Server-wide cancellation
	ctx    context.Context
	cancel context.CancelFunc

	// Start state, guarded by mu
	mu        sync.Mutex
	started   bool
	closed    bool
	uri4      *url.URL
	uri6      *url.URL
	startErr  error
	listeners []net.Listener
	loops     sync.WaitGroup

	metrics *MetricsCollector
	trusted *TrustedProxies

	// Logger
	logger *slog.Logger
}

// New creates a new Server with the given configuration. A nil config uses
// DefaultConfig().
func New(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	} else {
		config = config.Clone()
	}
	config.fillDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:   config,
		pipeline: NewPipeline(config.Logger),
		conns:    txn.NewCell(txn.NewSet[uint64, *conn]()),
		ctx:      ctx,
		cancel:   cancel,
		metrics:  NewMetricsCollector(),
		logger:   config.Logger,
	}
	s.trusted = NewTrustedProxies(config.TrustedProxies, config.Logger)
	return s
}

// Config returns a copy of the server configuration.
func (s *Server) Config() *Config {
	return s.config.Clone()
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// RegisterHandler appends h to the root pipeline. All requests pass through
// the handlers in registration order until one sets a response; when none
// does, a 404 is sent.
//
// Closing the returned Registration unregisters h and closes it if it
// implements io.Closer.
func (s *Server) RegisterHandler(h Handler) *Registration {
	return s.pipeline.Register(h)
}

// Pipeline returns the root handler pipeline.
func (s *Server) Pipeline() *Pipeline {
	return s.pipeline
}

// Start binds the IPv4 and IPv6 listeners and starts accepting connections.
// It returns the root URIs of the server. Start is idempotent: later calls
// return the same URIs without rebinding.
func (s *Server) Start() (uri4, uri6 *url.URL, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, ErrServerClosed
	}
	if s.started {
		return s.uri4, s.uri6, s.startErr
	}
	s.started = true

	s.uri4, s.uri6, s.startErr = s.listen()
	return s.uri4, s.uri6, s.startErr
}

func (s *Server) listen() (*url.URL, *url.URL, error) {
	cfg := s.config

	ln4, err := net.ListenTCP("tcp4", &net.TCPAddr{IP: cfg.BindAddress4, Port: cfg.Port})
	if err != nil {
		return nil, nil, fmt.Errorf("server: listen ipv4: %w", err)
	}

	// Tentatively use the same port for IPv6.
	port4 := ln4.Addr().(*net.TCPAddr).Port
	port6 := cfg.Port
	if port6 == 0 {
		port6 = port4
	}

	uri4 := &url.URL{Scheme: "http", Host: net.JoinHostPort(cfg.Hostname4, strconv.Itoa(port4)), Path: "/"}
	s.listeners = append(s.listeners, ln4)
	s.serve(ln4, port4)
	s.logger.Info("web server available", "family", "ipv4", "uri", uri4.String())

	var uri6 *url.URL
	ln6, err := net.ListenTCP("tcp6", &net.TCPAddr{IP: cfg.BindAddress6, Port: port6})
	if err != nil {
		if cfg.RequireIPv6 {
			return uri4, nil, fmt.Errorf("server: listen ipv6: %w", err)
		}
		s.logger.Warn("ipv6 listener unavailable", "port", port6, "error", err)
		return uri4, nil, nil
	}
	uri6 = &url.URL{Scheme: "http", Host: net.JoinHostPort(cfg.Hostname6, strconv.Itoa(port6)), Path: "/"}
	s.listeners = append(s.listeners, ln6)
	s.serve(ln6, port6)
	s.logger.Info("web server available", "family", "ipv6", "uri", uri6.String())

	return uri4, uri6, nil
}

func (s *Server) serve(ln net.Listener, port int) {
	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		s.acceptLoop(ln, port)
	}()
}

// acceptLoop accepts connections until the server is closed. Accept errors are
// logged and never end the loop while the server is running.
func (s *Server) acceptLoop(ln net.Listener, port int) {
	var backoff time.Duration
	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			s.logger.Error("connection loop error", "addr", ln.Addr().String(), "error", err)
			select {
			case <-time.After(backoff):
			case <-s.ctx.Done():
				return
			}
			continue
		}
		backoff = 0

		c := s.newConn(nc, port)
		s.conns.Update(func(set *txn.Set[uint64, *conn]) *txn.Set[uint64, *conn] {
			return set.Put(c.id, c)
		})
		s.metrics.connectionsAccepted.Add(1)
		go c.serve()
	}
}

// dispatch runs the root pipeline and synthesizes a 404 when no handler
// answered.
func (s *Server) dispatch(ctx context.Context, req *Request) {
	s.metrics.requestsHandled.Add(1)
	ctx = WithErrorHook(ctx, s.metrics.RecordHandlerError)
	if s.pipeline.Dispatch(ctx, req, req.Path()) {
		return
	}
	s.metrics.notFound.Add(1)
	req.SetResponse("text/plain", fmt.Sprintf("Requested address %s not found.", req.URL()),
		WithStatus(404, "NOT FOUND"))
}

// forget removes c from the in-flight set.
func (s *Server) forget(c *conn) {
	s.conns.Update(func(set *txn.Set[uint64, *conn]) *txn.Set[uint64, *conn] {
		return set.Delete(c.id)
	})
	s.metrics.connectionsClosed.Add(1)
}

// ActiveConnections returns the number of in-flight connections.
func (s *Server) ActiveConnections() int {
	return s.conns.Load().Len()
}

// Close stops accepting connections and cancels every in-flight connection,
// which closes their sockets. It does not wait for handlers to return.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	s.cancel()

	var errs []error
	for _, ln := range listeners {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	s.loops.Wait()
	return errors.Join(errs...)
}

// Shutdown closes the server and waits until every in-flight connection has
// finished or ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Close()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for s.ActiveConnections() > 0 {
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-ticker.C:
		}
	}
	return err
}
