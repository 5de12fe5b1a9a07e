package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yllibed/httpserver/internal/config"
	"github.com/yllibed/httpserver/internal/errors"
	"github.com/yllibed/httpserver/pkg/handlers"
	"github.com/yllibed/httpserver/pkg/middleware"
	"github.com/yllibed/httpserver/pkg/server"
	"github.com/yllibed/httpserver/pkg/sse"
)

// app is an assembled server with its metrics registry.
type app struct {
	server   *server.Server
	registry *prometheus.Registry
	notify   *handlers.Notify
}

// buildApp creates the server described by cfg and registers its handlers in
// serving order: guard, admin, static resources, SSE, notify, bucket, then
// folders. Folders come last because a "/" folder answers every path.
func buildApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := server.New(cfg.EngineConfig().WithLogger(logger.With("component", "server")))
	middleware.NewServerCollector(srv, middleware.WithRegistry(reg))

	metrics := middleware.NewHandlerMetrics(middleware.WithRegistry(reg))
	tracing := middleware.OpenTelemetry()
	register := func(h server.Handler) {
		srv.RegisterHandler(middleware.Chain(h, tracing, metrics.Middleware()))
	}

	a := &app{server: srv, registry: reg}

	if cfg.Guard.Enabled {
		limits := cfg.GuardLimits()
		limits.Logger = logger.With("component", "guard")
		register(handlers.NewGuard(limits, nil))
	}

	if !cfg.Admin.Disabled {
		register(newAdmin(cfg.Admin.Prefix, srv, reg, logger))
	}

	for i, s := range cfg.Static {
		body := s.Body
		if s.File != "" {
			data, err := os.ReadFile(cfg.ResolvePath(s.File))
			if err != nil {
				return nil, errors.New(errors.CodeDirectoryAccess).
					WithField(fmt.Sprintf("static[%d].file", i)).
					Wrap(err)
			}
			body = string(data)
		}
		register(handlers.NewStatic(s.Path, s.ContentType, body))
	}

	if cfg.SSE.Path != "" {
		register(&sse.Handler{
			Path:    cfg.SSE.Path,
			Options: heartbeatOptions(cfg, logger),
			Serve:   clockSession(cfg.SSE.IntervalDuration()),
		})
	}

	if cfg.Notify.Path != "" {
		n := handlers.NewNotify(cfg.Notify.Path)
		notifyLogger := logger.With("component", "notify")
		n.Subscribe(func(body string) {
			if cfg.Notify.Log {
				notifyLogger.Info("notification", "body", body)
				return
			}
			notifyLogger.Debug("notification", "bytes", len(body))
		})
		register(n)
		a.notify = n

		if cfg.Notify.EventsPath != "" {
			register(&sse.Handler{
				Path:    cfg.Notify.EventsPath,
				Options: heartbeatOptions(cfg, logger),
				Serve:   relaySession(n),
			})
		}
	}

	if cfg.Bucket.Name != "" {
		client, err := newS3Client(cfg.Bucket)
		if err != nil {
			return nil, err
		}
		register(handlers.NewBucket(client, cfg.Bucket.Name, cfg.Bucket.Prefix,
			handlers.WithKeyPrefix(cfg.Bucket.KeyPrefix),
			handlers.WithBucketLogger(logger.With("component", "bucket"))))
	}

	for i, f := range cfg.Folders {
		dir := cfg.ResolvePath(f.Dir)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			e := errors.New(errors.CodeDirectoryAccess).WithField(fmt.Sprintf("folders[%d].dir", i))
			if err != nil {
				return nil, e.Wrap(err)
			}
			return nil, e.WithDetailf("%s is not a directory", dir)
		}
		register(handlers.NewFolder(os.DirFS(dir), f.Prefix,
			handlers.WithCacheControl(f.CacheControl()),
			handlers.WithNotFound(!f.FallThrough)))
	}

	return a, nil
}

// newAdmin mounts the admin endpoints under prefix: /metrics and /healthz
// through a chi router, /status as JSON.
func newAdmin(prefix string, srv *server.Server, reg *prometheus.Registry, logger *slog.Logger) *handlers.Mount {
	r := chi.NewRouter()
	r.Get("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "ok")
	})

	mount := handlers.NewMount(prefix, logger.With("component", "admin"))
	mount.Register(handlers.NewHTTP(r, handlers.WithName("admin"), handlers.WithFallThrough()))
	mount.Register(handlers.NewJSON("GET", "/status",
		func(context.Context, string, url.Values) (*server.ServerMetrics, int, error) {
			return srv.Metrics(), 0, nil
		}, logger.With("component", "admin")))
	return mount
}

func heartbeatOptions(cfg *config.Config, logger *slog.Logger) func(*server.Request, string) []sse.Option {
	opts := []sse.Option{
		sse.WithHeartbeat(cfg.SSE.HeartbeatDuration(), ""),
		sse.WithLogger(logger.With("component", "sse")),
	}
	return func(*server.Request, string) []sse.Option { return opts }
}

// clockSession sends the current time every interval. Event ids count up and
// resume from Last-Event-ID.
func clockSession(interval time.Duration) sse.SessionFunc {
	return func(ctx context.Context, s *sse.Session) error {
		seq, _ := strconv.Atoi(s.LastEventID())

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case t := <-ticker.C:
				seq++
				err := s.SendEvent(ctx, t.UTC().Format(time.RFC3339),
					sse.WithEventName("tick"), sse.WithID(strconv.Itoa(seq)))
				if err != nil {
					return err
				}
			}
		}
	}
}

// relaySession forwards notifications to the client. Notifications arriving
// faster than the client reads are dropped.
func relaySession(n *handlers.Notify) sse.SessionFunc {
	return func(ctx context.Context, s *sse.Session) error {
		ch := make(chan string, 16)
		cancel := n.Subscribe(func(body string) {
			select {
			case ch <- body:
			default:
			}
		})
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return nil
			case body := <-ch:
				if err := s.SendEvent(ctx, body, sse.WithEventName("notify")); err != nil {
					return err
				}
			}
		}
	}
}
