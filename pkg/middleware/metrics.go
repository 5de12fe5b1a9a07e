package middleware

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yllibed/httpserver/pkg/server"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "yhttpd").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for handler duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "yhttpd",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

func buildMetricsConfig(opts []MetricsOption) MetricsConfig {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// Outcomes of a handler call.
const (
	OutcomeResponded = "responded"
	OutcomePassed    = "passed"
	OutcomeError     = "error"
	OutcomePanic     = "panic"
)

// HandlerMetrics records Prometheus metrics for pipeline handlers.
//
// Metrics collected:
//   - yhttpd_handler_calls_total: calls by handler and outcome
//   - yhttpd_handler_duration_seconds: time spent in HandleRequest
//   - yhttpd_handler_errors_total: returned errors by handler and error type
//   - yhttpd_handler_responses_total: responses set, by handler and status code
type HandlerMetrics struct {
	calls     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	errors    *prometheus.CounterVec
	responses *prometheus.CounterVec
}

// NewHandlerMetrics registers the handler metrics.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	m := middleware.NewHandlerMetrics(middleware.WithRegistry(reg))
//	srv.RegisterHandler(m.Wrap(handlers.NewFolder(os.DirFS("www"), "/")))
func NewHandlerMetrics(opts ...MetricsOption) *HandlerMetrics {
	config := buildMetricsConfig(opts)
	factory := promauto.With(config.Registry)

	return &HandlerMetrics{
		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "handler_calls_total",
			Help:        "Total number of pipeline handler calls",
			ConstLabels: config.ConstLabels,
		}, []string{"handler", "outcome"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "handler_duration_seconds",
			Help:        "Pipeline handler duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"handler"}),

		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "handler_errors_total",
			Help:        "Total number of errors returned by pipeline handlers",
			ConstLabels: config.ConstLabels,
		}, []string{"handler", "error_type"}),

		responses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "handler_responses_total",
			Help:        "Total number of responses set by pipeline handlers",
			ConstLabels: config.ConstLabels,
		}, []string{"handler", "code"}),
	}
}

// Middleware returns the metrics as a Middleware.
func (m *HandlerMetrics) Middleware() Middleware { return m.Wrap }

// Wrap instruments next. Only calls that set the response count as
// "responded"; a handler that leaves it to later handlers counts as "passed".
func (m *HandlerMetrics) Wrap(next server.Handler) server.Handler {
	name := server.HandlerName(next)

	return wrap(next, func(ctx context.Context, req *server.Request, relativePath string) (err error) {
		alreadySet := req.IsResponseSet()
		start := time.Now()

		defer func() {
			m.duration.WithLabelValues(name).Observe(time.Since(start).Seconds())

			if r := recover(); r != nil {
				m.calls.WithLabelValues(name, OutcomePanic).Inc()
				panic(r)
			}

			switch {
			case err != nil:
				m.calls.WithLabelValues(name, OutcomeError).Inc()
				m.errors.WithLabelValues(name, categorizeError(err)).Inc()
			case !alreadySet && req.IsResponseSet():
				m.calls.WithLabelValues(name, OutcomeResponded).Inc()
				m.responses.WithLabelValues(name, statusLabel(req.Response().StatusCode)).Inc()
			default:
				m.calls.WithLabelValues(name, OutcomePassed).Inc()
			}
		}()

		return next.HandleRequest(ctx, req, relativePath)
	})
}

// categorizeError returns a low-cardinality label for err.
func categorizeError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case server.IsDisconnect(err):
		return "disconnect"
	default:
		return "internal"
	}
}

func statusLabel(code int) string {
	if code < 100 || code > 999 {
		return "other"
	}
	return strconv.Itoa(code)
}
