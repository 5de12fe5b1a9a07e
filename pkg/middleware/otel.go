package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yllibed/httpserver/pkg/server"
)

const defaultTracerName = "yhttpd"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "yhttpd").
	TracerName string

	// TracerProvider provides the tracer.
	// Default: the global provider from otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// IncludeUserAgent adds the User-Agent header to spans.
	// Disabled by default.
	IncludeUserAgent bool

	// Filter determines which requests to trace.
	// Return true to trace the request. If nil, all requests are traced.
	Filter func(req *server.Request) bool

	// AttributeExtractor adds custom attributes to every span.
	AttributeExtractor func(req *server.Request) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeUserAgent enables the user agent attribute.
func WithIncludeUserAgent(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeUserAgent = include
	}
}

// WithRequestFilter sets a filter function for requests.
func WithRequestFilter(filter func(req *server.Request) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(req *server.Request) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{TracerName: defaultTracerName}
}

// OpenTelemetry returns a Middleware that opens one span per handler call.
//
// The span carries the method, target, relative path and handler name. The
// handler receives the span context, so outbound calls it makes join the
// trace. Errors are recorded on the span; a handler that sets a response adds
// its status code.
//
// The tracer comes from the global provider unless WithTracerProvider is used.
// Configure it in main() before starting the server:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}
	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(config.TracerName)

	return func(next server.Handler) server.Handler {
		name := server.HandlerName(next)

		return wrap(next, func(ctx context.Context, req *server.Request, relativePath string) error {
			if config.Filter != nil && !config.Filter(req) {
				return next.HandleRequest(ctx, req, relativePath)
			}

			attrs := []attribute.KeyValue{
				attribute.String("http.request.method", req.Method()),
				attribute.String("url.path", req.Path()),
				attribute.String("yhttpd.relative_path", relativePath),
				attribute.String("yhttpd.handler", name),
			}
			if ip := req.ClientIP(); ip != nil {
				attrs = append(attrs, attribute.String("client.address", ip.String()))
			}
			if config.IncludeUserAgent && req.UserAgent() != "" {
				attrs = append(attrs, attribute.String("user_agent.original", req.UserAgent()))
			}
			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(req)...)
			}

			alreadySet := req.IsResponseSet()
			spanCtx, span := tracer.Start(ctx, fmt.Sprintf("%s %s", req.Method(), name),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			err := next.HandleRequest(spanCtx, req, relativePath)

			responded := !alreadySet && req.IsResponseSet()
			span.SetAttributes(attribute.Bool("yhttpd.responded", responded))
			if responded {
				span.SetAttributes(attribute.Int("http.response.status_code", req.Response().StatusCode))
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return err
		})
	}
}
