// Package middleware decorates pipeline handlers with observability.
//
// # Prometheus Metrics
//
// HandlerMetrics counts calls per handler and outcome, times them and counts
// the status codes of the responses they set:
//
//	m := middleware.NewHandlerMetrics(middleware.WithRegistry(reg))
//	srv.RegisterHandler(m.Wrap(folder))
//
// ServerCollector exports the server's own counters (connections, parse
// errors, write errors, disconnects):
//
//	middleware.NewServerCollector(srv, middleware.WithRegistry(reg))
//
// Expose both through promhttp:
//
//	promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
//
// # OpenTelemetry
//
// OpenTelemetry opens a span per handler call:
//
//	trace := middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-app"),
//	    middleware.WithRequestFilter(func(req *server.Request) bool {
//	        return req.Path() != "/healthz"
//	    }),
//	)
//
// # Composition
//
// Chain applies several middlewares; the first one is the outermost. Wrapped
// handlers keep their name in logs and still close with their registration.
//
//	srv.RegisterHandler(middleware.Chain(h, trace, m.Middleware()))
package middleware
