package middleware

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yllibed/httpserver/pkg/server"
)

// MetricsSource supplies server counters. *server.Server satisfies it.
type MetricsSource interface {
	Metrics() *server.ServerMetrics
}

// ServerCollector exports the counters of a server as Prometheus metrics. The
// values are read from a fresh snapshot on every scrape.
type ServerCollector struct {
	source MetricsSource

	connectionsAccepted *prometheus.Desc
	connectionsActive   *prometheus.Desc
	connectionsClosed   *prometheus.Desc
	parseErrors         *prometheus.Desc
	requestsHandled     *prometheus.Desc
	notFound            *prometheus.Desc
	streamsOpened       *prometheus.Desc
	responsesWritten    *prometheus.Desc
	handlerErrors       *prometheus.Desc
	handlerPanics       *prometheus.Desc
	writeErrors         *prometheus.Desc
	disconnects         *prometheus.Desc
}

// NewServerCollector returns a collector over source. Only the Namespace,
// Subsystem and ConstLabels options apply; the collector is registered on
// Registry when one is set explicitly.
func NewServerCollector(source MetricsSource, opts ...MetricsOption) *ServerCollector {
	config := MetricsConfig{Namespace: defaultMetricsConfig().Namespace}
	for _, opt := range opts {
		opt(&config)
	}

	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(config.Namespace, config.Subsystem, name),
			help, nil, config.ConstLabels)
	}

	c := &ServerCollector{
		source:              source,
		connectionsAccepted: desc("connections_accepted_total", "Total number of accepted connections"),
		connectionsActive:   desc("connections_active", "Number of open connections"),
		connectionsClosed:   desc("connections_closed_total", "Total number of closed connections"),
		parseErrors:         desc("parse_errors_total", "Total number of requests that failed to parse"),
		requestsHandled:     desc("requests_total", "Total number of dispatched requests"),
		notFound:            desc("not_found_total", "Total number of requests no handler answered"),
		streamsOpened:       desc("streams_opened_total", "Total number of stream and streaming responses"),
		responsesWritten:    desc("responses_written_total", "Total number of responses written completely"),
		handlerErrors:       desc("handler_failures_total", "Total number of errors returned by handlers"),
		handlerPanics:       desc("handler_panics_total", "Total number of handler panics"),
		writeErrors:         desc("write_errors_total", "Total number of failed response writes"),
		disconnects:         desc("disconnects_total", "Total number of clients gone before the response was written"),
	}
	if config.Registry != nil {
		config.Registry.MustRegister(c)
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *ServerCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs() {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *ServerCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.source.Metrics()

	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(c.connectionsAccepted, m.ConnectionsAccepted)
	ch <- prometheus.MustNewConstMetric(c.connectionsActive, prometheus.GaugeValue, float64(m.ConnectionsActive))
	counter(c.connectionsClosed, m.ConnectionsClosed)
	counter(c.parseErrors, m.ParseErrors)
	counter(c.requestsHandled, m.RequestsHandled)
	counter(c.notFound, m.NotFound)
	counter(c.streamsOpened, m.StreamsOpened)
	counter(c.responsesWritten, m.ResponsesWritten)
	counter(c.handlerErrors, m.HandlerErrors)
	counter(c.handlerPanics, m.HandlerPanics)
	counter(c.writeErrors, m.WriteErrors)
	counter(c.disconnects, m.Disconnects)
}

func (c *ServerCollector) descs() []*prometheus.Desc {
	return []*prometheus.Desc{
		c.connectionsAccepted, c.connectionsActive, c.connectionsClosed,
		c.parseErrors, c.requestsHandled, c.notFound, c.streamsOpened,
		c.responsesWritten, c.handlerErrors, c.handlerPanics, c.writeErrors,
		c.disconnects,
	}
}
