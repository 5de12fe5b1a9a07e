package server

import (
	"sync/atomic"
	"time"
)

// ServerMetrics is a point-in-time snapshot of server counters.
type ServerMetrics struct {
	// Connections
	ConnectionsAccepted int64
	ConnectionsActive   int64
	ConnectionsClosed   int64

	// Requests
	ParseErrors      int64
	RequestsHandled  int64
	NotFound         int64
	StreamsOpened    int64
	ResponsesWritten int64

	// Errors
	HandlerErrors int64
	HandlerPanics int64
	WriteErrors   int64
	Disconnects   int64

	// Timestamp
	CollectedAt time.Time
}

// Metrics collects and returns server metrics.
func (s *Server) Metrics() *ServerMetrics {
	m := s.metrics.Snapshot()
	m.ConnectionsActive = int64(s.ActiveConnections())
	return m
}

// MetricsCollector holds the server counters.
type MetricsCollector struct {
	connectionsAccepted atomic.Int64
	connectionsClosed   atomic.Int64
	parseErrors         atomic.Int64
	requestsHandled     atomic.Int64
	notFound            atomic.Int64
	streamsOpened       atomic.Int64
	responsesWritten    atomic.Int64
	handlerErrors       atomic.Int64
	handlerPanics       atomic.Int64
	writeErrors         atomic.Int64
	disconnects         atomic.Int64
}

// NewMetricsCollector creates a new MetricsCollector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordHandlerError records a handler failure.
func (m *MetricsCollector) RecordHandlerError(err *HandlerError) {
	if err.Panic != nil {
		m.handlerPanics.Add(1)
		return
	}
	m.handlerErrors.Add(1)
}

// Snapshot returns current metrics.
func (m *MetricsCollector) Snapshot() *ServerMetrics {
	return &ServerMetrics{
		ConnectionsAccepted: m.connectionsAccepted.Load(),
		ConnectionsClosed:   m.connectionsClosed.Load(),
		ParseErrors:         m.parseErrors.Load(),
		RequestsHandled:     m.requestsHandled.Load(),
		NotFound:            m.notFound.Load(),
		StreamsOpened:       m.streamsOpened.Load(),
		ResponsesWritten:    m.responsesWritten.Load(),
		HandlerErrors:       m.handlerErrors.Load(),
		HandlerPanics:       m.handlerPanics.Load(),
		WriteErrors:         m.writeErrors.Load(),
		Disconnects:         m.disconnects.Load(),
		CollectedAt:         time.Now(),
	}
}

// Reset resets all counters.
func (m *MetricsCollector) Reset() {
	m.connectionsAccepted.Store(0)
	m.connectionsClosed.Store(0)
	m.parseErrors.Store(0)
	m.requestsHandled.Store(0)
	m.notFound.Store(0)
	m.streamsOpened.Store(0)
	m.responsesWritten.Store(0)
	m.handlerErrors.Store(0)
	m.handlerPanics.Store(0)
	m.writeErrors.Store(0)
	m.disconnects.Store(0)
}
