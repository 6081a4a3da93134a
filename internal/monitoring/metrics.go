// Package monitoring exposes Prometheus metrics for renders, tool calls,
// approvals, the result cache, and WebSocket connections.
package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Each Metrics owns its registry so
// multiple instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Render metrics
	RendersTotal   *prometheus.CounterVec
	RenderDuration prometheus.Histogram
	RenderTimeouts prometheus.Counter
	RenderHeight   prometheus.Histogram

	// Tool metrics
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec

	// Approval metrics
	ApprovalsTotal   *prometheus.CounterVec
	ApprovalsPending prometheus.Gauge

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON stats API.
type Snapshot struct {
	TotalRequests    int64   `json:"total_requests"`
	TotalErrors      int64   `json:"total_errors"`
	TotalRenders     int64   `json:"total_renders"`
	RenderTimeouts   int64   `json:"render_timeouts"`
	CacheHits        int64   `json:"cache_hits"`
	CacheMisses      int64   `json:"cache_misses"`
	PendingApprovals int64   `json:"pending_approvals"`
	Connections      int64   `json:"connections"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector with a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry:  registry,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curio_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "curio_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		RendersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curio_renders_total",
				Help: "Total number of sandbox renders",
			},
			[]string{"profile", "status"},
		),
		RenderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "curio_render_duration_seconds",
				Help:    "Sandbox render duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		RenderTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "curio_render_timeouts_total",
				Help: "Total number of renders that exceeded the render timeout",
			},
		),
		RenderHeight: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "curio_render_height_pixels",
				Help:    "Measured content height in pixels",
				Buckets: []float64{16, 50, 100, 250, 500, 1000, 2500, 5000},
			},
		),

		ToolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curio_tool_calls_total",
				Help: "Total number of tool calls",
			},
			[]string{"tool", "status"},
		),
		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "curio_tool_duration_seconds",
				Help:    "Tool call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"tool"},
		),

		ApprovalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curio_approvals_total",
				Help: "Total number of approval decisions",
			},
			[]string{"outcome"},
		),
		ApprovalsPending: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "curio_approvals_pending",
				Help: "Number of approval requests awaiting a decision",
			},
		),

		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "curio_tool_cache_hits_total",
				Help: "Total number of tool cache hits",
			},
		),
		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "curio_tool_cache_misses_total",
				Help: "Total number of tool cache misses",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "curio_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curio_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "curio_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
	}

	return m
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordRender records a completed render.
func (m *Metrics) RecordRender(profile string, duration time.Duration, height int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RendersTotal.WithLabelValues(profile, status).Inc()
	m.RenderDuration.Observe(duration.Seconds())
	if err == nil {
		m.RenderHeight.Observe(float64(height))
	}

	m.mu.Lock()
	m.snapshot.TotalRenders++
	m.mu.Unlock()
}

// RecordRenderTimeout records a render that timed out.
func (m *Metrics) RecordRenderTimeout() {
	m.RenderTimeouts.Inc()
	m.mu.Lock()
	m.snapshot.RenderTimeouts++
	m.mu.Unlock()
}

// RecordToolCall records a tool call.
func (m *Metrics) RecordToolCall(tool, status string, duration time.Duration) {
	m.ToolCalls.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordApproval records an approval decision outcome.
func (m *Metrics) RecordApproval(outcome string) {
	m.ApprovalsTotal.WithLabelValues(outcome).Inc()
}

// SetApprovalsPending sets the number of pending approval requests.
func (m *Metrics) SetApprovalsPending(count int) {
	m.ApprovalsPending.Set(float64(count))
	m.mu.Lock()
	m.snapshot.PendingApprovals = int64(count)
	m.mu.Unlock()
}

// RecordCacheHit records a tool cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
	m.mu.Lock()
	m.snapshot.CacheHits++
	m.mu.Unlock()
}

// RecordCacheMiss records a tool cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
	m.mu.Lock()
	m.snapshot.CacheMisses++
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message.
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections.
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.Connections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections.
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.Connections--
	m.mu.Unlock()
}

// GetSnapshot returns current values for the JSON stats API.
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	snap := m.snapshot
	m.mu.RUnlock()
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	m.Uptime.Set(snap.UptimeSeconds)
	return snap
}
