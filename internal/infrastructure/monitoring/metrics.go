package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Lifecycle metrics
	Transitions     *prometheus.CounterVec
	Events          *prometheus.CounterVec
	QueueDepthGauge prometheus.Gauge
	Priority        prometheus.Gauge
	ReclaimsTotal   *prometheus.CounterVec
	Failures        *prometheus.CounterVec

	// Persistence metrics
	BlobsCaptured *prometheus.CounterVec
	BlobSize      prometheus.Histogram
	BlobsRestored *prometheus.CounterVec

	// Registry metrics
	Definitions prometheus.Gauge
	Breakers    *prometheus.GaugeVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON API
type Snapshot struct {
	Transitions       int64            `json:"transitions"`
	ByState           map[string]int64 `json:"by_state"`
	EventsDropped     int64            `json:"events_dropped"`
	EventsInvalid     int64            `json:"events_invalid"`
	Failures          int64            `json:"failures"`
	Reclaims          int64            `json:"reclaims"`
	BlobsCaptured     int64            `json:"blobs_captured"`
	BlobsRestored     int64            `json:"blobs_restored"`
	QueueDepth        int64            `json:"queue_depth"`
	Priority          types.Rank       `json:"priority"`
	TotalRequests     int64            `json:"total_requests"`
	TotalErrors       int64            `json:"total_errors"`
	ActiveConnections int64            `json:"active_connections"`
	UptimeSeconds     float64          `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector registered on reg. A nil reg uses
// the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		snapshot: Snapshot{
			ByState:  make(map[string]int64),
			Priority: types.RankEmpty,
		},

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lifecycle_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Lifecycle metrics
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_transitions_total",
				Help: "Committed lifecycle transitions",
			},
			[]string{"from", "to"},
		),
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_events_total",
				Help: "Processed queue events by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		QueueDepthGauge: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "lifecycle_queue_depth",
				Help: "Events left queued after the last drain",
			},
		),
		Priority: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "lifecycle_process_priority",
				Help: "Reclaim rank of the host; lower is more important",
			},
		),
		ReclaimsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_reclaims_total",
				Help: "Records destroyed to reclaim memory",
			},
			[]string{"identity"},
		),
		Failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_component_failures_total",
				Help: "Components destroyed by their own callbacks",
			},
			[]string{"identity", "kind"},
		),

		// Persistence metrics
		BlobsCaptured: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_blobs_captured_total",
				Help: "Saved-state blobs captured",
			},
			[]string{"identity"},
		),
		BlobSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lifecycle_blob_size_bytes",
				Help:    "Size of captured saved-state blobs",
				Buckets: prometheus.ExponentialBuckets(64, 4, 8),
			},
		),
		BlobsRestored: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_blobs_restored_total",
				Help: "Restore attempts by outcome",
			},
			[]string{"identity", "outcome"},
		),

		// Registry metrics
		Definitions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "lifecycle_registry_definitions",
				Help: "Number of registered component definitions",
			},
		),

		// Store breaker, 0 closed, 1 half-open, 2 open
		Breakers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lifecycle_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"breaker"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "lifecycle_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "lifecycle_uptime_seconds",
			Help: "Host uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)
	m.Priority.Set(float64(types.RankEmpty))

	return m
}

// StateChanged implements lifecycle.Observer
func (m *Metrics) StateChanged(c *types.Component, from, to types.State) {
	m.Transitions.WithLabelValues(from.String(), to.String()).Inc()

	m.mu.Lock()
	m.snapshot.Transitions++
	m.snapshot.ByState[to.String()]++
	m.mu.Unlock()
}

// EventProcessed records one queue event
func (m *Metrics) EventProcessed(kind types.EventKind, outcome string) {
	m.Events.WithLabelValues(kind.String(), outcome).Inc()

	m.mu.Lock()
	switch outcome {
	case "dropped", "cancelled":
		m.snapshot.EventsDropped++
	case "invalid":
		m.snapshot.EventsInvalid++
	}
	m.mu.Unlock()
}

// QueueDepth records the events left after a drain
func (m *Metrics) QueueDepth(n int) {
	m.QueueDepthGauge.Set(float64(n))
	m.mu.Lock()
	m.snapshot.QueueDepth = int64(n)
	m.mu.Unlock()
}

// RankChanged records a new process priority
func (m *Metrics) RankChanged(r types.Rank) {
	m.Priority.Set(float64(r))
	m.mu.Lock()
	m.snapshot.Priority = r
	m.mu.Unlock()
}

// Reclaimed records a reclaimed record
func (m *Metrics) Reclaimed(identity types.Identity) {
	m.ReclaimsTotal.WithLabelValues(string(identity)).Inc()
	m.mu.Lock()
	m.snapshot.Reclaims++
	m.mu.Unlock()
}

// ComponentFailed records a component destroyed by its own callback
func (m *Metrics) ComponentFailed(identity types.Identity, kind lifecycle.Kind) {
	m.Failures.WithLabelValues(string(identity), string(kind)).Inc()
	m.mu.Lock()
	m.snapshot.Failures++
	m.mu.Unlock()
}

// BlobCaptured implements persistence.Recorder
func (m *Metrics) BlobCaptured(identity types.Identity, size int) {
	m.BlobsCaptured.WithLabelValues(string(identity)).Inc()
	m.BlobSize.Observe(float64(size))
	m.mu.Lock()
	m.snapshot.BlobsCaptured++
	m.mu.Unlock()
}

// BlobRestored implements persistence.Recorder
func (m *Metrics) BlobRestored(identity types.Identity, outcome string) {
	m.BlobsRestored.WithLabelValues(string(identity), outcome).Inc()
	m.mu.Lock()
	m.snapshot.BlobsRestored++
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// SetDefinitions sets the number of registered definitions
func (m *Metrics) SetDefinitions(count int) {
	m.Definitions.Set(float64(count))
}

// SetBreakerState records a breaker's state
func (m *Metrics) SetBreakerState(name string, state int) {
	m.Breakers.WithLabelValues(name).Set(float64(state))
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns a copy of the tracked values
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.snapshot
	out.ByState = make(map[string]int64, len(m.snapshot.ByState))
	for k, v := range m.snapshot.ByState {
		out.ByState[k] = v
	}
	out.UptimeSeconds = time.Since(m.startTime).Seconds()
	return out
}
