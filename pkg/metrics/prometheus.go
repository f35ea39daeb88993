// Package metrics provides Prometheus metrics for the lobstream relay.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the relay.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingestion
	postsIngested      *prometheus.CounterVec
	postsRejected      *prometheus.CounterVec
	postsDuplicate     *prometheus.CounterVec
	connectorErrors    *prometheus.CounterVec
	connectorReconnect *prometheus.CounterVec
	mailboxDropped     *prometheus.CounterVec

	// Event log
	logAppends *prometheus.CounterVec
	logLength  prometheus.Gauge

	// Tier 2 scoring
	scorerBatches   *prometheus.CounterVec
	scorerPosts     *prometheus.CounterVec
	scorerQueueSize prometheus.Gauge
	llmLatency      prometheus.Histogram

	// Fan-out and client
	streamConnections prometheus.Gauge
	streamEvents      *prometheus.CounterVec
	clientRendered    *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "lobstream",
		subsystem:        "relay",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval reports how often gauges should be refreshed by callers.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) name(n string) string {
	if m.metricPrefix != "" {
		return m.metricPrefix + "_" + n
	}
	return n
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.postsIngested = m.counterVec("posts_ingested_total", "Posts emitted by connectors", "source")
	m.postsRejected = m.counterVec("posts_rejected_total", "Posts rejected by normalization or content filters", "source", "reason")
	m.postsDuplicate = m.counterVec("posts_duplicate_total", "Source items skipped because they were already seen", "source")
	m.connectorErrors = m.counterVec("connector_errors_total", "Connector fetch or session failures", "source", "kind")
	m.connectorReconnect = m.counterVec("connector_reconnects_total", "Persistent connection reconnect attempts", "source")
	m.mailboxDropped = m.counterVec("mailbox_dropped_total", "Inbound frames dropped because a connector mailbox overflowed", "source")

	m.logAppends = m.counterVec("log_appends_total", "Event log appends", "status")
	m.logLength = m.gauge("log_length", "Entries currently retained by the event log")

	m.scorerBatches = m.counterVec("scorer_batches_total", "Tier 2 batches by outcome", "outcome")
	m.scorerPosts = m.counterVec("scorer_posts_total", "Tier 2 posts by result", "result")
	m.scorerQueueSize = m.gauge("scorer_queue_size", "Posts waiting for Tier 2 scoring")
	m.llmLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("llm_request_duration_ms"),
		Help:        "LLM scoring request latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	})

	m.streamConnections = m.gauge("stream_connections_active", "Open stream fan-out connections")
	m.streamEvents = m.counterVec("stream_events_total", "Events written to stream connections", "type")
	m.clientRendered = m.counterVec("client_posts_rendered_total", "Posts handed to the renderer by the stream consumer", "mode")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests", "endpoint", "method", "status")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_ms"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

// RecordPostIngested counts a post handed to the router.
func RecordPostIngested(source string) {
	if globalManager.enabled {
		globalManager.postsIngested.WithLabelValues(source).Inc()
	}
}

// RecordPostRejected counts a post dropped before emission.
func RecordPostRejected(source, reason string) {
	if globalManager.enabled {
		globalManager.postsRejected.WithLabelValues(source, reason).Inc()
	}
}

// RecordPostDuplicate counts an already-seen source item.
func RecordPostDuplicate(source string) {
	if globalManager.enabled {
		globalManager.postsDuplicate.WithLabelValues(source).Inc()
	}
}

// RecordConnectorError counts a connector failure of the given kind.
func RecordConnectorError(source, kind string) {
	if globalManager.enabled {
		globalManager.connectorErrors.WithLabelValues(source, kind).Inc()
	}
}

// RecordConnectorReconnect counts a persistent session reconnect.
func RecordConnectorReconnect(source string) {
	if globalManager.enabled {
		globalManager.connectorReconnect.WithLabelValues(source).Inc()
	}
}

// RecordMailboxDropped counts a frame evicted by overflow.
func RecordMailboxDropped(source string) {
	if globalManager.enabled {
		globalManager.mailboxDropped.WithLabelValues(source).Inc()
	}
}

// RecordLogAppend counts an append with status "ok" or "error".
func RecordLogAppend(status string) {
	if globalManager.enabled {
		globalManager.logAppends.WithLabelValues(status).Inc()
	}
}

// UpdateLogLength sets the retained entry count.
func UpdateLogLength(n int64) {
	globalManager.logLength.Set(float64(n))
}

// RecordScorerBatch counts a batch with outcome "scored", "failed" or "skipped".
func RecordScorerBatch(outcome string) {
	if globalManager.enabled {
		globalManager.scorerBatches.WithLabelValues(outcome).Inc()
	}
}

// RecordScorerPosts adds n posts with result "kept", "discarded" or "fallback".
func RecordScorerPosts(result string, n int) {
	if globalManager.enabled && n > 0 {
		globalManager.scorerPosts.WithLabelValues(result).Add(float64(n))
	}
}

// UpdateScorerQueueSize sets the pending scorer queue length.
func UpdateScorerQueueSize(n int) {
	globalManager.scorerQueueSize.Set(float64(n))
}

// RecordLLMLatency records an LLM call latency in milliseconds.
func RecordLLMLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.llmLatency.Observe(latencyMs)
	}
}

// StreamConnectionOpened increments active stream connections.
func StreamConnectionOpened() { globalManager.streamConnections.Inc() }

// StreamConnectionClosed decrements active stream connections.
func StreamConnectionClosed() { globalManager.streamConnections.Dec() }

// RecordStreamEvent counts an SSE event by type.
func RecordStreamEvent(eventType string) {
	if globalManager.enabled {
		globalManager.streamEvents.WithLabelValues(eventType).Inc()
	}
}

// RecordClientRendered counts posts rendered by the consumer, mode "backfill" or "paced".
func RecordClientRendered(mode string, n int) {
	if globalManager.enabled && n > 0 {
		globalManager.clientRendered.WithLabelValues(mode).Add(float64(n))
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordErrorByComponent records an error for a component.
func RecordErrorByComponent(component, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// FamilyNames lists the metric families currently exported by the custom registry.
func FamilyNames() ([]string, error) {
	families, err := customRegistry.Gather()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatherFailed, err)
	}
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	return names, nil
}
