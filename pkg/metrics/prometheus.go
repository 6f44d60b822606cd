// Package metrics provides Prometheus metrics for the KLHResolve backend.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the backend.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// HTTP metrics, labelled by the resolver rule that answered.
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Static serving
	filesServed           *prometheus.CounterVec
	entryDocumentFailures *prometheus.CounterVec

	// Errors
	errorsByType    *prometheus.CounterVec
	panicsRecovered prometheus.Counter

	// Database connector
	databaseUp              prometheus.Gauge
	databaseConnectAttempts *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Init rebuilds the global manager on a fresh custom registry. Call it once
// at startup, before anything captures GetRegistry.
func Init(opts ...Option) *Manager {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(customRegistry))...)
	return globalManager
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "klhresolve",
		subsystem:        "backend",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		refreshInterval:  defaultRefreshInterval,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval is how often gauge updaters should sample.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by resolver rule, method and status",
			ConstLabels: m.constLabels,
		},
		[]string{"rule", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.constLabels,
		},
		[]string{"rule", "method", "status_code"},
	)

	m.filesServed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "static_files_served_total",
			Help:        "Files served from disk by source (uploads, assets, entry)",
			ConstLabels: m.constLabels,
		},
		[]string{"source"},
	)

	m.entryDocumentFailures = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "entry_document_failures_total",
			Help:        "Times the entry document could not be served, by rule",
			ConstLabels: m.constLabels,
		},
		[]string{"rule"},
	)

	m.errorsByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "errors_by_type_total",
			Help:        "Error responses by type and severity",
			ConstLabels: m.constLabels,
		},
		[]string{"error_type", "severity"},
	)

	m.panicsRecovered = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "handler_faults_total",
		Help:        "Handler faults converted to 500 responses by the error boundary",
		ConstLabels: m.constLabels,
	})

	m.databaseUp = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "database_up",
		Help:        "1 when the database pool is connected, 0 otherwise",
		ConstLabels: m.constLabels,
	})

	m.databaseConnectAttempts = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "database_connect_attempts_total",
			Help:        "Database connection attempts by result",
			ConstLabels: m.constLabels,
		},
		[]string{"result"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_memory_usage_bytes",
		Help:        "Current heap allocation in bytes",
		ConstLabels: m.constLabels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_goroutine_count",
		Help:        "Current number of goroutines",
		ConstLabels: m.constLabels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "Average GC pause time in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
}

// RecordHTTPRequest counts one answered request.
func RecordHTTPRequest(rule, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(rule, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes request latency in milliseconds.
func RecordHTTPRequestDuration(rule, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(rule, method, statusCode).Observe(durationMs)
}

// RecordFileServed counts a file served from disk.
func RecordFileServed(source string) {
	globalManager.filesServed.WithLabelValues(source).Inc()
}

// RecordEntryDocumentFailure counts an unreadable entry document.
func RecordEntryDocumentFailure(rule string) {
	globalManager.entryDocumentFailures.WithLabelValues(rule).Inc()
}

// RecordErrorByType counts an error response.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordHandlerFault counts a fault caught by the error boundary.
func RecordHandlerFault() {
	globalManager.panicsRecovered.Inc()
}

// SetDatabaseUp reports connector state.
func SetDatabaseUp(up bool) {
	if up {
		globalManager.databaseUp.Set(1)
		return
	}
	globalManager.databaseUp.Set(0)
}

// RecordDatabaseConnectAttempt counts a connection attempt ("success" or "failure").
func RecordDatabaseConnectAttempt(result string) {
	globalManager.databaseConnectAttempts.WithLabelValues(result).Inc()
}

// UpdateSystemMemoryUsage sets the heap allocation gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry backing the package-level recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RefreshInterval returns the global manager's sampling interval.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}
