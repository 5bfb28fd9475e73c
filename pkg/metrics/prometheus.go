// Package metrics provides Prometheus metrics for the kickoff team balancing service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the kickoff service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Balancing - what the product exists for
	balanceRuns    *prometheus.CounterVec
	balanceLatency *prometheus.HistogramVec
	balanceScore   *prometheus.HistogramVec
	qualityBands   *prometheus.CounterVec

	// Lineup editing
	slotMoves      *prometheus.CounterVec
	rollbacks      *prometheus.CounterVec
	conflicts      prometheus.Counter
	duplicateMoves prometheus.Counter
	activeSessions prometheus.Gauge

	// Persistence
	persistenceLatency *prometheus.HistogramVec
	persistenceErrors  *prometheus.CounterVec

	// Performance report pipeline
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueEnqueues     *prometheus.CounterVec
	reportsProcessed  *prometheus.CounterVec
	reportLatency     prometheus.Histogram
	workerActiveCount prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "kickoff",
		subsystem:        "balancer",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	m.balanceRuns = auto.NewCounterVec(
		m.counterOpts("balance_runs_total", "Total number of balance runs by strategy and outcome"),
		[]string{"strategy", "outcome"},
	)
	m.balanceLatency = auto.NewHistogramVec(
		m.histogramOpts("balance_latency_milliseconds", "Balance run latency in milliseconds", m.histogramBuckets),
		[]string{"strategy"},
	)
	// Scores live in [0,1]; lower is better.
	m.balanceScore = auto.NewHistogramVec(
		m.histogramOpts("balance_score", "Normalized balance score of completed runs",
			[]float64{0.05, 0.1, 0.15, 0.2, 0.25, 0.3, 0.35, 0.4, 0.5, 0.75, 1}),
		[]string{"strategy"},
	)
	m.qualityBands = auto.NewCounterVec(
		m.counterOpts("quality_band_total", "Completed runs by quality band"),
		[]string{"band"},
	)

	m.slotMoves = auto.NewCounterVec(
		m.counterOpts("slot_moves_total", "Applied lineup edits by kind"),
		[]string{"kind"},
	)
	m.rollbacks = auto.NewCounterVec(
		m.counterOpts("rollbacks_total", "Lineup edits reverted after a persistence failure"),
		[]string{"operation"},
	)
	m.conflicts = auto.NewCounter(
		m.counterOpts("move_conflicts_total", "Moves rejected because the assignment version changed"),
	)
	m.duplicateMoves = auto.NewCounter(
		m.counterOpts("move_duplicates_total", "Moves skipped because their request id was already applied"),
	)
	m.activeSessions = auto.NewGauge(
		m.gaugeOpts("active_sessions", "Number of sessions with a live assignment"),
	)

	m.persistenceLatency = auto.NewHistogramVec(
		m.histogramOpts("persistence_latency_milliseconds", "Persistence call latency in milliseconds", m.histogramBuckets),
		[]string{"operation"},
	)
	m.persistenceErrors = auto.NewCounterVec(
		m.counterOpts("persistence_errors_total", "Persistence failures by operation"),
		[]string{"operation"},
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("report_queue_size", "Performance reports waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("report_queue_capacity", "Capacity of the performance report queue"))
	m.queueEnqueues = auto.NewCounterVec(
		m.counterOpts("report_enqueues_total", "Performance report enqueue attempts by outcome"),
		[]string{"outcome"},
	)
	m.reportsProcessed = auto.NewCounterVec(
		m.counterOpts("reports_processed_total", "Performance reports applied by workers by outcome"),
		[]string{"outcome"},
	)
	m.reportLatency = auto.NewHistogram(
		m.histogramOpts("report_processing_latency_milliseconds", "Time to apply one performance report", m.histogramBuckets),
	)
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("report_workers_active", "Number of running report workers"))

	// HTTP Performance Metrics - User experience indicators
	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds (user experience)", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	// Enhanced Error Metrics - Detailed error tracking
	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Total number of errors by type"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorLatency = auto.NewHistogramVec(
		m.histogramOpts("error_latency_milliseconds", "Latency of operations that resulted in errors", m.histogramBuckets),
		[]string{"component", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Balance Metrics Functions.

// RecordBalanceRun counts one balance run; outcome is "ok" or "error".
func RecordBalanceRun(strategy, outcome string) {
	globalManager.balanceRuns.WithLabelValues(strategy, outcome).Inc()
}

// RecordBalanceLatency records balance latency in milliseconds.
func RecordBalanceLatency(strategy string, latencyMs float64) {
	globalManager.balanceLatency.WithLabelValues(strategy).Observe(latencyMs)
}

// RecordBalanceScore records the final score of a scored run.
func RecordBalanceScore(strategy string, score float64) {
	globalManager.balanceScore.WithLabelValues(strategy).Observe(score)
}

// RecordQualityBand counts a completed run in its band.
func RecordQualityBand(band string) {
	globalManager.qualityBands.WithLabelValues(band).Inc()
}

// Lineup Metrics Functions.

// RecordSlotMove counts an applied edit: move, swap, noop or clear.
func RecordSlotMove(kind string) {
	globalManager.slotMoves.WithLabelValues(kind).Inc()
}

// RecordRollback counts an edit reverted after its persistence call failed.
func RecordRollback(operation string) {
	globalManager.rollbacks.WithLabelValues(operation).Inc()
}

// RecordConflict counts a stale-version move.
func RecordConflict() {
	globalManager.conflicts.Inc()
}

// RecordDuplicateMove counts a replayed move request.
func RecordDuplicateMove() {
	globalManager.duplicateMoves.Inc()
}

// UpdateActiveSessions sets the live session count.
func UpdateActiveSessions(count int) {
	globalManager.activeSessions.Set(float64(count))
}

// Persistence Metrics Functions.

// RecordPersistenceLatency records a persistence call latency.
func RecordPersistenceLatency(operation string, latencyMs float64) {
	globalManager.persistenceLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordPersistenceError counts a failed persistence call.
func RecordPersistenceError(operation string) {
	globalManager.persistenceErrors.WithLabelValues(operation).Inc()
}

// Report Pipeline Metrics Functions.

// UpdateQueueSize sets the number of queued reports.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the report queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordEnqueue counts an enqueue attempt; outcome is "ok", "full", "closed" or "cancelled".
func RecordEnqueue(outcome string) {
	globalManager.queueEnqueues.WithLabelValues(outcome).Inc()
}

// RecordReportProcessed counts a report handled by a worker; outcome is "ok" or "error".
func RecordReportProcessed(outcome string) {
	globalManager.reportsProcessed.WithLabelValues(outcome).Inc()
}

// RecordReportLatency records how long one report took to apply.
func RecordReportLatency(latencyMs float64) {
	globalManager.reportLatency.Observe(latencyMs)
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Enhanced Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
