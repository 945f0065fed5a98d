// Package metrics provides Prometheus metrics for the roster export service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the export service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Batch metrics
	runsStarted  prometheus.Counter
	runsFinished *prometheus.CounterVec
	runDuration  prometheus.Histogram
	runsActive   prometheus.Gauge

	// Job metrics
	jobTransitions *prometheus.CounterVec
	jobFailures    *prometheus.CounterVec
	jobWarnings    *prometheus.CounterVec
	jobsRendering  prometheus.Gauge
	renderLatency  prometheus.Histogram
	documentBytes  prometheus.Histogram

	// Queue metrics
	queueSize     prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueDequeued prometheus.Counter
	queueDropped  prometheus.Counter

	// Worker metrics
	workerActiveCount prometheus.Gauge

	// Database metrics
	dbQueryLatency *prometheus.HistogramVec
	dbRetries      prometheus.Counter
	dbRowsFetched  prometheus.Counter

	// History store metrics
	historyWriteLatency prometheus.Histogram

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec

	// System metrics
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

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "roster",
		subsystem:        "export",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

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

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.runsStarted = auto.NewCounter(m.counterOpts("runs_started_total",
		"Total number of export runs that reached the queue"))
	m.runsFinished = auto.NewCounterVec(m.counterOpts("runs_finished_total",
		"Total number of export runs by outcome"), []string{"outcome"})
	m.runDuration = auto.NewHistogram(m.histogramOpts("run_duration_milliseconds",
		"Wall time of an export run from start to the last terminal job", m.histogramBuckets))
	m.runsActive = auto.NewGauge(m.gaugeOpts("runs_active",
		"Number of export runs currently in progress"))

	m.jobTransitions = auto.NewCounterVec(m.counterOpts("job_transitions_total",
		"Job state transitions by target state"), []string{"state"})
	m.jobFailures = auto.NewCounterVec(m.counterOpts("job_failures_total",
		"Failed jobs by error kind"), []string{"kind"})
	m.jobWarnings = auto.NewCounterVec(m.counterOpts("job_warnings_total",
		"Non-fatal warnings attached to jobs by kind"), []string{"kind"})
	m.jobsRendering = auto.NewGauge(m.gaugeOpts("jobs_rendering",
		"Number of jobs currently rendering"))
	m.renderLatency = auto.NewHistogram(m.histogramOpts("render_latency_milliseconds",
		"Time spent rendering one roster document", m.histogramBuckets))
	m.documentBytes = auto.NewHistogram(m.histogramOpts("document_bytes",
		"Size of rendered roster documents",
		prometheus.ExponentialBuckets(16*1024, 2, 10)))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size",
		"Current number of pending jobs across all runs"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total",
		"Total number of jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total",
		"Total number of jobs handed to a worker"))
	m.queueDropped = auto.NewCounter(m.counterOpts("queue_dropped_total",
		"Total number of jobs discarded by cancellation before they started"))

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count",
		"Number of running render workers"))

	m.dbQueryLatency = auto.NewHistogramVec(m.histogramOpts("db_query_latency_milliseconds",
		"Roster database query latency by query", m.histogramBuckets), []string{"query"})
	m.dbRetries = auto.NewCounter(m.counterOpts("db_retries_total",
		"Total number of retried roster database queries"))
	m.dbRowsFetched = auto.NewCounter(m.counterOpts("db_rows_fetched_total",
		"Total number of roster rows read from the database"))

	m.historyWriteLatency = auto.NewHistogram(m.histogramOpts("history_write_latency_milliseconds",
		"Latency of writing a status event to the history store",
		[]float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250}))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Errors by component and error type"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes",
		"Heap bytes allocated by the process"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count",
		"Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds",
		"Average GC pause time", []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50}))
}

// Batch Metrics Functions.

// RecordRunStarted increments the started runs counter and the active gauge.
func RecordRunStarted() {
	globalManager.runsStarted.Inc()
	globalManager.runsActive.Inc()
}

// RecordRunFinished records the outcome and wall time of a finished run.
func RecordRunFinished(outcome string, durationMs float64) {
	globalManager.runsFinished.WithLabelValues(outcome).Inc()
	globalManager.runDuration.Observe(durationMs)
	globalManager.runsActive.Dec()
}

// Job Metrics Functions.

// RecordJobTransition counts a job entering state.
func RecordJobTransition(state string) {
	globalManager.jobTransitions.WithLabelValues(state).Inc()
}

// RecordJobFailure counts a failed job by error kind.
func RecordJobFailure(kind string) {
	globalManager.jobFailures.WithLabelValues(kind).Inc()
}

// RecordJobWarning counts a warning attached to a job.
func RecordJobWarning(kind string) {
	globalManager.jobWarnings.WithLabelValues(kind).Inc()
}

// IncJobsRendering marks one more job as rendering.
func IncJobsRendering() {
	globalManager.jobsRendering.Inc()
}

// DecJobsRendering marks one job as no longer rendering.
func DecJobsRendering() {
	globalManager.jobsRendering.Dec()
}

// RecordRenderLatency records the time spent rendering one document.
func RecordRenderLatency(latencyMs float64) {
	globalManager.renderLatency.Observe(latencyMs)
}

// RecordDocumentBytes records the size of a rendered document.
func RecordDocumentBytes(n int64) {
	globalManager.documentBytes.Observe(float64(n))
}

// Queue Metrics Functions.

// AddQueueSize moves the pending job gauge by delta. Several runs share the
// gauge, so queues report changes rather than absolute sizes.
func AddQueueSize(delta int) {
	globalManager.queueSize.Add(float64(delta))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueDropped adds n jobs discarded before they started.
func RecordQueueDropped(n int) {
	globalManager.queueDropped.Add(float64(n))
}

// Worker Metrics Functions.

// AddWorkerActiveCount moves the running worker gauge by delta.
func AddWorkerActiveCount(delta int) {
	globalManager.workerActiveCount.Add(float64(delta))
}

// Database Metrics Functions.

// RecordDBQueryLatency records the latency of one roster query.
func RecordDBQueryLatency(query string, latencyMs float64) {
	globalManager.dbQueryLatency.WithLabelValues(query).Observe(latencyMs)
}

// RecordDBRetry increments the retried query counter.
func RecordDBRetry() {
	globalManager.dbRetries.Inc()
}

// RecordDBRowsFetched adds n fetched rows.
func RecordDBRowsFetched(n int) {
	globalManager.dbRowsFetched.Add(float64(n))
}

// RecordHistoryWriteLatency records the latency of one history write.
func RecordHistoryWriteLatency(latencyMs float64) {
	globalManager.historyWriteLatency.Observe(latencyMs)
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System Metrics Functions.

// UpdateSystemMemoryUsage sets the allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes an average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
