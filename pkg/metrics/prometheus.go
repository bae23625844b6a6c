// Package metrics provides Prometheus metrics for the oratora evaluation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for processed jobs.
const (
	OutcomeScored      = "scored"
	OutcomePlaceholder = "placeholder"
	OutcomeDiscarded   = "discarded"
)

// Manager owns every collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Queue and drain loop
	jobsEnqueued   *prometheus.CounterVec
	jobsProcessed  *prometheus.CounterVec
	queueLength    prometheus.Gauge
	queueWait      prometheus.Histogram
	drainActive    prometheus.Gauge
	drainsStarted  prometheus.Counter
	admissionDrops *prometheus.CounterVec

	// Scoring client
	scoringLatency *prometheus.HistogramVec
	scoringErrors  *prometheus.CounterVec

	// Sessions
	activeSessions   prometheus.Gauge
	sessionsCreated  *prometheus.CounterVec
	sessionsTerminal *prometheus.CounterVec
	sessionsEvicted  prometheus.Counter
	blobsEvicted     prometheus.Counter
	sweepDuration    prometheus.Histogram

	// Persistence mirror
	persistenceErrors *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// Runtime
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics singleton

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out of /metrics

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "oratora",
		subsystem:        "evaluation",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	// Scoring calls take seconds, so the default buckets (in ms) are too narrow.
	scoringBuckets := []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 20000, 40000, 80000}

	m.jobsEnqueued = m.counterVec("jobs_enqueued_total", "Evaluation jobs accepted into the queue", "game")
	m.jobsProcessed = m.counterVec("jobs_processed_total", "Evaluation jobs popped and processed by outcome", "game", "outcome")
	m.queueLength = m.gauge("queue_length", "Jobs waiting in the evaluation queue")
	m.queueWait = m.histogram("queue_wait_milliseconds", "Time a job spent queued before it was popped", scoringBuckets)
	m.drainActive = m.gauge("drain_active", "1 while a drain loop is running")
	m.drainsStarted = m.counter("drains_started_total", "Drain loops started")
	m.admissionDrops = m.counterVec("admission_rejections_total", "Submissions rejected before enqueue", "reason")

	m.scoringLatency = m.histogramVec("scoring_latency_milliseconds", "Scoring client call latency", scoringBuckets, "game")
	m.scoringErrors = m.counterVec("scoring_errors_total", "Scoring failures replaced with a placeholder", "game", "kind")

	m.activeSessions = m.gauge("active_sessions", "Sessions held in the registry")
	m.sessionsCreated = m.counterVec("sessions_created_total", "Sessions materialized in the registry", "game")
	m.sessionsTerminal = m.counterVec("sessions_terminal_total", "Sessions that reached a terminal status", "game", "status")
	m.sessionsEvicted = m.counter("sessions_evicted_total", "Sessions removed by the retention sweeper")
	m.blobsEvicted = m.counter("blobs_evicted_total", "Audio blobs removed by the retention sweeper")
	m.sweepDuration = m.histogram("sweep_duration_milliseconds", "Retention sweep duration", m.histogramBuckets)

	m.persistenceErrors = m.counterVec("persistence_errors_total", "Best-effort session store writes that failed", "operation")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration",
		m.histogramBuckets, "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordJobEnqueued counts an accepted job.
func RecordJobEnqueued(game string) {
	globalManager.jobsEnqueued.WithLabelValues(game).Inc()
}

// RecordJobProcessed counts a popped job by outcome.
func RecordJobProcessed(game, outcome string) {
	globalManager.jobsProcessed.WithLabelValues(game, outcome).Inc()
}

// UpdateQueueLength sets the number of waiting jobs.
func UpdateQueueLength(n int) {
	globalManager.queueLength.Set(float64(n))
}

// RecordQueueWait observes how long a job waited before being popped.
func RecordQueueWait(ms float64) {
	globalManager.queueWait.Observe(ms)
}

// SetDrainActive flips the drain gauge.
func SetDrainActive(active bool) {
	if active {
		globalManager.drainActive.Set(1)
		globalManager.drainsStarted.Inc()
		return
	}
	globalManager.drainActive.Set(0)
}

// RecordAdmissionRejected counts a submission refused before enqueue.
func RecordAdmissionRejected(reason string) {
	globalManager.admissionDrops.WithLabelValues(reason).Inc()
}

// RecordScoringLatency observes a scoring call duration.
func RecordScoringLatency(game string, ms float64) {
	globalManager.scoringLatency.WithLabelValues(game).Observe(ms)
}

// RecordScoringError counts a scoring failure.
func RecordScoringError(game, kind string) {
	globalManager.scoringErrors.WithLabelValues(game, kind).Inc()
}

// UpdateActiveSessions sets the registry size.
func UpdateActiveSessions(n int) {
	globalManager.activeSessions.Set(float64(n))
}

// RecordSessionCreated counts a new registry entry.
func RecordSessionCreated(game string) {
	globalManager.sessionsCreated.WithLabelValues(game).Inc()
}

// RecordSessionTerminal counts a terminal status transition.
func RecordSessionTerminal(game, status string) {
	globalManager.sessionsTerminal.WithLabelValues(game, status).Inc()
}

// RecordSweep records the result of one retention pass.
func RecordSweep(sessions, blobs int, ms float64) {
	globalManager.sessionsEvicted.Add(float64(sessions))
	globalManager.blobsEvicted.Add(float64(blobs))
	globalManager.sweepDuration.Observe(ms)
}

// RecordPersistenceError counts a failed mirror write.
func RecordPersistenceError(operation string) {
	globalManager.persistenceErrors.WithLabelValues(operation).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the registry served on /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
