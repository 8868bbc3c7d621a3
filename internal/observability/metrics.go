package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interview_gateway_active_sessions",
		Help: "Number of active interview sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_gateway_sessions_total",
		Help: "Total number of interview sessions handled",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_gateway_session_duration_seconds",
		Help:    "Duration of interview sessions in seconds",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1800, 3600},
	})

	// Transcript metrics
	transcriptSegments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_gateway_transcript_segments_total",
		Help: "Total transcript segments applied, by kind",
	}, []string{"kind"}) // kind: "partial" or "final"

	// LLM metrics
	llmRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_gateway_llm_requests_total",
		Help: "Total number of LLM requests, by operation and status",
	}, []string{"operation", "status"})

	llmLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "interview_gateway_llm_latency_seconds",
		Help:    "LLM request latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"operation"})

	// Frame metrics
	framesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_gateway_frames_sent_total",
		Help: "Total frames sent to clients, by frame type",
	}, []string{"type"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "interview_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_gateway_audio_bytes_total",
		Help: "Total audio bytes handled",
	}, []string{"direction"}) // direction: "in" (client -> ASR)
)

// Metrics tracks metrics for a single interview session
type Metrics struct {
	sessionID    string
	startTime    time.Time
	llmStartTime map[string]time.Time
	mu           sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID:    sessionID,
		startTime:    time.Now(),
		llmStartTime: make(map[string]time.Time),
	}
}

// RecordSessionStart records the start of a session
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *Metrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordSegment records an applied transcript segment
func (m *Metrics) RecordSegment(final bool) {
	kind := "partial"
	if final {
		kind = "final"
	}
	transcriptSegments.WithLabelValues(kind).Inc()
}

// RecordLLMStart records the start of an LLM operation
func (m *Metrics) RecordLLMStart(operation string) {
	m.mu.Lock()
	m.llmStartTime[operation] = time.Now()
	m.mu.Unlock()
}

// RecordLLMEnd records the end of an LLM operation
func (m *Metrics) RecordLLMEnd(operation string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if start, ok := m.llmStartTime[operation]; ok {
		llmLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		delete(m.llmStartTime, operation)
	}

	status := "success"
	if !success {
		status = "error"
	}
	llmRequests.WithLabelValues(operation, status).Inc()
}

// RecordFrameSent records a frame sent to the client
func (m *Metrics) RecordFrameSent(frameType string) {
	framesSent.WithLabelValues(frameType).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes handled
func (m *Metrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytesForwarded.WithLabelValues(direction).Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
