// Package observability provides Prometheus metrics and HTTP
// instrumentation for the strom client.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// ChunkBuckets covers read sizes from 256 bytes to 256 KiB.
var ChunkBuckets = prometheus.ExponentialBuckets(256, 4, 6)

var (
	// RequestsTotal counts HTTP requests served by the mock backend by
	// method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strom_requests_total",
			Help: "Total served requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records served request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strom_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks provider response bodies that are
	// currently open for streaming.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "strom_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// ProviderRequestsTotal counts requests sent to LLM providers by
	// provider tag and status class ("2xx", "4xx", "error", ...).
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strom_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "status"},
	)

	// ProviderLatency records time to response headers in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strom_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider"},
	)

	// ProviderTokensTotal counts tokens reported by providers by direction
	// (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strom_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "direction"},
	)

	// DispatchInFlight is the number of requests holding a concurrency slot.
	DispatchInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "strom_dispatch_in_flight",
			Help: "Requests holding a dispatch slot",
		},
	)

	// DispatchQueued is the number of submitted requests waiting for a slot.
	DispatchQueued = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "strom_dispatch_queued",
			Help: "Requests waiting for a dispatch slot",
		},
	)

	// RetryAttemptsTotal counts retried provider attempts.
	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strom_retry_attempts_total",
			Help: "Retried provider attempts",
		},
		[]string{"provider"},
	)

	// ArchiveLoaded is 1 when a buffer archive was loaded, 0 otherwise.
	ArchiveLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "strom_buffer_archive_loaded",
			Help: "Whether a buffer archive is loaded",
		},
	)

	// BufferInitialSource counts initial buffer size decisions by source
	// (exact, nearest, default).
	BufferInitialSource = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strom_buffer_initial_source_total",
			Help: "Initial buffer size decisions",
		},
		[]string{"source"},
	)

	// BufferResizes counts dynamic buffer adjustments by direction.
	BufferResizes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strom_buffer_resizes_total",
			Help: "Dynamic buffer resizes",
		},
		[]string{"direction"},
	)

	// BufferChunkBytes records the size of each read from a response body.
	BufferChunkBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strom_buffer_chunk_bytes",
			Help:    "Bytes per response read",
			Buckets: ChunkBuckets,
		},
	)

	// AFCRounds records the number of model rounds per automatic function
	// calling conversation.
	AFCRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strom_afc_rounds",
			Help:    "Model rounds per AFC run",
			Buckets: []float64{1, 2, 3, 5, 8, 10, 20},
		},
	)

	// ToolExecutionsTotal counts tool executions by name and outcome.
	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strom_tool_executions_total",
			Help: "Tool executions",
		},
		[]string{"tool_name", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		DispatchInFlight,
		DispatchQueued,
		RetryAttemptsTotal,
		ArchiveLoaded,
		BufferInitialSource,
		BufferResizes,
		BufferChunkBytes,
		AFCRounds,
		ToolExecutionsTotal,
	)
}
