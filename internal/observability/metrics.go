// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring docqa.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for answer latencies,
// ranging from 10ms to 120s.
var LLMBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts HTTP requests by route, method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docqa_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: LLMBuckets,
		},
		[]string{"route"},
	)

	// AskDuration records end-to-end question answering time by generator.
	AskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docqa_ask_duration_seconds",
			Help:    "Question answering latency",
			Buckets: LLMBuckets,
		},
		[]string{"generator"},
	)

	// GeneratorErrorsTotal counts language model failures turned into answers.
	GeneratorErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_generator_errors_total",
			Help: "Generator errors",
		},
		[]string{"generator"},
	)

	// DocumentsIngestedTotal counts files indexed, or skipped, by ingest runs.
	DocumentsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_documents_ingested_total",
			Help: "Documents processed",
		},
		[]string{"status"},
	)

	// ChunksIngestedTotal counts chunks written to the vector store.
	ChunksIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docqa_chunks_ingested_total",
			Help: "Chunks indexed",
		},
	)

	// IndexChunks is the number of chunks in the current index.
	IndexChunks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "docqa_index_chunks",
			Help: "Chunks in the current index",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AskDuration,
		GeneratorErrorsTotal,
		DocumentsIngestedTotal,
		ChunksIngestedTotal,
		IndexChunks,
	)
}
