// Package metrics exposes prometheus registries for the api and worker
// processes. Recording is fire-and-forget; nothing here affects control flow.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	responsesTotal     *prometheus.CounterVec
	responseLength     prometheus.Gauge
	turnDuration       *prometheus.HistogramVec
	retrievalDuration  *prometheus.HistogramVec
	similarityDistance *prometheus.HistogramVec
	retrievalAttempts  *prometheus.CounterVec
	retrievalHits      *prometheus.CounterVec

	indexSize         *prometheus.GaugeVec
	indexLastBuild    *prometheus.GaugeVec
	documentsIndexed  *prometheus.CounterVec
	ingestionErrors   *prometheus.CounterVec
	oversizedUploads  *prometheus.CounterVec
}

func NewAPIMetrics() *APIMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragtutor",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragtutor",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragtutor",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		},
	)

	responsesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragtutor",
			Subsystem: "chat",
			Name:      "responses_total",
			Help:      "Total answered turns by mode.",
		},
		[]string{"service", "mode"},
	)
	responseLength := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragtutor",
			Subsystem: "chat",
			Name:      "last_response_length_chars",
			Help:      "Length of the most recent generated response.",
		},
	)
	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragtutor",
			Subsystem: "chat",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn duration in seconds by mode.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "mode"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragtutor",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	similarityDistance := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragtutor",
			Subsystem: "retrieval",
			Name:      "similarity_distance",
			Help:      "Cosine distance distribution of retrieved passages.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.7, 0.9, 1.1, 1.3, 1.5},
		},
		[]string{"service"},
	)
	retrievalAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragtutor",
			Subsystem: "retrieval",
			Name:      "attempts_total",
			Help:      "Total retrieval attempts.",
		},
		[]string{"service"},
	)
	retrievalHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragtutor",
			Subsystem: "retrieval",
			Name:      "hits_total",
			Help:      "Total retrievals returning at least one passage.",
		},
		[]string{"service"},
	)

	indexSize := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ragtutor",
			Subsystem: "index",
			Name:      "size_chunks",
			Help:      "Chunk count of the most recently built collection.",
		},
		[]string{"service"},
	)
	indexLastBuild := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ragtutor",
			Subsystem: "index",
			Name:      "last_build_timestamp_seconds",
			Help:      "Unix time of the most recent collection build.",
		},
		[]string{"service"},
	)
	documentsIndexed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragtutor",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total successfully indexed documents.",
		},
		[]string{"service"},
	)
	ingestionErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragtutor",
			Subsystem: "ingest",
			Name:      "errors_total",
			Help:      "Total failed document ingestions.",
		},
		[]string{"service"},
	)
	oversizedUploads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragtutor",
			Subsystem: "ingest",
			Name:      "oversized_uploads_total",
			Help:      "Total uploads above the configured size threshold.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		responsesTotal,
		responseLength,
		turnDuration,
		retrievalDuration,
		similarityDistance,
		retrievalAttempts,
		retrievalHits,
		indexSize,
		indexLastBuild,
		documentsIndexed,
		ingestionErrors,
		oversizedUploads,
	)

	return &APIMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		responsesTotal:     responsesTotal,
		responseLength:     responseLength,
		turnDuration:       turnDuration,
		retrievalDuration:  retrievalDuration,
		similarityDistance: similarityDistance,
		retrievalAttempts:  retrievalAttempts,
		retrievalHits:      retrievalHits,
		indexSize:          indexSize,
		indexLastBuild:     indexLastBuild,
		documentsIndexed:   documentsIndexed,
		ingestionErrors:    ingestionErrors,
		oversizedUploads:   oversizedUploads,
	}
}

func (m *APIMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *APIMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses chat ids so the path label stays low-cardinality.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/v1/chats/") {
		return path
	}
	rest := strings.TrimPrefix(path, "/v1/chats/")
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		return "/v1/chats/{chat_id}" + rest[idx:]
	}
	return "/v1/chats/{chat_id}"
}

// RecordTurn captures one answered turn: count by mode, reply length, and
// end-to-end latency.
func (m *APIMetrics) RecordTurn(service, mode string, replyLength int, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	m.responsesTotal.WithLabelValues(service, mode).Inc()
	m.responseLength.Set(float64(replyLength))
	m.turnDuration.WithLabelValues(service, mode).Observe(duration.Seconds())
}

// RecordRetrieval captures one retrieval attempt with its match distances.
func (m *APIMetrics) RecordRetrieval(service string, distances []float64, duration time.Duration) {
	m.retrievalAttempts.WithLabelValues(service).Inc()
	m.retrievalDuration.WithLabelValues(service).Observe(duration.Seconds())
	if len(distances) == 0 {
		return
	}
	m.retrievalHits.WithLabelValues(service).Inc()
	for _, d := range distances {
		m.similarityDistance.WithLabelValues(service).Observe(d)
	}
}

// RecordIngestion captures one successful document build.
func (m *APIMetrics) RecordIngestion(service string, chunkCount int) {
	m.documentsIndexed.WithLabelValues(service).Inc()
	m.indexSize.WithLabelValues(service).Set(float64(chunkCount))
	m.indexLastBuild.WithLabelValues(service).Set(float64(time.Now().Unix()))
}

func (m *APIMetrics) RecordIngestionError(service string) {
	m.ingestionErrors.WithLabelValues(service).Inc()
}

func (m *APIMetrics) RecordOversizedUpload(service string) {
	m.oversizedUploads.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
