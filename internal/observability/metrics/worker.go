package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	feedbackTotal    *prometheus.CounterVec
	feedbackDuration *prometheus.HistogramVec
	feedbackInFlight prometheus.Gauge
}

func NewWorkerMetrics() *WorkerMetrics {
	registry := prometheus.NewRegistry()

	feedbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragtutor",
			Subsystem: "worker",
			Name:      "feedback_events_total",
			Help:      "Total consumed feedback events by status.",
		},
		[]string{"service", "status"},
	)
	feedbackDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragtutor",
			Subsystem: "worker",
			Name:      "feedback_handle_duration_seconds",
			Help:      "Feedback event handling duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	feedbackInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragtutor",
			Subsystem: "worker",
			Name:      "feedback_in_flight",
			Help:      "Number of feedback events being handled.",
		},
	)

	registry.MustRegister(feedbackTotal, feedbackDuration, feedbackInFlight)

	return &WorkerMetrics{
		registry:         registry,
		feedbackTotal:    feedbackTotal,
		feedbackDuration: feedbackDuration,
		feedbackInFlight: feedbackInFlight,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartFeedback() {
	m.feedbackInFlight.Inc()
}

func (m *WorkerMetrics) FinishFeedback(service string, duration time.Duration, err error) {
	m.feedbackInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.feedbackTotal.WithLabelValues(service, status).Inc()
	m.feedbackDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}
