package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	extractionTotal    *prometheus.CounterVec
	reviewFlagsTotal   *prometheus.CounterVec
	sessionItemsActive prometheus.Gauge
	persistTotal       *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atelier",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "atelier",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "atelier",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	extractionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atelier",
			Subsystem: "extraction",
			Name:      "requests_total",
			Help:      "Total extraction requests by kind and outcome.",
		},
		[]string{"service", "kind", "outcome"},
	)
	reviewFlagsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atelier",
			Subsystem: "extraction",
			Name:      "review_flags_total",
			Help:      "Total review flags produced by validation.",
		},
		[]string{"service", "kind", "blocking"},
	)
	sessionItemsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "atelier",
			Subsystem: "session",
			Name:      "items_active",
			Help:      "Items currently held across editing sessions.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	persistTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atelier",
			Subsystem: "persistence",
			Name:      "records_total",
			Help:      "Total records handed to the store by kind and outcome.",
		},
		[]string{"service", "kind", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		extractionTotal,
		reviewFlagsTotal,
		sessionItemsActive,
		persistTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		extractionTotal:    extractionTotal,
		reviewFlagsTotal:   reviewFlagsTotal,
		sessionItemsActive: sessionItemsActive,
		persistTotal:       persistTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &metricsRecorder{
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

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/extractions/"):
		return "/v1/extractions/{job_id}"
	case strings.HasPrefix(path, "/v1/sessions/"):
		return "/v1/sessions/{session_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordExtraction(service, kind, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.extractionTotal.WithLabelValues(service, kind, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordReviewFlags(service, kind string, nonBlocking, blocking int) {
	if nonBlocking > 0 {
		m.reviewFlagsTotal.WithLabelValues(service, kind, "false").Add(float64(nonBlocking))
	}
	if blocking > 0 {
		m.reviewFlagsTotal.WithLabelValues(service, kind, "true").Add(float64(blocking))
	}
}

func (m *HTTPServerMetrics) SetSessionItems(count int) {
	m.sessionItemsActive.Set(float64(count))
}

func (m *HTTPServerMetrics) RecordPersist(service, kind, outcome string) {
	m.persistTotal.WithLabelValues(service, kind, outcome).Inc()
}

type metricsRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *metricsRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
