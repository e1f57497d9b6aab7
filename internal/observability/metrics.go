package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedService is the label value used for requests that do not
// resolve to any configured service, ensuring bounded cardinality.
const unmatchedService = "unmatched"

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	upstreamAttempts *prometheus.CounterVec
	serviceHealth    *prometheus.GaugeVec
	rateLimitHits    *prometheus.CounterVec
	startTime        prometheus.Gauge
	registry         *prometheus.Registry
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "service", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "service", "status"},
	)

	m.upstreamAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_attempts_total",
			Help:      "Total number of forwarding attempts per service",
		},
		[]string{"service", "outcome"},
	)

	m.serviceHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "service_health",
			Help:      "Backend service health (1 healthy, 0 unhealthy)",
		},
		[]string{"service"},
	)

	m.rateLimitHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Total number of rate limited requests",
		},
		[]string{"key_type"},
	)

	m.startTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Unix timestamp of gateway start",
		},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.upstreamAttempts,
		m.serviceHealth,
		m.rateLimitHits,
		m.startTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.startTime.SetToCurrentTime()

	return m
}

// RecordRequest records a completed request.
func (m *Metrics) RecordRequest(method, service string, status int, duration time.Duration) {
	if service == "" {
		service = unmatchedService
	}
	statusLabel := strconv.Itoa(status)
	m.requestsTotal.WithLabelValues(method, service, statusLabel).Inc()
	m.requestDuration.WithLabelValues(method, service, statusLabel).Observe(duration.Seconds())
}

// RecordUpstreamAttempt records a single forwarding attempt.
func (m *Metrics) RecordUpstreamAttempt(service, outcome string) {
	m.upstreamAttempts.WithLabelValues(service, outcome).Inc()
}

// SetServiceHealth records the health of a backend service.
func (m *Metrics) SetServiceHealth(service string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.serviceHealth.WithLabelValues(service).Set(v)
}

// RecordRateLimitRejection records a rate limited request.
func (m *Metrics) RecordRateLimitRejection(keyType string) {
	m.rateLimitHits.WithLabelValues(keyType).Inc()
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
