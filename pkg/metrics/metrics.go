package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway
type Metrics struct {
	// Request pipeline
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Backend proxying
	BackendRequestsTotal   *prometheus.CounterVec
	BackendRequestDuration *prometheus.HistogramVec
	BackendErrors          *prometheus.CounterVec

	// Gates
	RateLimitRejected prometheus.Counter
	AuthRejected      *prometheus.CounterVec

	// Health probing
	ServiceHealth      *prometheus.GaugeVec
	ProbeDuration      *prometheus.HistogramVec
	RegisteredServices prometheus.Gauge
}

// New creates a Metrics instance registered on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance with a custom registry
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "Total number of inbound HTTP requests",
			},
			[]string{"method", "service", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "Inbound request latencies in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "service"},
		),
		BackendRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_backend_requests_total",
				Help: "Total number of proxied backend requests",
			},
			[]string{"service", "status"},
		),
		BackendRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_backend_request_duration_seconds",
				Help:    "Backend request latencies in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		BackendErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_backend_errors_total",
				Help: "Total number of backend transport failures",
			},
			[]string{"service", "reason"},
		),
		RateLimitRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_rate_limit_rejected_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
		AuthRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_auth_rejected_total",
				Help: "Total number of requests rejected by authentication",
			},
			[]string{"reason"},
		),
		ServiceHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_service_healthy",
				Help: "Whether a registered service answers health probes (1 healthy, 0 unhealthy)",
			},
			[]string{"service"},
		),
		ProbeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_health_probe_duration_seconds",
				Help:    "Health probe latencies in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		RegisteredServices: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_registered_services",
				Help: "Number of services currently registered",
			},
		),
	}
}
