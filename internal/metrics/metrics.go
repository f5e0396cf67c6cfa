package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for relayed requests.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
)

// Collector holds the relay's Prometheus metrics on its own registry.
//
// Metrics:
//   - relay_backend_requests_total: backend calls by model and outcome
//   - relay_backend_request_duration_seconds: backend call latency
//   - relay_ratelimit_rejections_total: requests refused by admission control
type Collector struct {
	registry *prometheus.Registry

	backendRequests   *prometheus.CounterVec
	backendDuration   *prometheus.HistogramVec
	rateLimitRejected prometheus.Counter
}

// NewCollector creates and registers the relay metrics. A nil registry gets a
// fresh one with Go runtime and process collectors attached.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &Collector{
		registry: registry,
		backendRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "relay",
				Subsystem: "backend",
				Name:      "requests_total",
				Help:      "Total number of calls made to the inference backend",
			},
			[]string{"model", "outcome"},
		),
		backendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "relay",
				Subsystem: "backend",
				Name:      "request_duration_seconds",
				Help:      "Duration of inference backend calls in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"model"},
		),
		rateLimitRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "relay",
				Subsystem: "ratelimit",
				Name:      "rejections_total",
				Help:      "Total number of requests rejected by the rate limiter",
			},
		),
	}

	registry.MustRegister(c.backendRequests, c.backendDuration, c.rateLimitRejected)
	return c
}

// ObserveBackendCall records one backend call and how it ended.
func (c *Collector) ObserveBackendCall(model, outcome string, duration time.Duration) {
	c.backendRequests.WithLabelValues(model, outcome).Inc()
	c.backendDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RateLimited records one rejected request.
func (c *Collector) RateLimited() {
	c.rateLimitRejected.Inc()
}

// Handler exposes the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
