// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	outcomes     *prometheus.CounterVec
	gatewayCalls *prometheus.HistogramVec
	requests     *prometheus.CounterVec
	gatherer     prometheus.Gatherer
}

// New registers the collectors on reg. Pass a fresh prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paygate_processor_outcomes_total",
				Help: "Classified gateway responses by operation and outcome.",
			},
			[]string{"method", "outcome"},
		),
		gatewayCalls: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paygate_gateway_call_duration_seconds",
				Help:    "Duration of gateway calls by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paygate_http_requests_total",
				Help: "HTTP requests by route and status.",
			},
			[]string{"route", "status"},
		),
		gatherer: reg,
	}
	reg.MustRegister(m.outcomes, m.gatewayCalls, m.requests)
	return m
}

func (m *Metrics) ObserveOutcome(method, outcome string) {
	m.outcomes.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) ObserveGatewayCall(method string, d time.Duration) {
	m.gatewayCalls.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) ObserveRequest(route string, status int) {
	m.requests.WithLabelValues(route, http.StatusText(status)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
