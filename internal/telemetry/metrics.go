// Package telemetry exposes the service's Prometheus metrics.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turfscan/turfscan/internal/adapter"
	"github.com/turfscan/turfscan/internal/model"
)

// Metrics holds every collector the service records into. Each instance
// carries its own registry so tests never trip duplicate-registration
// panics.
type Metrics struct {
	registry *prometheus.Registry

	AdapterFetches  *prometheus.CounterVec
	AdapterDuration *prometheus.HistogramVec
	AdapterTrust    *prometheus.GaugeVec

	EngineRequests *prometheus.CounterVec
	AuditVerdicts  *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	OverridesPending prometheus.Gauge
}

// New builds and registers the full metric set.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		AdapterFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turfscan_adapter_fetches_total",
				Help: "Adapter fetch attempts by outcome",
			},
			[]string{"adapter", "status"},
		),

		AdapterDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "turfscan_adapter_fetch_seconds",
				Help:    "Adapter fetch duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
			},
			[]string{"adapter"},
		),

		AdapterTrust: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "turfscan_adapter_trust_ratio",
				Help: "Share of runners with trustworthy odds in the last fetch",
			},
			[]string{"adapter"},
		),

		EngineRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turfscan_engine_responses_total",
				Help: "Aggregated responses served by data freshness",
			},
			[]string{"freshness"},
		),

		AuditVerdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turfscan_audit_verdicts_total",
				Help: "Audit verdicts issued",
			},
			[]string{"verdict"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turfscan_http_requests_total",
				Help: "API requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "turfscan_http_request_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"route"},
		),

		OverridesPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "turfscan_manual_overrides_pending",
				Help: "Manual override requests waiting for a human",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AdapterFetches,
		m.AdapterDuration,
		m.AdapterTrust,
		m.EngineRequests,
		m.AuditVerdicts,
		m.HTTPRequests,
		m.HTTPDuration,
		m.OverridesPending,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReports records the per-adapter outcome of one engine pass.
func (m *Metrics) ObserveReports(reports []adapter.Report) {
	for _, rep := range reports {
		m.AdapterFetches.WithLabelValues(rep.Adapter, rep.Status).Inc()
		if rep.Status == adapter.StatusSuccess {
			m.AdapterDuration.WithLabelValues(rep.Adapter).Observe(rep.Duration.Seconds())
			m.AdapterTrust.WithLabelValues(rep.Adapter).Set(rep.TrustRatio)
		}
	}
}

// ObserveVerdict counts one settled audit verdict.
func (m *Metrics) ObserveVerdict(v model.Verdict) {
	m.AuditVerdicts.WithLabelValues(string(v)).Inc()
}

// ObserveHTTP records one finished API request.
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
