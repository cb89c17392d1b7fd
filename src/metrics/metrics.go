package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector of the hub. A nil *Metrics is a valid no-op.
type Metrics struct {
	// Vendor calls made by the routers
	ProviderRequestsTotal *prometheus.CounterVec
	ProviderLatency       *prometheus.HistogramVec
	ProviderState         *prometheus.GaugeVec
	ProviderEventsTotal   *prometheus.CounterVec

	// Cache
	CacheOperationsTotal *prometheus.CounterVec

	// Facade
	OrchestratorRequestsTotal *prometheus.CounterVec
	OrchestratorDuration      *prometheus.HistogramVec
	ValidationWarningsTotal   *prometheus.CounterVec
	BatchOmittedTotal         *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// -----------------------------------------------------------------------------

// New registers the collectors on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(reg)

	return &Metrics{
		ProviderRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdh_provider_requests_total",
				Help: "Vendor calls by router, provider, operation and outcome",
			},
			[]string{"router", "provider", "operation", "outcome"},
		),
		ProviderLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mdh_provider_latency_seconds",
				Help:    "Latency of successful vendor calls",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"router", "provider", "operation"},
		),
		ProviderState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mdh_provider_state",
				Help: "Provider state: 0 healthy, 1 rate limited, 2 circuit open",
			},
			[]string{"router", "provider"},
		),
		ProviderEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdh_provider_events_total",
				Help: "Provider state change events",
			},
			[]string{"provider", "type"},
		),
		CacheOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdh_cache_operations_total",
				Help: "Cache hits, misses, sets, deletes and errors",
			},
			[]string{"operation"},
		),
		OrchestratorRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdh_requests_total",
				Help: "Facade calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		OrchestratorDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mdh_request_duration_seconds",
				Help:    "Facade call duration including cache and failover",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ValidationWarningsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdh_validation_warnings_total",
				Help: "Data quality warnings attached to quotes and bars",
			},
			[]string{"kind"},
		),
		BatchOmittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdh_batch_omitted_symbols_total",
				Help: "Symbols dropped from batch results",
			},
			[]string{"operation"},
		),
		gatherer: gatherer,
	}
}

// -----------------------------------------------------------------------------

func (m *Metrics) ObserveProviderCall(router, provider, operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequestsTotal.WithLabelValues(router, provider, operation, outcome).Inc()
	if outcome == "success" {
		m.ProviderLatency.WithLabelValues(router, provider, operation).Observe(d.Seconds())
	}
}

// -----------------------------------------------------------------------------

func (m *Metrics) SetProviderState(router, provider string, state int) {
	if m == nil {
		return
	}
	m.ProviderState.WithLabelValues(router, provider).Set(float64(state))
}

// -----------------------------------------------------------------------------

func (m *Metrics) ProviderEvent(provider, eventType string) {
	if m == nil {
		return
	}
	m.ProviderEventsTotal.WithLabelValues(provider, eventType).Inc()
}

// -----------------------------------------------------------------------------

func (m *Metrics) CacheOperation(operation string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CacheOperationsTotal.WithLabelValues(operation).Add(float64(n))
}

// -----------------------------------------------------------------------------

func (m *Metrics) ObserveRequest(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.OrchestratorRequestsTotal.WithLabelValues(operation, result).Inc()
	m.OrchestratorDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// -----------------------------------------------------------------------------

func (m *Metrics) ValidationWarnings(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ValidationWarningsTotal.WithLabelValues(kind).Add(float64(n))
}

// -----------------------------------------------------------------------------

func (m *Metrics) BatchOmitted(operation string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BatchOmittedTotal.WithLabelValues(operation).Add(float64(n))
}

// -----------------------------------------------------------------------------

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
