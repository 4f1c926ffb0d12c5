package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"cryptorates-service/internal/application"
)

var _ application.Metrics = (*RateMetrics)(nil)

// RateMetrics exposes aggregation-engine counters and gauges on the default
// prometheus registry, served from the /metrics endpoint.
type RateMetrics struct {
	aggregationsTotal   *prometheus.CounterVec
	aggregationDuration *prometheus.HistogramVec
	providerErrorsTotal *prometheus.CounterVec
	outliersTotal       *prometheus.CounterVec
	fallbacksTotal      *prometheus.CounterVec
	stalePairs          *prometheus.GaugeVec
}

func NewRateMetrics() *RateMetrics {
	return &RateMetrics{
		aggregationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_aggregations_total",
			Help: "Aggregation cycles per pair and result.",
		}, []string{"pair", "result"}),
		aggregationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rate_aggregation_duration_seconds",
			Help:    "Wall time of one aggregation cycle.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pair"}),
		providerErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_provider_errors_total",
			Help: "Failed provider calls per provider.",
		}, []string{"provider"}),
		outliersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_outliers_rejected_total",
			Help: "Quotes excluded from aggregation as statistical outliers.",
		}, []string{"provider"}),
		fallbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_fallbacks_total",
			Help: "Cycles served from the last persisted aggregate.",
		}, []string{"pair"}),
		stalePairs: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rate_pair_stale",
			Help: "1 when a monitored pair has not refreshed within the staleness threshold.",
		}, []string{"pair"}),
	}
}

func (m *RateMetrics) AggregationDone(pair string, ok bool, elapsed time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.aggregationsTotal.WithLabelValues(pair, result).Inc()
	m.aggregationDuration.WithLabelValues(pair).Observe(elapsed.Seconds())
}

func (m *RateMetrics) ProviderError(provider string) {
	m.providerErrorsTotal.WithLabelValues(provider).Inc()
}

func (m *RateMetrics) OutlierRejected(provider string) {
	m.outliersTotal.WithLabelValues(provider).Inc()
}

func (m *RateMetrics) FallbackUsed(pair string) {
	m.fallbacksTotal.WithLabelValues(pair).Inc()
}

func (m *RateMetrics) PairStaleness(pair string, stale bool) {
	v := 0.0
	if stale {
		v = 1.0
	}
	m.stalePairs.WithLabelValues(pair).Set(v)
}
