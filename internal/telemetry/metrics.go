package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors used by the API client and the views.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	apiRequests  *prometheus.CounterVec
	apiLatency   *prometheus.HistogramVec
	viewRefresh  *prometheus.CounterVec
	breakerState prometheus.Gauge
}

// Refresh outcomes recorded by RefreshResult.
const (
	ResultApplied = "applied"
	ResultStale   = "stale"
	ResultFailed  = "failed"
)

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		apiRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nlbwdash_api_requests_total",
			Help: "Requests made to the bandwidth API",
		}, []string{"endpoint", "code"}),

		apiLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nlbwdash_api_request_duration_seconds",
			Help:    "Latency of bandwidth API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		viewRefresh: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nlbwdash_view_refresh_total",
			Help: "View refreshes by outcome",
		}, []string{"view", "result"}),

		breakerState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nlbwdash_breaker_open",
			Help: "1 while the API circuit breaker is open",
		}),
	}
}

// ObserveRequest records one API call. code is 0 for transport errors.
func (m *Metrics) ObserveRequest(endpoint string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	m.apiLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (m *Metrics) RefreshResult(view, result string) {
	if m == nil {
		return
	}
	m.viewRefresh.WithLabelValues(view, result).Inc()
}

func (m *Metrics) BreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.breakerState.Set(1)
	} else {
		m.breakerState.Set(0)
	}
}
