package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest("summary", 200, 10*time.Millisecond)
	m.ObserveRequest("summary", 200, 20*time.Millisecond)
	m.ObserveRequest("calendar", 0, time.Millisecond)
	m.RefreshResult("dashboard", ResultStale)
	m.BreakerOpen(true)

	if got := testutil.ToFloat64(m.apiRequests.WithLabelValues("summary", "200")); got != 2 {
		t.Errorf("summary requests = %v; want 2", got)
	}
	if got := testutil.ToFloat64(m.apiRequests.WithLabelValues("calendar", "0")); got != 1 {
		t.Errorf("calendar transport errors = %v; want 1", got)
	}
	if got := testutil.ToFloat64(m.viewRefresh.WithLabelValues("dashboard", ResultStale)); got != 1 {
		t.Errorf("stale refreshes = %v; want 1", got)
	}
	if got := testutil.ToFloat64(m.breakerState); got != 1 {
		t.Errorf("breaker gauge = %v; want 1", got)
	}
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("summary", 200, time.Second)
	m.RefreshResult("dashboard", ResultApplied)
	m.BreakerOpen(true)
}
