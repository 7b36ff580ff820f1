package telemetry

import (
	"context"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// ---------------------------------------------------------------------------
// Registration. Describe() is used instead of Gather() because *Vec metrics
// with no observed label set are absent from Gather output.
// ---------------------------------------------------------------------------

func TestMetrics_AllRegistered(t *testing.T) {
	cases := []struct {
		name string
		c    prometheus.Collector
	}{
		{"http_requests_total", HTTPRequestsTotal},
		{"http_request_duration_seconds", HTTPRequestDuration},
		{"task_mutations_total", TaskMutationsTotal},
		{"audit_entries_written_total", AuditEntriesWrittenTotal},
		{"audit_ship_failures_total", AuditShipFailuresTotal},
		{"authorization_denials_total", AuthorizationDenialsTotal},
		{"rate_limit_rejections_total", RateLimitRejectionsTotal},
		{"db_open_connections", DBOpenConnections},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := make(chan *prometheus.Desc, 10)
			tc.c.Describe(ch)
			close(ch)
			for desc := range ch {
				if strings.Contains(desc.String(), `"`+tc.name+`"`) {
					return
				}
			}
			t.Errorf("metric %q: Describe() returned no descriptor with this fqName", tc.name)
		})
	}
}

func TestMetrics_TaskMutationsTotal_CanBeIncremented(t *testing.T) {
	labels := prometheus.Labels{"action": "UPDATE"}
	before := counterValue(t, TaskMutationsTotal, labels)
	TaskMutationsTotal.WithLabelValues("UPDATE").Inc()
	if after := counterValue(t, TaskMutationsTotal, labels); after-before != 1 {
		t.Errorf("counter moved by %.0f, want 1", after-before)
	}
}

func TestMetrics_AuthorizationDenials_SeparateReasons(t *testing.T) {
	forbidden := prometheus.Labels{"reason": "forbidden"}
	unauth := prometheus.Labels{"reason": "unauthenticated"}
	f0, u0 := counterValue(t, AuthorizationDenialsTotal, forbidden), counterValue(t, AuthorizationDenialsTotal, unauth)

	AuthorizationDenialsTotal.WithLabelValues("forbidden").Inc()

	if got := counterValue(t, AuthorizationDenialsTotal, forbidden) - f0; got != 1 {
		t.Errorf("forbidden moved by %.0f, want 1", got)
	}
	if got := counterValue(t, AuthorizationDenialsTotal, unauth) - u0; got != 0 {
		t.Errorf("unauthenticated moved by %.0f, want 0", got)
	}
}

func TestMetrics_RateLimitRejections_CanBeIncremented(t *testing.T) {
	before := plainCounterValue(t, RateLimitRejectionsTotal)
	RateLimitRejectionsTotal.Inc()
	if after := plainCounterValue(t, RateLimitRejectionsTotal); after-before != 1 {
		t.Errorf("counter moved by %.0f, want 1", after-before)
	}
}

func TestStartDBStatsCollector_SetsGauge(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	mock.ExpectPing()

	DBOpenConnections.Set(-1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartDBStatsCollector(ctx, db, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if gaugeValue(t, DBOpenConnections) >= 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("collector never updated db_open_connections")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func counterValue(t *testing.T, cv *prometheus.CounterVec, labels prometheus.Labels) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 20)
	cv.Collect(ch)
	close(ch)
	for m := range ch {
		var dm dto.Metric
		if err := m.Write(&dm); err != nil {
			continue
		}
		if labelsMatch(dm.GetLabel(), labels) {
			return dm.GetCounter().GetValue()
		}
	}
	return 0
}

func plainCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var dm dto.Metric
	if err := c.Write(&dm); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return dm.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var dm dto.Metric
	if err := g.Write(&dm); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return dm.GetGauge().GetValue()
}

func labelsMatch(got []*dto.LabelPair, want prometheus.Labels) bool {
	for k, v := range want {
		found := false
		for _, lp := range got {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
