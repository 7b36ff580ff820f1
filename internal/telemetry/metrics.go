// Package telemetry provides the structured logger and the Prometheus metrics of the
// task manager.
//
// All metrics are registered against the default Prometheus registry and served by the
// side-channel HTTP server started in cmd/server:
//
//	GET http://<host>:<TM_TELEMETRY_METRICS_PORT>/metrics
//
// HTTP metrics use c.FullPath() (for example /api/v1/tasks/:id) rather than the raw URL
// so task ids never become label values.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts requests by {method, path, status}.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, by method, route template and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes latency by {method, path}.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

var (
	// TaskMutationsTotal counts committed task mutations by {action}
	// (CREATE, UPDATE, DELETE).
	TaskMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_mutations_total",
			Help: "Total number of committed task mutations, by audit action.",
		},
		[]string{"action"},
	)

	// AuditEntriesWrittenTotal counts audit rows appended, by {action}.
	AuditEntriesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_entries_written_total",
			Help: "Total number of audit log entries appended, by action.",
		},
		[]string{"action"},
	)

	// AuditShipFailuresTotal counts entries a shipper failed to deliver.
	AuditShipFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_ship_failures_total",
			Help: "Total number of audit entries that failed to reach an external shipper.",
		},
	)
)

var (
	// AuthorizationDenialsTotal counts requests refused by the authorization layer.
	// reason is "unauthenticated" or "forbidden".
	AuthorizationDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_denials_total",
			Help: "Total number of requests denied by route requirements, by reason.",
		},
		[]string{"reason"},
	)

	// RateLimitRejectionsTotal counts requests answered with 429.
	RateLimitRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter.",
		},
	)
)

// DBOpenConnections tracks open connections in the sql.DB pool. It is sampled by
// StartDBStatsCollector rather than per request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples pool statistics every interval until ctx is cancelled
// or the database stops answering pings.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}
