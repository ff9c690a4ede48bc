// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contas_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contas_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	importRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contas_import_rows_total",
			Help: "CSV rows processed by import, by outcome",
		},
		[]string{"outcome"},
	)

	importRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contas_import_rejections_total",
			Help: "Rejected CSV rows by reason",
		},
		[]string{"reason"},
	)

	rateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "contas_rate_limited_total",
			Help: "Requests refused by the rate limiter",
		},
	)

	eventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "contas_event_publish_errors_total",
			Help: "Transaction events that could not be published",
		},
	)

	mirrorOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contas_sheet_mirror_operations_total",
			Help: "Spreadsheet mirror writes by operation and result",
		},
		[]string{"operation", "result"},
	)
)

// ObserveHTTP records one finished request. route is the router pattern,
// not the raw path, to keep label cardinality bounded.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveImport records the outcome of one CSV import.
func ObserveImport(created int, rejectedReasons []string) {
	importRows.WithLabelValues("created").Add(float64(created))
	importRows.WithLabelValues("rejected").Add(float64(len(rejectedReasons)))
	for _, r := range rejectedReasons {
		importRejections.WithLabelValues(r).Inc()
	}
}

func RateLimited() { rateLimited.Inc() }

func EventPublishFailed() { eventPublishErrors.Inc() }

// MirrorWrite records a spreadsheet mirror upsert or delete.
func MirrorWrite(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	mirrorOperations.WithLabelValues(operation, result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
