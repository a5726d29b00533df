// Package metrics exposes Prometheus collectors for the archiver service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	archiverPagesTotal    *prometheus.CounterVec
	archiverBytesTotal    *prometheus.CounterVec
	archiverActiveWorkers prometheus.Gauge
	replayRequestsTotal   *prometheus.CounterVec
	httpRequestsTotal     *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		archiverPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archiver_pages_total",
				Help: "Total number of resources archived, labeled by host and status.",
			},
			[]string{"host", "status"},
		)

		archiverBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archiver_bytes_total",
				Help: "Total number of bytes archived, labeled by host.",
			},
			[]string{"host"},
		)

		archiverActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "archiver_active_workers",
				Help: "Number of crawl workers currently running.",
			},
		)

		replayRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replay_requests_total",
				Help: "Total replay lookups, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests served, labeled by method and code.",
			},
			[]string{"method", "code"},
		)
	})
}

// ObservePageArchived records one archived resource.
func ObservePageArchived(host string, statusCode int, bytes int) {
	if archiverPagesTotal == nil {
		return
	}
	archiverPagesTotal.WithLabelValues(host, strconv.Itoa(statusCode)).Inc()
	archiverBytesTotal.WithLabelValues(host).Add(float64(bytes))
}

// WorkerStarted increments the active worker gauge.
func WorkerStarted() {
	if archiverActiveWorkers != nil {
		archiverActiveWorkers.Inc()
	}
}

// WorkerStopped decrements the active worker gauge.
func WorkerStopped() {
	if archiverActiveWorkers != nil {
		archiverActiveWorkers.Dec()
	}
}

// ObserveReplayRequest records one replay lookup outcome
// ("hit", "miss", "bad_request" or "fallback_hit").
func ObserveReplayRequest(outcome string) {
	if replayRequestsTotal != nil {
		replayRequestsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method string, statusCode int) {
	if httpRequestsTotal != nil {
		httpRequestsTotal.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
