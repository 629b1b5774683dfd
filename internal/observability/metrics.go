package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	searchDuration    prometheus.Histogram
	writeDuration     prometheus.Histogram
	embeddingDuration prometheus.Histogram
	memoriesTotal     prometheus.Gauge

	searchTotal        *prometheus.CounterVec
	writeTotal         *prometheus.CounterVec
	usageWriteFailures prometheus.Counter

	gatewayRequestTotal    *prometheus.CounterVec
	gatewayRequestDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			searchDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_search_duration_seconds",
					Help:    "Hybrid search duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			writeDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_write_duration_seconds",
					Help:    "Memory write (add/update/delete) duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			embeddingDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "embedding_duration_seconds",
					Help:    "Embedding generation duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			memoriesTotal: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "memories_total",
					Help: "Total memory records in the store.",
				},
			),
			searchTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "memory_search_total",
					Help: "Total searches by status.",
				},
				[]string{"status"},
			),
			writeTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "memory_write_total",
					Help: "Total write operations by kind and status.",
				},
				[]string{"kind", "status"},
			),
			usageWriteFailures: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "usage_write_failures_total",
					Help: "Total best-effort usage bookkeeping failures.",
				},
			),
			gatewayRequestTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gateway_request_total",
					Help: "Total gateway RPC requests by method and status.",
				},
				[]string{"method", "status"},
			),
			gatewayRequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "gateway_request_duration_seconds",
					Help:    "Gateway RPC request duration in seconds by method.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method"},
			),
		}

		prometheus.MustRegister(
			m.searchDuration,
			m.writeDuration,
			m.embeddingDuration,
			m.memoriesTotal,
			m.searchTotal,
			m.writeTotal,
			m.usageWriteFailures,
			m.gatewayRequestTotal,
			m.gatewayRequestDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordSearch(duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.searchTotal.WithLabelValues(status).Inc()
	m.searchDuration.Observe(duration.Seconds())
}

func RecordWrite(kind string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.writeTotal.WithLabelValues(kind, status).Inc()
	m.writeDuration.Observe(duration.Seconds())
}

func RecordEmbedding(duration time.Duration) {
	getMetrics().embeddingDuration.Observe(duration.Seconds())
}

func RecordUsageWriteFailure() {
	getMetrics().usageWriteFailures.Inc()
}

func SetMemoriesTotal(total int) {
	getMetrics().memoriesTotal.Set(float64(total))
}

func RecordGatewayRequest(method string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.gatewayRequestTotal.WithLabelValues(method, status).Inc()
	m.gatewayRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}
