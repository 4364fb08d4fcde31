package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geowatch"

// Metrics holds the collectors of scraping runs
type Metrics struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	items       *prometheus.CounterVec
	requests    *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	lastRun     *prometheus.GaugeVec
}

// New creates the collectors on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Scraping runs by platform and result.",
		}, []string{"platform", "result"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Processed items by platform and outcome.",
		}, []string{"platform", "outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_requests_total",
			Help:      "Requests sent to platforms by operation.",
		}, []string{"platform", "operation"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of scraping runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"platform"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished run.",
		}, []string{"platform"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runs, m.items, m.requests, m.runDuration, m.lastRun,
	)
	return m
}

// ItemProcessed counts one item outcome (accessible, restricted, unknown, skipped, failed)
func (m *Metrics) ItemProcessed(platform, outcome string) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(platform, outcome).Inc()
}

// RequestSent counts one platform request
func (m *Metrics) RequestSent(platform, operation string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(platform, operation).Inc()
}

// RunFinished records the result and duration of a run
func (m *Metrics) RunFinished(platform string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.runs.WithLabelValues(platform, result).Inc()
	m.runDuration.WithLabelValues(platform).Observe(elapsed.Seconds())
	m.lastRun.WithLabelValues(platform).SetToCurrentTime()
}

// Registry exposes the registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
