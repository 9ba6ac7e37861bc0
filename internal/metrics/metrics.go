// Package metrics exposes Prometheus collectors for scrape runs.
package metrics

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docwatcher"

// Attempt results.
const (
	ResultOK                = "ok"
	ResultNavigationTimeout = "navigation_timeout"
	ResultPageNotReady      = "page_not_ready"
	ResultNoContent         = "no_content"
	ResultWriteError        = "write_error"
	ResultError             = "error"
)

// Metrics owns a registry and the collectors registered on it. A nil
// *Metrics ignores every observation.
type Metrics struct {
	registry *prometheus.Registry

	pagesTotal          *prometheus.CounterVec
	attemptsTotal       *prometheus.CounterVec
	contentCharsTotal   *prometheus.CounterVec
	pageDurationSeconds *prometheus.HistogramVec
	manifestURLs        prometheus.Gauge
	runsTotal           prometheus.Counter
	lastRunSucceeded    prometheus.Gauge
	lastRunFailed       prometheus.Gauge
	lastRunTimestamp    prometheus.Gauge

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
}

// New builds the collectors on a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		pagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "URLs processed, labeled by site and terminal state.",
		}, []string{"site", "state"}),
		attemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Scrape attempts, labeled by site and result.",
		}, []string{"site", "result"}),
		contentCharsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_characters_total",
			Help:      "Characters of extracted text persisted, labeled by site.",
		}, []string{"site"}),
		pageDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_duration_seconds",
			Help:      "Time spent on one URL including retries, labeled by terminal state.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"state"}),
		manifestURLs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "manifest_urls",
			Help:      "Valid URLs in the most recently loaded manifest.",
		}),
		runsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed scrape runs.",
		}),
		lastRunSucceeded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_succeeded_urls",
			Help:      "URLs that succeeded in the last completed run.",
		}),
		lastRunFailed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_failed_urls",
			Help:      "URLs that failed in the last completed run.",
		}),
		lastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last run completed.",
		}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests served by the status endpoint, labeled by method and code.",
		}, []string{"method", "code"}),
		httpRequestDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Status endpoint latencies, labeled by method and route.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteTextfile dumps the registry to path for the node_exporter textfile
// collector. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// ObserveAttempt counts one render→extract→persist attempt.
func (m *Metrics) ObserveAttempt(rawURL, result string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(SanitizeSite(rawURL), result).Inc()
}

// ObserveOutcome records a URL reaching a terminal state.
func (m *Metrics) ObserveOutcome(rawURL, state string, duration time.Duration, contentLength int) {
	if m == nil {
		return
	}
	site := SanitizeSite(rawURL)
	m.pagesTotal.WithLabelValues(site, state).Inc()
	m.pageDurationSeconds.WithLabelValues(state).Observe(duration.Seconds())
	if contentLength > 0 {
		m.contentCharsTotal.WithLabelValues(site).Add(float64(contentLength))
	}
}

// SetManifestSize records how many URLs the manifest yielded.
func (m *Metrics) SetManifestSize(n int) {
	if m == nil {
		return
	}
	m.manifestURLs.Set(float64(n))
}

// ObserveRun records a completed run.
func (m *Metrics) ObserveRun(succeeded, failed int, finishedAt time.Time) {
	if m == nil {
		return
	}
	m.runsTotal.Inc()
	m.lastRunSucceeded.Set(float64(succeeded))
	m.lastRunFailed.Set(float64(failed))
	m.lastRunTimestamp.Set(float64(finishedAt.Unix()))
}

// ObserveHTTPRequest records one request to the status endpoint.
func (m *Metrics) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SanitizeSite reduces a URL to its lowercase hostname, or "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
