package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the portal's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	JobRuns            *prometheus.CounterVec
	JobAttempts        *prometheus.CounterVec
	JobDuration        *prometheus.HistogramVec
	NewsUpserts        *prometheus.CounterVec
	CacheWrites        *prometheus.CounterVec
	ExtractionFailures *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsportal_job_runs_total",
			Help: "Job invocations by final outcome.",
		}, []string{"job", "outcome"}),
		JobAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsportal_job_attempts_total",
			Help: "Job attempts, retries included.",
		}, []string{"job"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newsportal_job_duration_seconds",
			Help:    "Wall time of a job invocation across all attempts.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"job"}),
		NewsUpserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsportal_news_upserts_total",
			Help: "Scraped news reconciliations by outcome.",
		}, []string{"outcome"}),
		CacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsportal_cache_writes_total",
			Help: "Shared cache writes by key.",
		}, []string{"key"}),
		ExtractionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsportal_extraction_failures_total",
			Help: "Source failures by stage.",
		}, []string{"stage"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.JobRuns,
		m.JobAttempts,
		m.JobDuration,
		m.NewsUpserts,
		m.CacheWrites,
		m.ExtractionFailures,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveAttempt(job string) {
	if m == nil {
		return
	}
	m.JobAttempts.WithLabelValues(job).Inc()
}

func (m *Metrics) ObserveRun(job, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, outcome).Inc()
	m.JobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *Metrics) ObserveUpsert(outcome string) {
	if m == nil {
		return
	}
	m.NewsUpserts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCacheWrite(key string) {
	if m == nil {
		return
	}
	m.CacheWrites.WithLabelValues(key).Inc()
}

func (m *Metrics) ObserveExtractionFailure(stage string) {
	if m == nil {
		return
	}
	m.ExtractionFailures.WithLabelValues(stage).Inc()
}
