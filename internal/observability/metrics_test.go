package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	m.ObserveAttempt("currency")
	m.ObserveAttempt("currency")
	m.ObserveRun("currency", "succeeded", 2*time.Second)
	m.ObserveUpsert("created")
	m.ObserveCacheWrite("dollar_to_byn_rate")
	m.ObserveExtractionFailure("title")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobAttempts.WithLabelValues("currency")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("currency", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NewsUpserts.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheWrites.WithLabelValues("dollar_to_byn_rate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionFailures.WithLabelValues("title")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAttempt("x")
		m.ObserveRun("x", "failed", time.Second)
		m.ObserveUpsert("created")
		m.ObserveCacheWrite("k")
		m.ObserveExtractionFailure("title")
	})
}

func TestHandlerExposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveRun("news", "exhausted", time.Minute)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `newsportal_job_runs_total{job="news",outcome="exhausted"} 1`))
	assert.True(t, strings.Contains(string(body), "newsportal_job_duration_seconds_bucket"))
}
