package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOutcome("purchase", "success")
	m.ObserveOutcome("purchase", "success")
	m.ObserveOutcome("purchase", "redirect")
	m.ObserveGatewayCall("purchase", 150*time.Millisecond)
	m.ObserveRequest("/payments/{gateway}/{method}", http.StatusOK)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.outcomes.WithLabelValues("purchase", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.outcomes.WithLabelValues("purchase", "redirect")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.gatewayCalls))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("/payments/{gateway}/{method}", "OK")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveOutcome("capture", "failure")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `paygate_processor_outcomes_total{method="capture",outcome="failure"} 1`)
}
