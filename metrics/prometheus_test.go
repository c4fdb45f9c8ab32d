package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	return NewPrometheusRecorderWith(reg, reg)
}

func TestObserveLLMCall(t *testing.T) {
	r := newTestRecorder()

	r.ObserveLLMCall("deepseek-chat", "summarize", "", 120, 40, true, 300*time.Millisecond)
	r.ObserveLLMCall("deepseek-chat", "approval", "transient", 50, 0, false, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.requestsTotal.WithLabelValues("deepseek-chat", "summarize", "success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requestsTotal.WithLabelValues("deepseek-chat", "approval", "error", "transient")))
	assert.Equal(t, 120.0, testutil.ToFloat64(r.tokensTotal.WithLabelValues("deepseek-chat", "summarize", "prompt")))
	assert.Equal(t, 40.0, testutil.ToFloat64(r.tokensTotal.WithLabelValues("deepseek-chat", "summarize", "completion")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.tokensTotal.WithLabelValues("deepseek-chat", "approval", "completion")))
}

func TestObserveRun(t *testing.T) {
	r := newTestRecorder()

	r.ObserveRun("completed", "approval", 1, 2*time.Second)
	r.ObserveRun("completed", "max_revisions", 3, 5*time.Second)
	r.ObserveRun("canceled", "", 1, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("completed", "approval")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("completed", "max_revisions")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("canceled", "none")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := newTestRecorder()
	r.ObserveNode("review", 150*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `workflow_node_duration_seconds_count{node="review"} 1`)
}
