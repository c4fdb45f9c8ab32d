// Package metrics provides Prometheus-based metrics recording for model calls and workflow runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements generator.CallObserver and workflow.Observer.
type PrometheusRecorder struct {
	gatherer prometheus.Gatherer

	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	runsTotal       *prometheus.CounterVec
	runCycles       prometheus.Histogram
	runDuration     prometheus.Histogram
	nodeDuration    *prometheus.HistogramVec
}

// NewPrometheusRecorder registers its collectors on a fresh registry that also
// carries the Go and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewPrometheusRecorderWith(reg, reg)
}

// NewPrometheusRecorderWith registers on reg and serves from gatherer.
func NewPrometheusRecorderWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		gatherer: gatherer,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM requests by model, task, and status",
			},
			[]string{"model", "task", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Estimated number of tokens used in LLM requests",
			},
			[]string{"model", "task", "type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "task"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_runs_total",
				Help: "Finished workflow runs by outcome and termination reason",
			},
			[]string{"outcome", "terminated_by"},
		),
		runCycles: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "workflow_revision_cycles",
			Help:    "Summarize/review cycles executed per run",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "workflow_run_duration_seconds",
			Help:    "Wall time of workflow runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		nodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workflow_node_duration_seconds",
				Help:    "Time spent in each workflow node",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"node"},
		),
	}
}

// ObserveLLMCall records metrics for a completed model call.
func (p *PrometheusRecorder) ObserveLLMCall(model, task, errorKind string, promptTokens, completionTokens int, success bool, d time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.requestsTotal.WithLabelValues(model, task, status, errorKind).Inc()
	p.tokensTotal.WithLabelValues(model, task, "prompt").Add(float64(promptTokens))
	if success {
		p.tokensTotal.WithLabelValues(model, task, "completion").Add(float64(completionTokens))
	}
	p.requestDuration.WithLabelValues(model, task).Observe(d.Seconds())
}

// ObserveNode records time spent in one workflow node.
func (p *PrometheusRecorder) ObserveNode(node string, d time.Duration) {
	p.nodeDuration.WithLabelValues(node).Observe(d.Seconds())
}

// ObserveRun records a finished run.
func (p *PrometheusRecorder) ObserveRun(outcome, terminatedBy string, cycles int, d time.Duration) {
	if terminatedBy == "" {
		terminatedBy = "none"
	}
	p.runsTotal.WithLabelValues(outcome, terminatedBy).Inc()
	p.runCycles.Observe(float64(cycles))
	p.runDuration.Observe(d.Seconds())
}

// Handler serves the recorder's registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}
