package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of Prometheus collectors the pipeline and dispatcher
// report into. A nil *Metrics is valid; every method no-ops.
type Metrics struct {
	pipelineStageDuration *prometheus.HistogramVec
	dispatchTotal         *prometheus.CounterVec
	llmCallsTotal         *prometheus.CounterVec
	llmCallDuration       prometheus.Histogram
	llmTokensTotal        prometheus.Counter
}

// NewMetrics creates and registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pipelineStageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "sage_pipeline_stage_duration_seconds",
			Help: "Retrieval pipeline stage duration in seconds.",
		}, []string{"stage"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sage_dispatch_total",
			Help: "Dispatched requests by target specialist.",
		}, []string{"specialist", "outcome"}),
		llmCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sage_llm_calls_total",
			Help: "Model calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		llmCallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "sage_llm_call_duration_seconds",
			Help: "Model call duration in seconds.",
		}),
		llmTokensTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sage_llm_tokens_total",
			Help: "Total tokens reported by model providers.",
		}),
	}

	reg.MustRegister(
		m.pipelineStageDuration,
		m.dispatchTotal,
		m.llmCallsTotal,
		m.llmCallDuration,
		m.llmTokensTotal,
	)
	return m
}

func (m *Metrics) RecordStage(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.pipelineStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (m *Metrics) RecordDispatch(specialist string, success bool) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(specialist, outcomeLabel(success)).Inc()
}

func (m *Metrics) RecordLLMCall(provider string, duration time.Duration, tokens int, err error) {
	if m == nil {
		return
	}
	m.llmCallsTotal.WithLabelValues(provider, outcomeLabel(err == nil)).Inc()
	m.llmCallDuration.Observe(duration.Seconds())
	if tokens > 0 {
		m.llmTokensTotal.Add(float64(tokens))
	}
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

var globalMetrics *Metrics

// SetGlobalMetrics installs the process-wide metrics instance. Call once at
// startup before serving traffic.
func SetGlobalMetrics(m *Metrics) {
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide metrics instance, which may be
// nil when metrics are disabled.
func GetGlobalMetrics() *Metrics {
	return globalMetrics
}
