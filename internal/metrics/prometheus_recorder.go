package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every exported metric.
const Namespace = "specbuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	hookDuration  *prom.HistogramVec
	hookResults   *prom.CounterVec
	buildDuration prom.Histogram
	buildOutcome  *prom.CounterVec
	filesEmitted  prom.Gauge
	fetchDuration *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		hookDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: Namespace,
			Name:      "hook_duration_seconds",
			Help:      "Duration of individual plugin lifecycle hooks",
			Buckets:   prom.DefBuckets,
		}, []string{"hook", "plugin"}),
		hookResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: Namespace,
			Name:      "hook_results_total",
			Help:      "Hook result counts by outcome",
		}, []string{"hook", "plugin", "result"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: Namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: Namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		filesEmitted: prom.NewGauge(prom.GaugeOpts{
			Namespace: Namespace,
			Name:      "files_emitted",
			Help:      "Number of files in the file graph of the last build",
		}),
		fetchDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: Namespace,
			Name:      "input_fetch_duration_seconds",
			Help:      "Duration of API description fetches by source",
			Buckets:   prom.DefBuckets,
		}, []string{"source", "result"}),
	}
	reg.MustRegister(pr.hookDuration, pr.hookResults, pr.buildDuration, pr.buildOutcome, pr.filesEmitted, pr.fetchDuration)
	return pr
}

func (p *PrometheusRecorder) ObserveHookDuration(hook, plugin string, d time.Duration) {
	if p == nil || p.hookDuration == nil {
		return
	}
	p.hookDuration.WithLabelValues(hook, plugin).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncHookResult(hook, plugin string, result ResultLabel) {
	if p == nil || p.hookResults == nil {
		return
	}
	p.hookResults.WithLabelValues(hook, plugin, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetFilesEmitted(n int) {
	if p == nil || p.filesEmitted == nil {
		return
	}
	p.filesEmitted.Set(float64(n))
}

func (p *PrometheusRecorder) ObserveInputFetch(source string, d time.Duration, success bool) {
	if p == nil || p.fetchDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.fetchDuration.WithLabelValues(source, res).Observe(d.Seconds())
}
