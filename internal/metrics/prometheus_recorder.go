package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "packler"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	stageDuration *prom.HistogramVec
	buildDuration prom.Histogram
	stageItems    *prom.CounterVec
	buildOutcome  *prom.CounterVec
	uploads       *prom.CounterVec
	watchEvents   *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageItems = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_items_total",
			Help:      "Processed assets per stage by result",
		}, []string{"stage", "result"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.uploads = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Object uploads by result",
		}, []string{"result"})
		pr.watchEvents = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_total",
			Help:      "Change batches seen by the watch loop, by whether they triggered a rebuild",
		}, []string{"action"})
		reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageItems, pr.buildOutcome, pr.uploads, pr.watchEvents)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageItem(stage string, result ResultLabel) {
	if p == nil || p.stageItems == nil {
		return
	}
	p.stageItems.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncUpload(result ResultLabel) {
	if p == nil || p.uploads == nil {
		return
	}
	p.uploads.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncWatchEvent(triggered bool) {
	if p == nil || p.watchEvents == nil {
		return
	}
	action := "debounced"
	if triggered {
		action = "rebuild"
	}
	p.watchEvents.WithLabelValues(action).Inc()
}
