package metrics

import "time"

// ResultLabel enumerates per-item result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// Recorder defines observability hooks for build, deploy and watch metrics.
// Implementations may forward to Prometheus. NoopRecorder is the default so
// components never need nil checks.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageItem(stage string, result ResultLabel)
	IncBuildOutcome(outcome string) // outcome: success|partial|failed
	IncUpload(result ResultLabel)
	IncWatchEvent(triggered bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncStageItem(string, ResultLabel)           {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) IncUpload(ResultLabel)                      {}
func (NoopRecorder) IncWatchEvent(bool)                         {}

// ItemResult maps an item error to its result label.
func ItemResult(err error) ResultLabel {
	if err != nil {
		return ResultFailed
	}
	return ResultSuccess
}
