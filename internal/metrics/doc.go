// Package metrics provides build, deploy and watch metrics for packler.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so code paths never check for a nil recorder:
//
//	orch := build.NewOrchestrator(opts).WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// packler is a short-lived CLI, so metrics are not scraped over HTTP. When
// metrics.textfile is configured, the registry is written after every build
// with WriteTextfile for the node exporter textfile collector.
package metrics
