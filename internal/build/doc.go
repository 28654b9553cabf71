// Package build provides the build orchestrator for packler.
// Every execution path (one-shot build, deploy, watch rebuilds) routes through
// Orchestrator so the manifest is always produced the same way.
//
// A build runs the image and stylesheet stages concurrently, combines their
// records into a manifest and persists it. Item failures degrade the outcome
// to partial; a build that produced nothing it attempted is failed.
package build
