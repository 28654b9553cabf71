// Package pipeline holds the types shared by the asset processing stages.
package pipeline

import (
	"context"

	"git.home.luguber.info/inful/packler/internal/manifest"
)

// Stage names used in logs and metrics.
const (
	StageImages = "images"
	StageSass   = "sass"
	StageUpload = "upload"
)

// ItemFailure records one asset that was dropped from a stage's result.
type ItemFailure struct {
	// Item is the logical path or entry point of the failed asset.
	Item string
	Err  error
}

// Result is the outcome of running one stage over its inputs. Records holds
// only the assets that succeeded, in processing order.
type Result struct {
	Records  []manifest.AssetRecord
	Failures []ItemFailure
}

// Attempted returns how many items the stage tried to process.
func (r Result) Attempted() int {
	return len(r.Records) + len(r.Failures)
}

// Stage processes one kind of asset. A returned error is a setup failure of
// the whole stage; per-item failures are reported in Result.Failures.
type Stage interface {
	Name() string
	Process(ctx context.Context) (Result, error)
}
