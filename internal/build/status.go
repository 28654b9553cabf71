package build

import (
	"time"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/manifest"
	"git.home.luguber.info/inful/packler/internal/pipeline"
)

// BuildStatus represents the outcome of a build execution.
type BuildStatus string

const (
	// BuildStatusSuccess indicates every attempted asset was processed.
	BuildStatusSuccess BuildStatus = "success"

	// BuildStatusPartial indicates some assets or one stage failed while
	// others were published.
	BuildStatusPartial BuildStatus = "partial"

	// BuildStatusFailed indicates nothing attempted was produced.
	BuildStatusFailed BuildStatus = "failed"
)

// IsSuccess returns true if the build completed without failures.
func (s BuildStatus) IsSuccess() bool {
	return s == BuildStatusSuccess
}

// StageReport is what one stage contributed to a build.
type StageReport struct {
	Name     string
	Result   pipeline.Result
	SetupErr error
}

// Failed reports whether the stage failed as a whole or lost any item.
func (r StageReport) Failed() bool {
	return r.SetupErr != nil || len(r.Result.Failures) > 0
}

// BuildResult contains the outcome of a build execution.
type BuildResult struct {
	// BuildID correlates the log lines of one build.
	BuildID string

	Status   BuildStatus
	Manifest *manifest.Manifest

	Images      StageReport
	Stylesheets StageReport

	StartTime time.Time
	Duration  time.Duration
}

// Failures returns how many items were dropped across both stages.
func (r *BuildResult) Failures() int {
	return len(r.Images.Result.Failures) + len(r.Stylesheets.Result.Failures)
}

// Err converts a non-successful status into the error the CLI reports.
func (r *BuildResult) Err() error {
	switch r.Status {
	case BuildStatusPartial:
		failed := r.Failures()
		for _, s := range []StageReport{r.Images, r.Stylesheets} {
			if s.SetupErr != nil {
				failed++
			}
		}
		return perrors.PartialFailure("build", failed)
	case BuildStatusFailed:
		for _, s := range []StageReport{r.Images, r.Stylesheets} {
			if s.SetupErr != nil {
				return perrors.BuildFailed(s.Name, s.SetupErr)
			}
		}
		return perrors.BuildFailed("assets", nil).WithContext("failed", r.Failures())
	default:
		return nil
	}
}

// deriveStatus classifies a build from its stage reports.
func deriveStatus(reports ...StageReport) BuildStatus {
	var produced int
	var failed bool
	for _, r := range reports {
		produced += len(r.Result.Records)
		if r.Failed() {
			failed = true
		}
	}
	switch {
	case !failed:
		return BuildStatusSuccess
	case produced > 0:
		return BuildStatusPartial
	default:
		return BuildStatusFailed
	}
}
