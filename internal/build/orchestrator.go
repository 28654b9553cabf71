package build

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/packler/internal/config"
	"git.home.luguber.info/inful/packler/internal/logfields"
	"git.home.luguber.info/inful/packler/internal/manifest"
	"git.home.luguber.info/inful/packler/internal/metrics"
	"git.home.luguber.info/inful/packler/internal/observability"
	"git.home.luguber.info/inful/packler/internal/pipeline"
	"git.home.luguber.info/inful/packler/internal/pipeline/images"
	"git.home.luguber.info/inful/packler/internal/pipeline/sass"
)

// Orchestrator runs the asset stages and produces the manifest.
type Orchestrator struct {
	images       pipeline.Stage
	stylesheets  pipeline.Stage
	manifestPath string
	recorder     metrics.Recorder
	onComplete   []func(*BuildResult)
}

// NewOrchestrator creates an orchestrator over the given stages. The manifest
// is written to manifestPath by Build.
func NewOrchestrator(imageStage, sassStage pipeline.Stage, manifestPath string) *Orchestrator {
	return &Orchestrator{
		images:       imageStage,
		stylesheets:  sassStage,
		manifestPath: manifestPath,
		recorder:     metrics.NoopRecorder{},
	}
}

// NewFromConfig wires the standard image and stylesheet stages for the
// resolved layout.
func NewFromConfig(cfg *config.Config, paths config.Paths, resolver sass.CompilerResolver, recorder metrics.Recorder) *Orchestrator {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	imageStage := images.New(images.Options{
		AssetsRoot:  paths.AssetsRoot,
		SourceDir:   paths.SourceImages,
		DistDir:     paths.DistImages,
		StagingRoot: paths.StagingRoot,
		Recorder:    recorder,
	})
	sassStage := sass.New(sass.Options{
		AssetsRoot:  paths.AssetsRoot,
		SourceDir:   paths.SourceSass,
		DistDir:     paths.DistSass,
		StagingRoot: paths.StagingRoot,
		ScratchDir:  paths.SassScratch,
		Entrypoints: cfg.Assets.SassEntrypoints,
		Style:       cfg.Assets.SassStyle,
		Version:     cfg.Sass.Version,
		Resolver:    resolver,
		Recorder:    recorder,
	})
	return NewOrchestrator(imageStage, sassStage, paths.ManifestFile).WithRecorder(recorder)
}

// WithRecorder sets the metrics recorder.
func (o *Orchestrator) WithRecorder(r metrics.Recorder) *Orchestrator {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	o.recorder = r
	return o
}

// OnComplete registers a hook that runs after every build, whatever its
// status.
func (o *Orchestrator) OnComplete(fn func(*BuildResult)) *Orchestrator {
	o.onComplete = append(o.onComplete, fn)
	return o
}

// Build runs both stages and writes the manifest. The manifest is written
// even when every item failed so consumers never read a stale mapping.
func (o *Orchestrator) Build(ctx context.Context) (*BuildResult, error) {
	res, err := o.BuildAndReturn(ctx)
	if err != nil {
		return nil, err
	}
	if err := o.Persist(res.Manifest); err != nil {
		return res, err
	}
	return res, nil
}

// Persist writes m to the manifest path.
func (o *Orchestrator) Persist(m *manifest.Manifest) error {
	if err := m.Write(o.manifestPath); err != nil {
		return err
	}
	slog.Info("Manifest written", logfields.Path(o.manifestPath), logfields.Count(m.Len()))
	return nil
}

// BuildAndReturn runs both stages concurrently and combines their records.
// A stage that fails to set up contributes nothing. The only error returned
// is cancellation, in which case no manifest should be written.
func (o *Orchestrator) BuildAndReturn(ctx context.Context) (*BuildResult, error) {
	start := time.Now()
	res := &BuildResult{
		BuildID:     uuid.NewString(),
		StartTime:   start,
		Images:      StageReport{Name: o.images.Name()},
		Stylesheets: StageReport{Name: o.stylesheets.Name()},
	}
	ctx = observability.WithBuildID(ctx, res.BuildID)
	log := observability.Logger(ctx)
	log.Info("Build started")

	var g errgroup.Group
	g.Go(func() error {
		res.Images.Result, res.Images.SetupErr = o.images.Process(ctx)
		return nil
	})
	g.Go(func() error {
		res.Stylesheets.Result, res.Stylesheets.SetupErr = o.stylesheets.Process(ctx)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		log.Warn("Build cancelled", logfields.Error(err))
		return nil, err
	}

	for _, r := range []*StageReport{&res.Images, &res.Stylesheets} {
		if r.SetupErr != nil {
			log.Error("Stage failed", logfields.Stage(r.Name), logfields.Error(r.SetupErr))
			r.Result = pipeline.Result{}
		}
	}

	res.Manifest = manifest.New(res.Images.Result.Records, res.Stylesheets.Result.Records)
	res.Status = deriveStatus(res.Images, res.Stylesheets)
	res.Duration = time.Since(start)

	o.recorder.ObserveBuildDuration(res.Duration)
	o.recorder.IncBuildOutcome(string(res.Status))

	log.Info("Build finished",
		logfields.Outcome(string(res.Status)),
		logfields.Count(res.Manifest.Len()),
		slog.Int("failed", res.Failures()),
		logfields.DurationMS(float64(res.Duration.Milliseconds())))

	for _, fn := range o.onComplete {
		fn(res)
	}
	return res, nil
}
