// Package sass compiles stylesheet entry points with an external compiler
// and publishes the fingerprinted output.
package sass

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/packler/internal/config"
	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/fingerprint"
	"git.home.luguber.info/inful/packler/internal/fsutil"
	"git.home.luguber.info/inful/packler/internal/logfields"
	"git.home.luguber.info/inful/packler/internal/manifest"
	"git.home.luguber.info/inful/packler/internal/metrics"
	"git.home.luguber.info/inful/packler/internal/observability"
	"git.home.luguber.info/inful/packler/internal/pipeline"
	"git.home.luguber.info/inful/packler/internal/workspace"
)

// Options configures the stylesheet stage.
type Options struct {
	AssetsRoot  string   // logical paths are relative to this
	SourceDir   string   // stylesheet sources, inside AssetsRoot
	DistDir     string   // output stylesheet directory, replaced wholesale
	StagingRoot string   // scratch area on the same filesystem as DistDir
	ScratchDir  string   // intermediate compiler output, emptied every run
	Entrypoints []string // relative to SourceDir
	Style       config.SassStyle
	Version     string

	Resolver    CompilerResolver
	NewCompiler func(path string) Compiler
	Recorder    metrics.Recorder
}

// Stage compiles every configured entry point concurrently.
type Stage struct {
	opts Options
}

// New creates a stylesheet stage.
func New(opts Options) *Stage {
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.NewCompiler == nil {
		opts.NewCompiler = func(p string) Compiler { return ExecCompiler{Path: p} }
	}
	if opts.Style == "" {
		opts.Style = config.SassStyleExpanded
	}
	return &Stage{opts: opts}
}

func (s *Stage) Name() string { return pipeline.StageSass }

type outcome struct {
	rec manifest.AssetRecord
	err error
}

// Process resolves the compiler, compiles all entry points into a staging
// tree and swaps it into DistDir. Entry points that fail are dropped; the
// stage still succeeds with the remaining ones. A returned error is a setup
// failure (no compiler, staging unavailable).
func (s *Stage) Process(ctx context.Context) (pipeline.Result, error) {
	start := time.Now()
	defer func() { s.opts.Recorder.ObserveStageDuration(pipeline.StageSass, time.Since(start)) }()

	var res pipeline.Result
	ctx = observability.WithStage(ctx, pipeline.StageSass)
	log := observability.Logger(ctx)
	log.Info("Starting stylesheet pipeline", logfields.Count(len(s.opts.Entrypoints)))

	// Without entry points the output directory is still emptied, but no
	// compiler is needed.
	var compiler Compiler
	if len(s.opts.Entrypoints) > 0 {
		if s.opts.Resolver == nil {
			return res, perrors.ToolUnavailable(toolName, s.opts.Version, errors.New("no compiler resolver"))
		}
		compilerPath, err := s.opts.Resolver.ResolveSass(ctx, s.opts.Version)
		if err != nil {
			return res, err
		}
		compiler = s.opts.NewCompiler(compilerPath)
	}

	scratch := workspace.NewPersistentManager(filepath.Dir(s.opts.ScratchDir), filepath.Base(s.opts.ScratchDir))
	if err := scratch.Reset(); err != nil {
		log.Warn("Could not clear intermediate directory", logfields.Path(s.opts.ScratchDir), logfields.Error(err))
	}

	dirName, err := filepath.Rel(s.opts.AssetsRoot, s.opts.SourceDir)
	if err != nil {
		return res, perrors.FileSystem("rel", s.opts.SourceDir, err)
	}
	distName := filepath.Base(s.opts.DistDir)

	staging := workspace.NewManager(s.opts.StagingRoot, pipeline.StageSass)
	if err := staging.Create(); err != nil {
		return res, err
	}
	defer func() {
		if err := staging.Cleanup(); err != nil {
			log.Warn("Could not remove staging directory", logfields.Error(err))
		}
	}()
	stagedDir, err := staging.CreateSubdir(distName)
	if err != nil {
		return res, err
	}

	// Scatter/gather: one task per entry point, every task runs to completion
	// and records its own outcome. An entry whose stem is already taken would
	// share its scratch and output files, so it fails without compiling.
	outcomes := make([]outcome, len(s.opts.Entrypoints))
	claimed := make(map[string]string, len(s.opts.Entrypoints))
	var g errgroup.Group
	for i, entry := range s.opts.Entrypoints {
		stem := config.EntrypointStem(entry)
		if prev, ok := claimed[stem]; ok {
			outcomes[i] = outcome{err: perrors.ValidationFailed("assets.sass_entrypoints",
				fmt.Sprintf("entrypoints %q and %q compile to the same output", prev, entry))}
			continue
		}
		claimed[stem] = entry
		g.Go(func() error {
			rec, err := s.compileOne(ctx, compiler, staging.GetPath(), filepath.ToSlash(dirName), distName, entry)
			outcomes[i] = outcome{rec: rec, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		entry := s.opts.Entrypoints[i]
		s.opts.Recorder.IncStageItem(pipeline.StageSass, metrics.ItemResult(o.err))
		if o.err != nil {
			log.Error("Stylesheet entry point failed", logfields.Entrypoint(entry), logfields.Error(o.err))
			res.Failures = append(res.Failures, pipeline.ItemFailure{Item: entry, Err: o.err})
			continue
		}
		log.Info("Compiled stylesheet", logfields.Entrypoint(entry), logfields.ProcessedPath(o.rec.ProcessedRelativePath))
		res.Records = append(res.Records, o.rec)
	}

	if err := ctx.Err(); err != nil {
		return pipeline.Result{}, err
	}
	if err := fsutil.ReplaceDir(stagedDir, s.opts.DistDir); err != nil {
		return pipeline.Result{}, err
	}

	log.Info("Stylesheets processed",
		logfields.Count(len(res.Records)),
		slog.Int("failed", len(res.Failures)),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return res, nil
}

// compileOne runs the compiler for entry, hashes the output and moves it to
// <root>/<dist name>/<entry dir>/<stem>-<hash>.css.
func (s *Stage) compileOne(ctx context.Context, compiler Compiler, root, logicalDir, distName, entry string) (manifest.AssetRecord, error) {
	source := filepath.Join(s.opts.SourceDir, entry)
	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return manifest.AssetRecord{}, perrors.EntryPointMissing(entry)
		}
		return manifest.AssetRecord{}, perrors.FileSystem("stat", source, err)
	}

	intermediate := filepath.Join(s.opts.ScratchDir, filepath.FromSlash(config.EntrypointStem(entry))+".css")
	if err := fsutil.EnsureParent(intermediate); err != nil {
		return manifest.AssetRecord{}, err
	}
	if err := compiler.Compile(ctx, source, intermediate, s.opts.Style); err != nil {
		return manifest.AssetRecord{}, err
	}

	// #nosec G304 -- intermediate lives in the scratch directory
	css, err := os.ReadFile(intermediate)
	if err != nil {
		return manifest.AssetRecord{}, perrors.FileSystem("read", intermediate, err)
	}
	hash := fingerprint.Hash(css)

	entrySlash := filepath.ToSlash(entry)
	outRel := config.EntrypointStem(entry) + ".css"

	processed := fingerprint.HashedPath(path.Join(distName, outRel), hash)
	dst := filepath.Join(root, filepath.FromSlash(processed))
	if err := fsutil.EnsureParent(dst); err != nil {
		return manifest.AssetRecord{}, err
	}
	if err := fsutil.MoveFile(intermediate, dst); err != nil {
		return manifest.AssetRecord{}, err
	}

	return manifest.AssetRecord{
		SourcePath:            source,
		LogicalPath:           path.Join(logicalDir, entrySlash),
		ProcessedRelativePath: processed,
		Hash:                  hash,
	}, nil
}

// Clean removes the stylesheet output and intermediate directories.
func Clean(distDir, scratchDir string) error {
	if err := fsutil.RemoveAll(distDir); err != nil {
		return err
	}
	return fsutil.RemoveAll(scratchDir)
}
