// Package images fingerprints and copies the image tree into the output root.
package images

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

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

// Options configures the image stage.
type Options struct {
	AssetsRoot  string // logical paths are relative to this
	SourceDir   string // image sources, inside AssetsRoot
	DistDir     string // output image directory, replaced wholesale
	StagingRoot string // scratch area on the same filesystem as DistDir
	Recorder    metrics.Recorder
}

// Stage processes every regular file under the image source directory.
type Stage struct {
	opts Options
}

// New creates an image stage.
func New(opts Options) *Stage {
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	return &Stage{opts: opts}
}

func (s *Stage) Name() string { return pipeline.StageImages }

type candidate struct {
	path    string
	logical string
}

// Process fingerprints every image into a staging tree and swaps it into
// DistDir once all files were written. Unreadable entries and failed copies
// are dropped from the result; a returned error means the stage produced
// nothing and the previous output was left untouched.
func (s *Stage) Process(ctx context.Context) (pipeline.Result, error) {
	start := time.Now()
	defer func() { s.opts.Recorder.ObserveStageDuration(pipeline.StageImages, time.Since(start)) }()

	var res pipeline.Result
	ctx = observability.WithStage(ctx, pipeline.StageImages)
	log := observability.Logger(ctx)

	dirName, err := filepath.Rel(s.opts.AssetsRoot, s.opts.SourceDir)
	if err != nil {
		return res, perrors.FileSystem("rel", s.opts.SourceDir, err)
	}

	log.Info("Collecting images", logfields.Path(s.opts.SourceDir))
	candidates := s.collect(log)

	staging := workspace.NewManager(s.opts.StagingRoot, pipeline.StageImages)
	if err := staging.Create(); err != nil {
		return res, err
	}
	defer func() {
		if err := staging.Cleanup(); err != nil {
			log.Warn("Could not remove staging directory", logfields.Error(err))
		}
	}()
	stagedDir, err := staging.CreateSubdir(dirName)
	if err != nil {
		return res, err
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return pipeline.Result{}, err
		}
		rec, err := s.processOne(staging.GetPath(), c)
		s.opts.Recorder.IncStageItem(pipeline.StageImages, metrics.ItemResult(err))
		if err != nil {
			log.Warn("Skipping image", logfields.LogicalPath(c.logical), logfields.Error(err))
			res.Failures = append(res.Failures, pipeline.ItemFailure{Item: c.logical, Err: err})
			continue
		}
		log.Debug("Processed image", logfields.LogicalPath(rec.LogicalPath), logfields.ProcessedPath(rec.ProcessedRelativePath))
		res.Records = append(res.Records, rec)
	}

	if err := fsutil.ReplaceDir(stagedDir, s.opts.DistDir); err != nil {
		return pipeline.Result{}, err
	}

	log.Info("Images processed",
		logfields.Count(len(res.Records)),
		slog.Int("failed", len(res.Failures)),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return res, nil
}

// collect walks the source tree. Entries that cannot be enumerated are
// logged and skipped; non-regular files are skipped silently.
func (s *Stage) collect(log *slog.Logger) []candidate {
	var out []candidate
	_ = filepath.WalkDir(s.opts.SourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("Could not walk into images", logfields.Path(path), logfields.Error(err))
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.opts.AssetsRoot, path)
		if err != nil {
			log.Warn("Could not compute logical path", logfields.Path(path), logfields.Error(err))
			return nil
		}
		out = append(out, candidate{path: path, logical: filepath.ToSlash(rel)})
		return nil
	})
	return out
}

// processOne hashes the file and writes the exact bytes hashed to
// <root>/<processed path>.
func (s *Stage) processOne(root string, c candidate) (manifest.AssetRecord, error) {
	info, err := os.Stat(c.path)
	if err != nil {
		return manifest.AssetRecord{}, perrors.FileSystem("stat", c.path, err)
	}
	// #nosec G304 -- path comes from walking the configured source tree
	data, err := os.ReadFile(c.path)
	if err != nil {
		return manifest.AssetRecord{}, perrors.FileSystem("read", c.path, err)
	}

	hash := fingerprint.Hash(data)
	processed := fingerprint.HashedPath(c.logical, hash)
	dst := filepath.Join(root, filepath.FromSlash(processed))

	if err := fsutil.EnsureParent(dst); err != nil {
		return manifest.AssetRecord{}, err
	}
	if err := os.WriteFile(dst, data, info.Mode().Perm()|0o400); err != nil {
		return manifest.AssetRecord{}, perrors.FileSystem("write", dst, err)
	}

	return manifest.AssetRecord{
		SourcePath:            c.path,
		LogicalPath:           c.logical,
		ProcessedRelativePath: processed,
		Hash:                  hash,
	}, nil
}

// Clean removes the image output directory.
func Clean(distDir string) error {
	return fsutil.RemoveAll(distDir)
}
