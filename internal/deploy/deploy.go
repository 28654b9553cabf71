// Package deploy uploads a built asset set to object storage.
//
// Uploads are additive: every object key is the content-addressed processed
// path of a manifest record, so earlier asset versions stay servable while a
// new one rolls out. Nothing is ever deleted.
package deploy

import (
	"context"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/packler/internal/build"
	"git.home.luguber.info/inful/packler/internal/config"
	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/logfields"
	"git.home.luguber.info/inful/packler/internal/manifest"
	"git.home.luguber.info/inful/packler/internal/metrics"
	"git.home.luguber.info/inful/packler/internal/observability"
	"git.home.luguber.info/inful/packler/internal/pipeline"
	"git.home.luguber.info/inful/packler/internal/retry"
	"git.home.luguber.info/inful/packler/internal/storage"
)

// DefaultContentType is used when no MIME type is known for an extension.
const DefaultContentType = "application/octet-stream"

// Options configures a Deployer.
type Options struct {
	// DistRoot is the local output root processed paths are relative to.
	DistRoot string

	AllowedOrigins []string
	CORSMaxAge     int

	Policy   retry.Policy
	Recorder metrics.Recorder
}

// Deployer pushes manifest records to a bucket.
type Deployer struct {
	bucket storage.Bucket
	opts   Options
}

// New creates a deployer for bucket.
func New(bucket storage.Bucket, opts Options) *Deployer {
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Policy == (retry.Policy{}) {
		opts.Policy = retry.DefaultPolicy()
	}
	if opts.CORSMaxAge <= 0 {
		opts.CORSMaxAge = config.DefaultCORSMaxAge
	}
	return &Deployer{bucket: bucket, opts: opts}
}

// Report summarizes one upload run.
type Report struct {
	Uploaded []string
	Failures []pipeline.ItemFailure
	CORSErr  error
	Duration time.Duration
}

// Err returns a partial-failure error when any object was skipped. A CORS
// failure alone does not fail a deploy.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return perrors.PartialFailure("deploy", len(r.Failures))
}

// ContentType guesses the MIME type of key from its extension.
func ContentType(key string) string {
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return DefaultContentType
}

// Upload PUTs every record of m, images first. Failed objects are retried
// per the policy, then logged and skipped. Only cancellation stops the run
// early; the returned error is then ctx.Err().
func (d *Deployer) Upload(ctx context.Context, m *manifest.Manifest) (*Report, error) {
	start := time.Now()
	report := &Report{}
	log := observability.Logger(observability.WithStage(ctx, pipeline.StageUpload)).With(logfields.Bucket(d.bucket.Name()))
	log.Info("Uploading assets", logfields.Count(m.Len()))

	for _, rec := range m.All() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		key := rec.ProcessedRelativePath
		err := retry.Do(ctx, d.opts.Policy, "upload "+key, func(ctx context.Context) error {
			return d.putOne(ctx, key)
		})
		d.opts.Recorder.IncUpload(metrics.ItemResult(err))
		if err != nil {
			log.Error("Upload failed, skipping object", logfields.ObjectKey(key), logfields.Error(err))
			report.Failures = append(report.Failures, pipeline.ItemFailure{Item: key, Err: err})
			continue
		}
		log.Debug("Uploaded object", logfields.ObjectKey(key))
		report.Uploaded = append(report.Uploaded, key)
	}

	report.Duration = time.Since(start)
	log.Info("Upload finished",
		logfields.Count(len(report.Uploaded)),
		slog.Int("failed", len(report.Failures)),
		logfields.DurationMS(float64(report.Duration.Milliseconds())))
	return report, nil
}

func (d *Deployer) putOne(ctx context.Context, key string) error {
	local := filepath.Join(d.opts.DistRoot, filepath.FromSlash(key))
	// #nosec G304 -- local is derived from a manifest record under DistRoot
	f, err := os.Open(local)
	if err != nil {
		return perrors.FileSystem("open", local, err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return perrors.FileSystem("stat", local, err)
	}
	return d.bucket.PutObject(ctx, key, f, st.Size(), ContentType(key))
}

// PushCORS replaces the bucket CORS configuration with the asset rule. The
// error is returned for reporting only; callers log it and carry on.
func (d *Deployer) PushCORS(ctx context.Context) error {
	rule := storage.AssetCORSRule(d.opts.AllowedOrigins, d.opts.CORSMaxAge)
	if err := d.bucket.SetCORS(ctx, rule); err != nil {
		slog.Warn("Could not push CORS configuration",
			logfields.Bucket(d.bucket.Name()), logfields.Error(err))
		return err
	}
	slog.Info("CORS configuration pushed",
		logfields.Bucket(d.bucket.Name()),
		slog.Int("max_age", d.opts.CORSMaxAge),
		slog.Any("origins", d.opts.AllowedOrigins))
	return nil
}

// Builder is the part of the build orchestrator a deploy needs.
type Builder interface {
	BuildAndReturn(ctx context.Context) (*build.BuildResult, error)
	Persist(m *manifest.Manifest) error
}

// Run builds a fresh manifest, uploads it, persists the manifest and finally
// pushes CORS. A failed build still uploads whatever it produced.
func (d *Deployer) Run(ctx context.Context, b Builder) (*build.BuildResult, *Report, error) {
	res, err := b.BuildAndReturn(ctx)
	if err != nil {
		return nil, nil, err
	}
	report, err := d.Upload(ctx, res.Manifest)
	if err != nil {
		return res, report, err
	}
	if err := b.Persist(res.Manifest); err != nil {
		return res, report, err
	}
	report.CORSErr = d.PushCORS(ctx)
	return res, report, nil
}
