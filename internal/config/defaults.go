package config

import (
	"os"
	"path/filepath"
)

const (
	DefaultSourceDir     = "assets"
	DefaultImagesDir     = "images"
	DefaultSassDir       = "css"
	DefaultSassVersion   = "1.59.3"
	DefaultDistDir       = "dist"
	DefaultManifest      = "assets.json"
	DefaultTargetDir     = "target"
	DefaultWatchDebounce = "2s"

	DefaultBucketEndpoint = "https://s3.fr-par.scw.cloud"
	DefaultBucketRegion   = "fr-par"

	// DefaultCORSMaxAge is the max-age pushed with the bucket CORS rule.
	DefaultCORSMaxAge = 30000
	// DevCORSMaxAge is the shorter max-age used by development deploys.
	DevCORSMaxAge = 360
)

// Environment variables consulted for bucket credentials, in order.
var (
	accessKeyEnv = []string{"PACKLER_S3_ACCESS_KEY", "AWS_ACCESS_KEY_ID"}
	secretKeyEnv = []string{"PACKLER_S3_SECRET_KEY", "AWS_SECRET_ACCESS_KEY"}
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// CompositeDefaultApplier runs every domain applier in order.
type CompositeDefaultApplier struct {
	appliers []DefaultApplier
}

// NewDefaultApplier creates a composite default applier with all domain appliers.
func NewDefaultApplier() *CompositeDefaultApplier {
	return &CompositeDefaultApplier{
		appliers: []DefaultApplier{
			&AssetsDefaultApplier{},
			&SassDefaultApplier{},
			&OutputDefaultApplier{},
			&BucketDefaultApplier{},
			&RetryDefaultApplier{},
			&WatchDefaultApplier{},
			&LoggingDefaultApplier{},
			&ComponentsDefaultApplier{},
		},
	}
}

func (c *CompositeDefaultApplier) ApplyDefaults(cfg *Config) error {
	for _, applier := range c.appliers {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

// AssetsDefaultApplier handles asset source defaults.
type AssetsDefaultApplier struct{}

func (a *AssetsDefaultApplier) Domain() string { return "assets" }

func (a *AssetsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Assets.SourceDir == "" {
		cfg.Assets.SourceDir = DefaultSourceDir
	}
	if cfg.Assets.ImagesDir == "" {
		cfg.Assets.ImagesDir = DefaultImagesDir
	}
	if cfg.Assets.SassDir == "" {
		cfg.Assets.SassDir = DefaultSassDir
	}
	if cfg.Assets.SassStyle == "" {
		cfg.Assets.SassStyle = SassStyleExpanded
	}
	return nil
}

// SassDefaultApplier handles compiler provisioning defaults.
type SassDefaultApplier struct{}

func (s *SassDefaultApplier) Domain() string { return "sass" }

func (s *SassDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Sass.Version == "" {
		cfg.Sass.Version = DefaultSassVersion
	}
	if cfg.Sass.CacheDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			cfg.Sass.CacheDir = filepath.Join(dir, "packler")
		}
	}
	return nil
}

// OutputDefaultApplier handles Output configuration defaults.
type OutputDefaultApplier struct{}

func (o *OutputDefaultApplier) Domain() string { return "output" }

func (o *OutputDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Output.DistDir == "" {
		cfg.Output.DistDir = DefaultDistDir
	}
	if cfg.Output.Manifest == "" {
		cfg.Output.Manifest = DefaultManifest
	}
	return nil
}

// BucketDefaultApplier fills endpoint, region, CORS and credentials for a
// configured bucket. Without a bucket section nothing is applied.
type BucketDefaultApplier struct{}

func (b *BucketDefaultApplier) Domain() string { return "bucket" }

func (b *BucketDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Bucket == nil {
		return nil
	}
	if cfg.Bucket.Endpoint == "" {
		cfg.Bucket.Endpoint = DefaultBucketEndpoint
	}
	if cfg.Bucket.Region == "" {
		cfg.Bucket.Region = DefaultBucketRegion
	}
	if cfg.Bucket.CORSMaxAge <= 0 {
		cfg.Bucket.CORSMaxAge = DefaultCORSMaxAge
	}
	if cfg.Bucket.AccessKey == "" {
		cfg.Bucket.AccessKey = firstEnv(accessKeyEnv)
	}
	if cfg.Bucket.SecretKey == "" {
		cfg.Bucket.SecretKey = firstEnv(secretKeyEnv)
	}
	return nil
}

// RetryDefaultApplier handles retry/backoff defaults.
type RetryDefaultApplier struct{}

func (r *RetryDefaultApplier) Domain() string { return "retry" }

func (r *RetryDefaultApplier) ApplyDefaults(cfg *Config) error {
	switch {
	case cfg.Retry.MaxRetries == nil:
		n := DefaultMaxRetries
		cfg.Retry.MaxRetries = &n
	case *cfg.Retry.MaxRetries < 0:
		n := 0
		cfg.Retry.MaxRetries = &n
	}
	if cfg.Retry.Backoff == "" {
		cfg.Retry.Backoff = RetryBackoffExponential
	} else if mode := NormalizeRetryBackoff(string(cfg.Retry.Backoff)); mode != "" {
		cfg.Retry.Backoff = mode
	} else {
		cfg.Retry.Backoff = RetryBackoffExponential
	}
	if cfg.Retry.InitialDelay == "" {
		cfg.Retry.InitialDelay = "500ms"
	}
	if cfg.Retry.MaxDelay == "" {
		cfg.Retry.MaxDelay = "10s"
	}
	return nil
}

// WatchDefaultApplier handles watch loop defaults.
type WatchDefaultApplier struct{}

func (w *WatchDefaultApplier) Domain() string { return "watch" }

func (w *WatchDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}
	return nil
}

// LoggingDefaultApplier normalizes logging settings.
type LoggingDefaultApplier struct{}

func (l *LoggingDefaultApplier) Domain() string { return "logging" }

func (l *LoggingDefaultApplier) ApplyDefaults(cfg *Config) error {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}

// ComponentsDefaultApplier selects the components built when none are given.
type ComponentsDefaultApplier struct{}

func (c *ComponentsDefaultApplier) Domain() string { return "components" }

func (c *ComponentsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if len(cfg.Components.Default) == 0 {
		cfg.Components.Default = []string{"assets"}
	}
	return nil
}

func firstEnv(keys []string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
