package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
)

// DefaultConfigFile is the configuration file looked up when none is given.
const DefaultConfigFile = "packler.yaml"

// Config represents the packler configuration file.
type Config struct {
	Assets     AssetsConfig     `yaml:"assets"`
	Sass       SassConfig       `yaml:"sass"`
	Output     OutputConfig     `yaml:"output"`
	Bucket     *BucketConfig    `yaml:"bucket,omitempty"`
	Retry      RetryConfig      `yaml:"retry"`
	Watch      WatchConfig      `yaml:"watch"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Components ComponentsConfig `yaml:"components"`
}

// AssetsConfig describes the asset source tree.
type AssetsConfig struct {
	SourceDir       string    `yaml:"source_dir"`
	ImagesDir       string    `yaml:"images_dir"`
	SassDir         string    `yaml:"sass_dir"`
	SassEntrypoints []string  `yaml:"sass_entrypoints"`
	SassStyle       SassStyle `yaml:"sass_style"`
}

// SassConfig pins the stylesheet compiler.
type SassConfig struct {
	Version  string `yaml:"version"`
	Binary   string `yaml:"binary,omitempty"`    // explicit compiler path, skips provisioning
	CacheDir string `yaml:"cache_dir,omitempty"` // download cache for provisioned compilers
}

// OutputConfig describes where build artifacts are written.
type OutputConfig struct {
	DistDir   string `yaml:"dist_dir"`
	Manifest  string `yaml:"manifest"`
	TargetDir string `yaml:"target_dir,omitempty"` // build-target root for intermediates
}

// BucketConfig describes the S3-compatible deploy target.
type BucketConfig struct {
	Name           string   `yaml:"name"`
	Region         string   `yaml:"region"`
	Endpoint       string   `yaml:"endpoint"`
	UseSSL         *bool    `yaml:"use_ssl,omitempty"`
	AccessKey      string   `yaml:"access_key,omitempty"`
	SecretKey      string   `yaml:"secret_key,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	CORSMaxAge     int      `yaml:"cors_max_age"` // seconds
}

// RetryConfig holds the backoff settings used for downloads and uploads.
type RetryConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"`
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
	MaxRetries   *int             `yaml:"max_retries,omitempty"` // nil means the default; 0 disables retries
}

// WatchConfig tunes the watch loop.
type WatchConfig struct {
	Debounce string   `yaml:"debounce,omitempty"`
	Ignore   []string `yaml:"ignore,omitempty"` // doublestar globs relative to the watched root
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MetricsConfig enables the Prometheus textfile export written after each build.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// ComponentsConfig names the Go packages behind the backend and frontend components.
type ComponentsConfig struct {
	Default  []string `yaml:"default,omitempty"`
	Backend  string   `yaml:"backend,omitempty"`
	Frontend []string `yaml:"frontend,omitempty"`
}

// HasBucket reports whether a deploy target is configured.
func (c *Config) HasBucket() bool {
	return c.Bucket != nil && c.Bucket.Name != ""
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, perrors.ConfigNotFound(configPath)
		}
		return nil, perrors.FileSystem("read", configPath, err)
	}

	return Parse(data)
}

// LoadOrDefault loads configPath, falling back to the defaults when the file
// does not exist and allowMissing is set.
func LoadOrDefault(configPath string, allowMissing bool) (*Config, error) {
	if allowMissing {
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			loadEnvFiles()
			slog.Debug("No configuration file, using defaults", slog.String("path", configPath))
			return Default()
		}
	}
	return Load(configPath)
}

// Parse decodes YAML configuration content, expanding ${ENV} references and
// applying defaults and validation.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, perrors.Wrap(err, perrors.CategoryConfig, perrors.SeverityError, "failed to parse configuration")
	}
	return finalize(&cfg)
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	return finalize(&Config{})
}

func finalize(cfg *Config) (*Config, error) {
	if err := NewDefaultApplier().ApplyDefaults(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return perrors.New(perrors.CategoryConfig, perrors.SeverityError,
			fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath))
	}

	example, err := Default()
	if err != nil {
		return err
	}
	example.Assets.SassEntrypoints = []string{"main.scss"}
	example.Bucket = &BucketConfig{
		Name:           "my-assets",
		Region:         DefaultBucketRegion,
		Endpoint:       DefaultBucketEndpoint,
		AllowedOrigins: []string{"https://example.com"},
		CORSMaxAge:     DefaultCORSMaxAge,
	}

	data, err := yaml.Marshal(example)
	if err != nil {
		return perrors.Wrap(err, perrors.CategorySerialization, perrors.SeverityError, "failed to encode example configuration")
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return perrors.FileSystem("write", configPath, err)
	}
	return nil
}
