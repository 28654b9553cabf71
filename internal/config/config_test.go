package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "packler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "assets", cfg.Assets.SourceDir)
	assert.Equal(t, "images", cfg.Assets.ImagesDir)
	assert.Equal(t, "css", cfg.Assets.SassDir)
	assert.Equal(t, SassStyleExpanded, cfg.Assets.SassStyle)
	assert.Equal(t, "1.59.3", cfg.Sass.Version)
	assert.Equal(t, "dist", cfg.Output.DistDir)
	assert.Equal(t, "assets.json", cfg.Output.Manifest)
	assert.Equal(t, RetryBackoffExponential, cfg.Retry.Backoff)
	assert.Equal(t, DefaultMaxRetries, cfg.Retry.Retries())
	assert.Equal(t, 2*time.Second, cfg.Watch.DebounceWindow())
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
	assert.Equal(t, []string{"assets"}, cfg.Components.Default)
	assert.Nil(t, cfg.Bucket)
	assert.False(t, cfg.HasBucket())
}

func TestLoad_FullConfig(t *testing.T) {
	t.Setenv("PACKLER_TEST_BUCKET", "static-assets")
	t.Setenv("PACKLER_S3_ACCESS_KEY", "AKIA")
	t.Setenv("PACKLER_S3_SECRET_KEY", "s3cr3t")

	path := writeConfig(t, `
assets:
  source_dir: web/assets
  sass_entrypoints: [main.scss, admin/admin.scss]
  sass_style: Compressed
bucket:
  name: ${PACKLER_TEST_BUCKET}
  allowed_origins: ["https://example.com"]
retry:
  backoff: LINEAR
  initial_delay: 1s
watch:
  debounce: 500ms
  ignore: ["**/*.swp"]
logging:
  level: DEBUG
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "web/assets", cfg.Assets.SourceDir)
	assert.Equal(t, []string{"main.scss", "admin/admin.scss"}, cfg.Assets.SassEntrypoints)
	assert.Equal(t, SassStyleCompressed, cfg.Assets.SassStyle)
	require.True(t, cfg.HasBucket())
	assert.Equal(t, "static-assets", cfg.Bucket.Name)
	assert.Equal(t, DefaultBucketEndpoint, cfg.Bucket.Endpoint)
	assert.Equal(t, DefaultBucketRegion, cfg.Bucket.Region)
	assert.Equal(t, DefaultCORSMaxAge, cfg.Bucket.CORSMaxAge)
	assert.Equal(t, "AKIA", cfg.Bucket.AccessKey)
	assert.Equal(t, "s3cr3t", cfg.Bucket.SecretKey)
	assert.Equal(t, RetryBackoffLinear, cfg.Retry.Backoff)

	initial, maxDelay := cfg.Retry.Delays()
	assert.Equal(t, time.Second, initial)
	assert.Equal(t, 10*time.Second, maxDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.DebounceWindow())
	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
}

func TestLoad_MaxRetries(t *testing.T) {
	cfg, err := Load(writeConfig(t, "retry:\n  max_retries: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Retry.Retries(), "an explicit zero turns retries off")

	cfg, err = Load(writeConfig(t, "retry:\n  max_retries: -3\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Retry.Retries())

	cfg, err = Load(writeConfig(t, "retry:\n  backoff: fixed\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRetries, cfg.Retry.Retries())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		category perrors.ErrorCategory
	}{
		{"bad yaml", "assets: [", perrors.CategoryConfig},
		{"bad style", "assets:\n  sass_style: nested\n", perrors.CategoryValidation},
		{"absolute entrypoint", "assets:\n  sass_entrypoints: [/etc/main.scss]\n", perrors.CategoryValidation},
		{"escaping entrypoint", "assets:\n  sass_entrypoints: [../main.scss]\n", perrors.CategoryValidation},
		{"bad debounce", "watch:\n  debounce: soon\n", perrors.CategoryValidation},
		{"bucket without origins", "bucket:\n  name: b\n", perrors.CategoryValidation},
		{"same dirs", "assets:\n  images_dir: x\n  sass_dir: x\n", perrors.CategoryValidation},
		{"colliding entrypoints", "assets:\n  sass_entrypoints: [site.scss, site.sass]\n", perrors.CategoryValidation},
		{"duplicate entrypoint", "assets:\n  sass_entrypoints: [main.scss, ./main.scss]\n", perrors.CategoryValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.True(t, perrors.IsCategory(err, tt.category), "got %v", err)
		})
	}
}

func TestEntrypointCollision(t *testing.T) {
	assert.Equal(t, "admin/site", EntrypointStem("admin/./site.scss"))
	assert.Equal(t, "site.min", EntrypointStem("site.min.scss"))

	a, b, found := EntrypointCollision([]string{"main.scss", "admin/site.scss", "admin/site.sass"})
	require.True(t, found)
	assert.Equal(t, "admin/site.scss", a)
	assert.Equal(t, "admin/site.sass", b)

	_, _, found = EntrypointCollision([]string{"site.scss", "admin/site.scss", "site.min.scss"})
	assert.False(t, found)

	_, err := Load(writeConfig(t, "assets:\n  sass_entrypoints: [site.scss, site.sass]\n"))
	pe, ok := perrors.As(err)
	require.True(t, ok)
	assert.Contains(t, pe.Context["reason"], `"site.scss" and "site.sass"`)
}

func TestLoad_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := Load(missing)
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryConfig))

	cfg, err := LoadOrDefault(missing, true)
	require.NoError(t, err)
	assert.Equal(t, "dist", cfg.Output.DistDir)

	_, err = LoadOrDefault(missing, false)
	require.Error(t, err)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packler.yaml")
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.scss"}, cfg.Assets.SassEntrypoints)
	assert.True(t, cfg.HasBucket())

	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))
}

func TestResolvePaths(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	p := Resolve(cfg, workspace.Info{Root: ".", TargetDir: "target"})

	assert.Equal(t, "assets", p.AssetsRoot)
	assert.Equal(t, filepath.Join("assets", "images"), p.SourceImages)
	assert.Equal(t, filepath.Join("assets", "css"), p.SourceSass)
	assert.Equal(t, filepath.Join("dist", "images"), p.DistImages)
	assert.Equal(t, filepath.Join("dist", "css"), p.DistSass)
	assert.Equal(t, filepath.Join("dist", "assets.json"), p.ManifestFile)
	assert.Equal(t, filepath.Join("dist", ".packler-tmp"), p.StagingRoot)
	assert.Equal(t, filepath.Join("dist", ".packler.lock"), p.LockFile)
	assert.Equal(t, filepath.Join("target", "packler", "sass"), p.SassScratch)

	cfg.Output.TargetDir = "/tmp/build"
	p = Resolve(cfg, workspace.Info{Root: filepath.Join("..", "site")})
	assert.Equal(t, filepath.Join("..", "site", "assets"), p.AssetsRoot)
	assert.Equal(t, filepath.Join("/tmp/build", "packler", "sass"), p.SassScratch)
}

func TestNormalizeEnums(t *testing.T) {
	assert.Equal(t, LogLevelWarn, NormalizeLogLevel(" Warning "))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel("verbose"))
	assert.Equal(t, LogFormatJSON, NormalizeLogFormat("JSON"))
	assert.Equal(t, RetryBackoffFixed, NormalizeRetryBackoff("fixed"))
	assert.Equal(t, RetryBackoffMode(""), NormalizeRetryBackoff("random"))
}

func TestLogLevel_SlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LogLevelDebug.SlogLevel())
	assert.Equal(t, slog.LevelWarn, LogLevelWarn.SlogLevel())
	assert.Equal(t, slog.LevelError, LogLevelError.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LogLevel("").SlogLevel())
}
