package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
)

// Validate checks a configuration after defaults were applied. Enumerations
// are canonicalized in place.
func Validate(cfg *Config) error {
	style, err := sassStyleNormalizer.NormalizeWithError(string(cfg.Assets.SassStyle))
	if err != nil {
		return perrors.ValidationFailed("assets.sass_style", err.Error())
	}
	cfg.Assets.SassStyle = style

	for _, entry := range cfg.Assets.SassEntrypoints {
		if strings.TrimSpace(entry) == "" {
			return perrors.ValidationFailed("assets.sass_entrypoints", "entrypoint must not be empty")
		}
		if filepath.IsAbs(entry) {
			return perrors.ValidationFailed("assets.sass_entrypoints", "entrypoint must be relative to the sass directory: "+entry)
		}
		if escapesRoot(entry) {
			return perrors.ValidationFailed("assets.sass_entrypoints", "entrypoint escapes the sass directory: "+entry)
		}
	}

	if a, b, found := EntrypointCollision(cfg.Assets.SassEntrypoints); found {
		return perrors.ValidationFailed("assets.sass_entrypoints",
			fmt.Sprintf("entrypoints %q and %q compile to the same output", a, b))
	}

	if filepath.Clean(cfg.Assets.ImagesDir) == filepath.Clean(cfg.Assets.SassDir) {
		return perrors.ValidationFailed("assets.images_dir", "images and sass directories must differ")
	}

	for field, raw := range map[string]string{
		"retry.initial_delay": cfg.Retry.InitialDelay,
		"retry.max_delay":     cfg.Retry.MaxDelay,
		"watch.debounce":      cfg.Watch.Debounce,
	} {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return perrors.ValidationFailed(field, err.Error())
		}
		if d <= 0 {
			return perrors.ValidationFailed(field, "duration must be positive")
		}
	}

	if cfg.Bucket != nil {
		if cfg.Bucket.Name == "" {
			return perrors.ValidationFailed("bucket.name", "bucket section present without a name")
		}
		if len(cfg.Bucket.AllowedOrigins) == 0 {
			return perrors.ValidationFailed("bucket.allowed_origins", "at least one allowed origin is required")
		}
	}

	return nil
}

// DebounceWindow returns the parsed debounce window.
func (w WatchConfig) DebounceWindow() time.Duration {
	d, err := time.ParseDuration(w.Debounce)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultWatchDebounce)
	}
	return d
}

func escapesRoot(rel string) bool {
	clean := filepath.Clean(rel)
	return clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))
}
