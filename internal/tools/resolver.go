package tools

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/fsutil"
	"git.home.luguber.info/inful/packler/internal/logfields"
	"git.home.luguber.info/inful/packler/internal/retry"
)

// DefaultSassReleaseURL is the base URL dart-sass release archives are fetched from.
const DefaultSassReleaseURL = "https://github.com/sass/dart-sass/releases/download"

const sassTool = "sass"

// Resolver locates or provisions external tools.
type Resolver struct {
	// Binary is an explicit compiler path that bypasses provisioning.
	Binary string
	// CacheDir holds downloaded releases (<cache>/sass/<version>/dart-sass/sass).
	CacheDir string
	// BaseURL overrides DefaultSassReleaseURL.
	BaseURL string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Policy controls download retries.
	Policy retry.Policy

	goos, goarch string
	lookPath     func(string) (string, error)
}

// NewResolver returns a resolver for the running platform.
func NewResolver(binary, cacheDir string, policy retry.Policy) *Resolver {
	return &Resolver{
		Binary:   binary,
		CacheDir: cacheDir,
		Policy:   policy,
	}
}

// ResolveSass returns an executable dart-sass path for version.
func (r *Resolver) ResolveSass(ctx context.Context, version string) (string, error) {
	if r.Binary != "" {
		if !fsutil.IsExecutable(r.Binary) {
			return "", perrors.ToolUnavailable(sassTool, version, fmt.Errorf("configured binary %s is not executable", r.Binary))
		}
		return r.Binary, nil
	}

	var downloadErr error
	if r.CacheDir != "" {
		cached := r.cachedSassPath(version)
		if fsutil.IsExecutable(cached) {
			slog.Debug("Using cached sass compiler", logfields.Path(cached))
			return cached, nil
		}

		downloadErr = r.downloadSass(ctx, version)
		if downloadErr == nil && fsutil.IsExecutable(cached) {
			slog.Info("Provisioned sass compiler", slog.String("version", version), logfields.Path(cached))
			return cached, nil
		}
		if downloadErr == nil {
			downloadErr = fmt.Errorf("archive did not contain %s", cached)
		}
		slog.Warn("Could not provision sass compiler, trying PATH",
			slog.String("version", version), logfields.Error(downloadErr))
	}

	lookPath := r.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if p, err := lookPath(sassTool); err == nil {
		slog.Warn("Using sass from PATH; compiler version is not pinned",
			slog.String("wanted_version", version), logfields.Path(p))
		return p, nil
	}

	if downloadErr == nil {
		downloadErr = fmt.Errorf("%s not found on PATH", sassTool)
	}
	return "", perrors.ToolUnavailable(sassTool, version, downloadErr)
}

func (r *Resolver) cachedSassPath(version string) string {
	name := "sass"
	if r.platformOS() == "windows" {
		name = "sass.bat"
	}
	return filepath.Join(r.CacheDir, sassTool, version, "dart-sass", name)
}

func (r *Resolver) downloadSass(ctx context.Context, version string) error {
	asset, err := sassArchiveName(version, r.platformOS(), r.platformArch())
	if err != nil {
		return err
	}
	base := r.BaseURL
	if base == "" {
		base = DefaultSassReleaseURL
	}
	url := fmt.Sprintf("%s/%s/%s", base, version, asset)
	dest := filepath.Join(r.CacheDir, sassTool, version)

	// Extract into a sibling directory first so a failed download never
	// leaves a half-populated cache entry behind.
	tmp := dest + ".partial"
	if err := fsutil.RemoveAll(tmp); err != nil {
		return err
	}
	if err := os.MkdirAll(tmp, 0o750); err != nil {
		return perrors.FileSystem("mkdir", tmp, err)
	}
	defer func() { _ = fsutil.RemoveAll(tmp) }()

	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	slog.Info("Downloading sass compiler", slog.String("url", url))
	err = retry.Do(ctx, r.Policy, "download_sass", func(ctx context.Context) error {
		return fetchAndExtract(ctx, client, url, tmp)
	})
	if err != nil {
		return err
	}
	return fsutil.ReplaceDir(tmp, dest)
}

func (r *Resolver) platformOS() string {
	if r.goos != "" {
		return r.goos
	}
	return runtime.GOOS
}

func (r *Resolver) platformArch() string {
	if r.goarch != "" {
		return r.goarch
	}
	return runtime.GOARCH
}

// sassArchiveName maps a Go platform onto the dart-sass release asset name.
func sassArchiveName(version, goos, goarch string) (string, error) {
	var osName string
	switch goos {
	case "linux":
		osName = "linux"
	case "darwin":
		osName = "macos"
	default:
		return "", fmt.Errorf("no dart-sass tarball for %s", goos)
	}

	var arch string
	switch goarch {
	case "amd64":
		arch = "x64"
	case "arm64":
		arch = "arm64"
	case "arm":
		arch = "arm"
	case "386":
		arch = "ia32"
	default:
		return "", fmt.Errorf("no dart-sass tarball for %s/%s", goos, goarch)
	}
	return fmt.Sprintf("dart-sass-%s-%s-%s.tar.gz", version, osName, arch), nil
}
