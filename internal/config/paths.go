package config

import (
	"path/filepath"

	"git.home.luguber.info/inful/packler/internal/workspace"
)

const (
	// StagingDirName holds per-stage staging directories inside the dist root.
	StagingDirName = ".packler-tmp"
	// LockFileName is the exclusive output lock inside the dist root.
	LockFileName = ".packler.lock"
)

// Paths is the resolved filesystem layout of one workspace.
type Paths struct {
	AssetsRoot   string // <root>/<assets.source_dir>
	SourceImages string // <assets>/images
	SourceSass   string // <assets>/css

	DistRoot     string // <root>/<output.dist_dir>
	DistImages   string // <dist>/images
	DistSass     string // <dist>/css
	ManifestFile string // <dist>/assets.json
	StagingRoot  string // <dist>/.packler-tmp
	LockFile     string // <dist>/.packler.lock

	TargetRoot  string // build-target root
	SassScratch string // <target>/packler/sass

	// Directory names relative to AssetsRoot and DistRoot.
	ImagesDirName string
	SassDirName   string
}

// Resolve derives the filesystem layout from the configuration and the
// detected workspace. Relative configuration paths are anchored at the
// workspace root.
func Resolve(cfg *Config, ws workspace.Info) Paths {
	root := ws.Root
	if root == "" {
		root = "."
	}
	anchor := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(root, p)
	}

	assets := anchor(cfg.Assets.SourceDir)
	dist := anchor(cfg.Output.DistDir)

	target := ws.TargetDir
	if cfg.Output.TargetDir != "" {
		target = anchor(cfg.Output.TargetDir)
	}
	if target == "" {
		target = anchor(DefaultTargetDir)
	}

	return Paths{
		AssetsRoot:    assets,
		SourceImages:  filepath.Join(assets, cfg.Assets.ImagesDir),
		SourceSass:    filepath.Join(assets, cfg.Assets.SassDir),
		DistRoot:      dist,
		DistImages:    filepath.Join(dist, cfg.Assets.ImagesDir),
		DistSass:      filepath.Join(dist, cfg.Assets.SassDir),
		ManifestFile:  filepath.Join(dist, cfg.Output.Manifest),
		StagingRoot:   filepath.Join(dist, StagingDirName),
		LockFile:      filepath.Join(dist, LockFileName),
		TargetRoot:    target,
		SassScratch:   filepath.Join(target, "packler", "sass"),
		ImagesDirName: filepath.Clean(cfg.Assets.ImagesDir),
		SassDirName:   filepath.Clean(cfg.Assets.SassDir),
	}
}
