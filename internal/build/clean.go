package build

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/packler/internal/config"
	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/fsutil"
	"git.home.luguber.info/inful/packler/internal/logfields"
	"git.home.luguber.info/inful/packler/internal/pipeline/images"
	"git.home.luguber.info/inful/packler/internal/pipeline/sass"
)

// Clean removes every artifact a build writes: the image and stylesheet
// output, the manifest, the compiler scratch directory and leftover staging
// directories. Missing paths are not an error.
func Clean(paths config.Paths) error {
	if err := images.Clean(paths.DistImages); err != nil {
		return err
	}
	if err := sass.Clean(paths.DistSass, paths.SassScratch); err != nil {
		return err
	}
	if err := fsutil.RemoveAll(paths.StagingRoot); err != nil {
		return err
	}
	if err := os.Remove(paths.ManifestFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return perrors.FileSystem("remove", paths.ManifestFile, err)
	}
	slog.Info("Build output removed", logfields.Path(paths.DistRoot))
	return nil
}
