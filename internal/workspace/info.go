package workspace

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/mod/modfile"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
)

// Markers that identify a workspace root, checked in order in every directory.
var rootMarkers = []string{"packler.yaml", "go.mod"}

// DefaultTargetDirName is the build-target directory created under the root.
const DefaultTargetDirName = "target"

// Info is the workspace metadata resolved once at startup.
type Info struct {
	// Root is the workspace root. It is relative when Detect was given a
	// relative start directory, absolute otherwise.
	Root string

	// ModulePath is the Go module path declared in go.mod, if any.
	ModulePath string

	// TargetDir is the build-target root for intermediate artifacts.
	TargetDir string

	// Commands maps each command package name (cmd/<name>) to its directory.
	Commands map[string]string
}

// Detect walks up from start until it finds a directory holding one of the
// root markers. Without a marker the start directory itself is the root.
func Detect(start string) (Info, error) {
	absStart, err := filepath.Abs(start)
	if err != nil {
		return Info{}, perrors.FileSystem("abs", start, err)
	}

	rootAbs := absStart
	for dir := absStart; ; dir = filepath.Dir(dir) {
		if hasMarker(dir) {
			rootAbs = dir
			break
		}
		if parent := filepath.Dir(dir); parent == dir {
			break
		}
	}

	root := rootAbs
	if !filepath.IsAbs(start) {
		if rel, err := filepath.Rel(absStart, rootAbs); err == nil {
			root = filepath.Join(start, rel)
		}
	}

	info := Info{
		Root:      root,
		TargetDir: filepath.Join(root, DefaultTargetDirName),
		Commands:  map[string]string{},
	}

	if data, err := os.ReadFile(filepath.Join(rootAbs, "go.mod")); err == nil {
		info.ModulePath = modfile.ModulePath(data)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Info{}, perrors.FileSystem("read", filepath.Join(rootAbs, "go.mod"), err)
	}

	entries, err := os.ReadDir(filepath.Join(rootAbs, "cmd"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Info{}, perrors.FileSystem("read_dir", filepath.Join(rootAbs, "cmd"), err)
	}
	for _, e := range entries {
		if e.IsDir() {
			info.Commands[e.Name()] = filepath.Join(root, "cmd", e.Name())
		}
	}

	return info, nil
}

// CommandDir returns the directory of the named command package.
func (i Info) CommandDir(name string) (string, bool) {
	dir, ok := i.Commands[name]
	return dir, ok
}

// CommandNames returns the command package names in sorted order.
func (i Info) CommandNames() []string {
	names := make([]string, 0, len(i.Commands))
	for n := range i.Commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func hasMarker(dir string) bool {
	for _, m := range rootMarkers {
		if st, err := os.Stat(filepath.Join(dir, m)); err == nil && !st.IsDir() {
			return true
		}
	}
	return false
}
