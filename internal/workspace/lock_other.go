//go:build !unix

package workspace

import (
	"errors"
	"io/fs"
	"os"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/fsutil"
)

// Lock is an exclusive lock represented by the existence of a file.
type Lock struct {
	path string
	file *os.File
}

// Acquire creates the lock file exclusively. A stale file left by a crashed
// process has to be removed by hand.
func Acquire(path string) (*Lock, error) {
	if err := fsutil.EnsureParent(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, perrors.OutputLocked(path, err)
		}
		return nil, perrors.FileSystem("open", path, err)
	}
	return &Lock{path: path, file: f}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.file.Close()
	l.file = nil
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return perrors.FileSystem("remove", l.path, err)
	}
	return nil
}
