//go:build unix

package workspace

import (
	"os"

	"golang.org/x/sys/unix"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/fsutil"
)

// Lock is an exclusive advisory lock on a file next to the output root.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes the lock at path without blocking. If another process holds
// it, an OutputLocked error is returned immediately.
func Acquire(path string) (*Lock, error) {
	if err := fsutil.EnsureParent(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, perrors.FileSystem("open", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, perrors.OutputLocked(path, err)
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
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return perrors.FileSystem("close", l.path, err)
	}
	return nil
}
