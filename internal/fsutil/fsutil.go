// Package fsutil holds the filesystem primitives shared by the asset stages.
// Every failure is returned as a filesystem-category PacklerError.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/logfields"
)

// EnsureParent creates the parent directory of path.
func EnsureParent(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return perrors.FileSystem("mkdir", dir, err)
	}
	return nil
}

// CopyFile copies a single file from src to dst byte for byte, preserving
// the permission bits of src.
func CopyFile(src, dst string) (err error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return perrors.FileSystem("open", src, err)
	}
	defer func() {
		_ = srcFile.Close()
	}()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return perrors.FileSystem("stat", src, err)
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return perrors.FileSystem("create", dst, err)
	}
	defer func() {
		if cerr := dstFile.Close(); cerr != nil && err == nil {
			err = perrors.FileSystem("close", dst, cerr)
		}
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return perrors.FileSystem("copy", dst, err)
	}
	return nil
}

// MoveFile relocates src to dst by copying then deleting src. A rename would
// keep the security label of the scratch location (SELinux leaves the file
// unlabeled_t), which stops it from being served from a container.
func MoveFile(src, dst string) error {
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return perrors.FileSystem("remove", src, err)
	}
	return nil
}

// RemoveAll deletes path recursively; a missing path is not an error.
func RemoveAll(path string) error {
	if err := os.RemoveAll(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return perrors.FileSystem("remove_all", path, err)
	}
	return nil
}

// ReplaceDir swaps the directory dst for src. The previous dst is renamed
// aside first and removed only once src is in place, so an interrupted run
// leaves either the old or the new tree, never a partially copied one. Once
// src is in place ReplaceDir succeeds even if the old tree cannot be removed.
// src and dst must live on the same filesystem.
func ReplaceDir(src, dst string) error {
	if err := EnsureParent(dst); err != nil {
		return err
	}

	backup := ""
	if _, err := os.Lstat(dst); err == nil {
		backup = fmt.Sprintf("%s.old-%d", dst, time.Now().UnixNano())
		if err := os.Rename(dst, backup); err != nil {
			return perrors.FileSystem("rename", dst, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return perrors.FileSystem("stat", dst, err)
	}

	if err := os.Rename(src, dst); err != nil {
		if backup != "" {
			_ = os.Rename(backup, dst)
		}
		return perrors.FileSystem("rename", src, err)
	}

	// The new tree is live at this point; a leftover backup is only clutter.
	if backup != "" {
		if err := removeBackup(backup); err != nil {
			slog.Warn("Could not remove previous output", logfields.Path(backup), logfields.Error(err))
		}
	}
	return nil
}

var removeBackup = RemoveAll

// IsExecutable reports whether path is a regular file with an executable bit.
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}
