package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.bin")
	dst := filepath.Join(dir, "b.bin")
	require.NoError(t, os.WriteFile(src, []byte{0, 1, 2, 3}, 0o640))

	require.NoError(t, CopyFile(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3}, got)
	_, err = os.Stat(src)
	assert.NoError(t, err, "source must survive a copy")
}

func TestCopyFile_MissingSourceIsFilesystemError(t *testing.T) {
	dir := t.TempDir()
	err := CopyFile(filepath.Join(dir, "missing"), filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryFileSystem))
}

func TestMoveFile_CopiesThenRemoves(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scratch", "main.css")
	dst := filepath.Join(dir, "dist", "main-00.css")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("a{}"), 0o644))
	require.NoError(t, EnsureParent(dst))

	require.NoError(t, MoveFile(src, dst))

	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "a{}", string(got))
}

func TestReplaceDir(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dist", "images")
	require.NoError(t, os.MkdirAll(dst, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "stale.png"), []byte("old"), 0o644))

	src := filepath.Join(dir, "dist", ".tmp", "images")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "fresh.png"), []byte("new"), 0o644))

	require.NoError(t, ReplaceDir(src, dst))

	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh.png", entries[0].Name())

	siblings, err := os.ReadDir(filepath.Join(dir, "dist"))
	require.NoError(t, err)
	for _, s := range siblings {
		assert.NotContains(t, s.Name(), ".old-", "backup must be removed")
	}
}

func TestReplaceDir_BackupRemovalFailureStillSucceeds(t *testing.T) {
	prev := removeBackup
	removeBackup = func(string) error { return errors.New("device busy") }
	t.Cleanup(func() { removeBackup = prev })

	dir := t.TempDir()
	dst := filepath.Join(dir, "images")
	require.NoError(t, os.MkdirAll(dst, 0o755))
	src := filepath.Join(dir, "staging")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "fresh.png"), []byte("new"), 0o644))

	require.NoError(t, ReplaceDir(src, dst))
	_, err := os.Stat(filepath.Join(dst, "fresh.png"))
	assert.NoError(t, err, "the new tree is live")
}

func TestReplaceDir_NoPreviousDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "staging")
	require.NoError(t, os.MkdirAll(src, 0o755))
	dst := filepath.Join(dir, "out", "css")

	require.NoError(t, ReplaceDir(src, dst))
	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRemoveAll_MissingIsNotAnError(t *testing.T) {
	assert.NoError(t, RemoveAll(filepath.Join(t.TempDir(), "nope")))
}

func TestIsExecutable(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "tool")
	plain := filepath.Join(dir, "data")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0o644))

	assert.True(t, IsExecutable(exe))
	assert.False(t, IsExecutable(plain))
	assert.False(t, IsExecutable(dir))
	assert.False(t, IsExecutable(filepath.Join(dir, "missing")))
}
