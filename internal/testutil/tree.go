// Package testutil holds filesystem helpers shared by packler tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// WriteFile writes content at root/rel, creating parent directories. rel uses
// forward slashes.
func WriteFile(t testing.TB, root, rel, content string) string {
	t.Helper()
	return WriteFileMode(t, root, rel, content, 0o644)
}

// WriteFileMode is WriteFile with an explicit mode, for executables.
func WriteFileMode(t testing.TB, root, rel, content string, mode os.FileMode) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), mode))
	return p
}

// WriteTree writes every rel -> content pair under root.
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		WriteFile(t, root, rel, content)
	}
}

// Tree asserts on files below a base directory.
type Tree struct {
	t    testing.TB
	base string
}

// NewTree returns assertions rooted at base.
func NewTree(t testing.TB, base string) *Tree {
	return &Tree{t: t, base: base}
}

func (tr *Tree) path(rel string) string {
	return filepath.Join(tr.base, filepath.FromSlash(rel))
}

// Exists asserts that every rel exists.
func (tr *Tree) Exists(rels ...string) *Tree {
	tr.t.Helper()
	for _, rel := range rels {
		_, err := os.Stat(tr.path(rel))
		assert.NoError(tr.t, err, "expected %s to exist", rel)
	}
	return tr
}

// Missing asserts that no rel exists.
func (tr *Tree) Missing(rels ...string) *Tree {
	tr.t.Helper()
	for _, rel := range rels {
		_, err := os.Stat(tr.path(rel))
		assert.True(tr.t, os.IsNotExist(err), "expected %s to be absent", rel)
	}
	return tr
}

// Contains asserts that the file at rel contains substr.
func (tr *Tree) Contains(rel, substr string) *Tree {
	tr.t.Helper()
	data, err := os.ReadFile(tr.path(rel))
	if assert.NoError(tr.t, err, rel) {
		assert.Contains(tr.t, string(data), substr, rel)
	}
	return tr
}

// Read returns the content of rel, failing the test if it cannot be read.
func (tr *Tree) Read(rel string) string {
	tr.t.Helper()
	data, err := os.ReadFile(tr.path(rel))
	require.NoError(tr.t, err, rel)
	return string(data)
}
