// Package manifest defines the asset manifest produced by every build and
// consumed by deploy.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
)

// AssetRecord describes one processed asset.
type AssetRecord struct {
	// SourcePath is the path of the original input file as seen by the build.
	SourcePath string `json:"source_path"`

	// LogicalPath is relative to the asset source root and identifies the
	// asset regardless of its content.
	LogicalPath string `json:"logical_path"`

	// ProcessedRelativePath is relative to the output root: LogicalPath with
	// the content hash embedded in the file name.
	ProcessedRelativePath string `json:"processed_relative_path"`

	// Hash is recomputed on every run and never persisted.
	Hash uint64 `json:"-"`
}

// Manifest aggregates the records of one build.
type Manifest struct {
	Images      []AssetRecord `json:"images"`
	Stylesheets []AssetRecord `json:"sass"`
}

// New returns a manifest holding the given records. Nil slices are replaced
// by empty ones so the serialized form always carries both arrays.
func New(images, stylesheets []AssetRecord) *Manifest {
	if images == nil {
		images = []AssetRecord{}
	}
	if stylesheets == nil {
		stylesheets = []AssetRecord{}
	}
	return &Manifest{Images: images, Stylesheets: stylesheets}
}

// All returns images followed by stylesheets.
func (m *Manifest) All() []AssetRecord {
	all := make([]AssetRecord, 0, len(m.Images)+len(m.Stylesheets))
	all = append(all, m.Images...)
	return append(all, m.Stylesheets...)
}

// Len returns the number of records in the manifest.
func (m *Manifest) Len() int {
	return len(m.Images) + len(m.Stylesheets)
}

// Mapping returns logical path → processed relative path for every record.
func (m *Manifest) Mapping() map[string]string {
	out := make(map[string]string, m.Len())
	for _, r := range m.All() {
		out[r.LogicalPath] = r.ProcessedRelativePath
	}
	return out
}

// ToJSON serializes the manifest to indented JSON.
func (m *Manifest) ToJSON() ([]byte, error) {
	norm := New(m.Images, m.Stylesheets)
	data, err := json.MarshalIndent(norm, "", "  ")
	if err != nil {
		return nil, perrors.ManifestEncode(err)
	}
	return data, nil
}

// FromJSON deserializes a manifest from JSON.
func FromJSON(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, perrors.Wrap(err, perrors.CategorySerialization, perrors.SeverityFatal, "could not parse asset manifest")
	}
	return New(m.Images, m.Stylesheets), nil
}

// Write replaces the manifest file at path. The content is written to a
// sibling temporary file first and renamed over the target.
func (m *Manifest) Write(path string) error {
	data, err := m.ToJSON()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return perrors.ManifestWrite(path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return perrors.ManifestWrite(path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return perrors.ManifestWrite(path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return perrors.ManifestWrite(path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return perrors.ManifestWrite(path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return perrors.ManifestWrite(path, err)
	}
	return nil
}

// Read loads a manifest file from disk.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.FileSystem("read", path, err)
	}
	m, err := FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
