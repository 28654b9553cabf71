package storage

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/fsutil"
)

// corsFileName is where DirBucket records the last CORS rule.
const corsFileName = ".cors.json"

// DirBucket is a filesystem-backed Bucket used for local deploy targets
// (file:// endpoints). Objects are laid out by key under the base path:
//
//	<base>/
//	  images/logo-1a2b3c4d5e6f7890.png
//	  css/main-0f1e2d3c4b5a6978.css
//	  .cors.json
type DirBucket struct {
	name     string
	basePath string
	mu       sync.Mutex
}

// NewDirBucket creates the base directory if needed.
func NewDirBucket(name, basePath string) (*DirBucket, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, perrors.FileSystem("mkdir", basePath, err)
	}
	return &DirBucket{name: name, basePath: basePath}, nil
}

func (d *DirBucket) Name() string { return d.name }

// PutObject writes the object to <base>/<key>. Keys must stay inside the base.
func (d *DirBucket) PutObject(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	dst, err := d.objectPath(key)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := fsutil.EnsureParent(dst); err != nil {
		return err
	}
	// #nosec G304 -- dst is confined to basePath by objectPath
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return perrors.FileSystem("create", dst, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return perrors.FileSystem("write", dst, err)
	}
	if err := f.Close(); err != nil {
		return perrors.FileSystem("close", dst, err)
	}
	return nil
}

// SetCORS records the rule as JSON next to the objects.
func (d *DirBucket) SetCORS(_ context.Context, rule CORSRule) error {
	data, err := json.MarshalIndent(rule, "", "  ")
	if err != nil {
		return perrors.CORSFailed(d.name, err)
	}
	path := filepath.Join(d.basePath, corsFileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return perrors.CORSFailed(d.name, err)
	}
	return nil
}

func (d *DirBucket) objectPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", perrors.ValidationFailed("key", "object key escapes bucket: "+key)
	}
	return filepath.Join(d.basePath, clean), nil
}
