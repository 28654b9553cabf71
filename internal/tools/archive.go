package tools

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
)

// maxArchiveEntry bounds a single extracted file. Larger entries fail the
// extraction.
var maxArchiveEntry int64 = 256 << 20

// fetchAndExtract downloads a .tar.gz from url and unpacks it into dest.
// Network failures and 5xx responses are retryable.
func fetchAndExtract(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return perrors.Wrap(err, perrors.CategoryTool, perrors.SeverityError, "build download request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return perrors.WrapRetryable(err, perrors.CategoryTool, perrors.SeverityWarning, "download failed").
			WithContext("url", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		cause := fmt.Errorf("unexpected status %s", resp.Status)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return perrors.WrapRetryable(cause, perrors.CategoryTool, perrors.SeverityWarning, "download failed").
				WithContext("url", url)
		}
		return perrors.Wrap(cause, perrors.CategoryTool, perrors.SeverityError, "download failed").
			WithContext("url", url)
	}

	return extractTarGz(resp.Body, dest)
}

// extractTarGz unpacks regular files, directories and symlinks. Entries that
// would land outside dest are rejected.
func extractTarGz(r io.Reader, dest string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return perrors.Wrap(err, perrors.CategoryTool, perrors.SeverityError, "open gzip stream")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return perrors.Wrap(err, perrors.CategoryTool, perrors.SeverityError, "read tar stream")
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o750); err != nil {
				return perrors.FileSystem("mkdir", target, err)
			}
		case tar.TypeReg:
			if err := writeEntry(tr, target, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if _, err := safeJoin(filepath.Dir(target), hdr.Linkname); err != nil || filepath.IsAbs(hdr.Linkname) {
				return perrors.ValidationFailed("archive", "symlink escapes destination: "+hdr.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
				return perrors.FileSystem("mkdir", filepath.Dir(target), err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return perrors.FileSystem("symlink", target, err)
			}
		}
	}
}

func writeEntry(r io.Reader, target string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return perrors.FileSystem("mkdir", filepath.Dir(target), err)
	}
	// #nosec G304 -- target is confined to the extraction root by safeJoin
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o600)
	if err != nil {
		return perrors.FileSystem("create", target, err)
	}
	n, err := io.Copy(f, io.LimitReader(r, maxArchiveEntry+1))
	if err != nil {
		_ = f.Close()
		return perrors.FileSystem("write", target, err)
	}
	if n > maxArchiveEntry {
		_ = f.Close()
		_ = os.Remove(target)
		return perrors.ValidationFailed("archive",
			fmt.Sprintf("entry %s exceeds %d bytes", filepath.Base(target), maxArchiveEntry))
	}
	if err := f.Close(); err != nil {
		return perrors.FileSystem("close", target, err)
	}
	return nil
}

func safeJoin(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", perrors.ValidationFailed("archive", "entry escapes destination: "+name)
	}
	return filepath.Join(root, clean), nil
}
