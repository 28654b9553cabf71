// Package fingerprint computes content hashes for assets and derives the
// content-addressed file names they are published under.
package fingerprint

import (
	"fmt"
	"path"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Hash returns the 64-bit content digest of data.
func Hash(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Hex renders a digest as fixed-width lowercase hex (16 characters).
func Hex(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// HashedName inserts the digest before the final extension of a file name:
// "logo.min.png" becomes "logo.min-<hex>.png". Names without an extension
// (including dotfiles such as ".keep") get the digest appended.
func HashedName(name string, h uint64) string {
	stem, ext := splitExt(name)
	if ext == "" {
		return stem + "-" + Hex(h)
	}
	return stem + "-" + Hex(h) + ext
}

// HashedPath rewrites the file name of a slash-separated relative path with
// HashedName, keeping every directory segment intact.
func HashedPath(rel string, h uint64) string {
	dir, name := path.Split(rel)
	return dir + HashedName(name, h)
}

// splitExt splits on the last dot of name. A leading dot is part of the stem.
func splitExt(name string) (stem, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}
