package watch

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
)

// ignored reports whether a change to rel (slash-separated, relative to the
// watched root) must not trigger a rebuild.
func ignored(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return isEditorArtifact(filepath.Base(filepath.FromSlash(rel)))
}

// isEditorArtifact matches hidden files, swap files and OS metadata files.
func isEditorArtifact(base string) bool {
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}

// ValidatePatterns reports the first malformed glob.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return perrors.ValidationFailed("watch.ignore", fmt.Sprintf("invalid glob %q", p))
		}
	}
	return nil
}
