package config

import (
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/packler/internal/foundation/normalization"
)

// SassStyle is the output style passed to the stylesheet compiler.
type SassStyle string

const (
	SassStyleExpanded   SassStyle = "expanded"
	SassStyleCompressed SassStyle = "compressed"
)

var sassStyleNormalizer = normalization.NewNormalizer(map[string]SassStyle{
	"expanded":   SassStyleExpanded,
	"compressed": SassStyleCompressed,
}, SassStyleExpanded)

// EntrypointStem is the slash-separated entry path without its extension.
// Compiled output for the entry is named after it, so two entries with the
// same stem (main.scss and main.sass) would write the same files.
func EntrypointStem(entry string) string {
	clean := filepath.ToSlash(filepath.Clean(entry))
	return strings.TrimSuffix(clean, path.Ext(clean))
}

// EntrypointCollision returns the first pair of entries sharing a stem.
func EntrypointCollision(entries []string) (first, second string, found bool) {
	seen := make(map[string]string, len(entries))
	for _, e := range entries {
		stem := EntrypointStem(e)
		if prev, ok := seen[stem]; ok {
			return prev, e, true
		}
		seen[stem] = e
	}
	return "", "", false
}
