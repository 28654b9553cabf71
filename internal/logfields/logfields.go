package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID       = "build_id"
	KeyStage         = "stage"
	KeyDurationMS    = "duration_ms"
	KeyPath          = "path"
	KeyLogicalPath   = "logical_path"
	KeyProcessedPath = "processed_path"
	KeyEntrypoint    = "entrypoint"
	KeyObjectKey     = "object_key"
	KeyBucket        = "bucket"
	KeyComponent     = "component"
	KeyOutcome       = "outcome"
	KeyCount         = "count"
	KeyError         = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func LogicalPath(p string) slog.Attr   { return slog.String(KeyLogicalPath, p) }
func ProcessedPath(p string) slog.Attr { return slog.String(KeyProcessedPath, p) }
func Entrypoint(e string) slog.Attr    { return slog.String(KeyEntrypoint, e) }
func ObjectKey(k string) slog.Attr     { return slog.String(KeyObjectKey, k) }
func Bucket(b string) slog.Attr        { return slog.String(KeyBucket, b) }
func Component(c string) slog.Attr     { return slog.String(KeyComponent, c) }
func Outcome(o string) slog.Attr       { return slog.String(KeyOutcome, o) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
