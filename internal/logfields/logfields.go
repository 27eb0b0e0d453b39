package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyPath       = "path"
	KeyFrom       = "from"
	KeyMode       = "mode"
	KeyMergeBase  = "merge_base"
	KeyIncluder   = "includer"
	KeyEntries    = "entries"
	KeyStage      = "stage"
	KeyFile       = "file"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func From(p string) slog.Attr         { return slog.String(KeyFrom, p) }
func Mode(m string) slog.Attr         { return slog.String(KeyMode, m) }
func MergeBase(b string) slog.Attr    { return slog.String(KeyMergeBase, b) }
func Includer(n string) slog.Attr     { return slog.String(KeyIncluder, n) }
func Entries(n int) slog.Attr         { return slog.Int(KeyEntries, n) }
func Stage(s string) slog.Attr        { return slog.String(KeyStage, s) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
