// Package logfields holds canonical log field name constants to avoid drift
// across packages.
package logfields

import "log/slog"

const (
	KeyBuildID    = "build_id"
	KeyKey        = "key"
	KeyPath       = "path"
	KeyStage      = "stage"
	KeyTask       = "task"
	KeyGeneration = "generation"
	KeyPending    = "pending_tasks"
	KeyDurationMS = "duration_ms"
	KeyOutcome    = "outcome"
	KeySubject    = "subject"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr	{ return slog.String(KeyBuildID, id) }
func Key(k string) slog.Attr		{ return slog.String(KeyKey, k) }
func Path(p string) slog.Attr		{ return slog.String(KeyPath, p) }
func Stage(name string) slog.Attr	{ return slog.String(KeyStage, name) }
func Task(name string) slog.Attr	{ return slog.String(KeyTask, name) }
func Generation(g uint64) slog.Attr	{ return slog.Uint64(KeyGeneration, g) }
func Pending(n int) slog.Attr		{ return slog.Int(KeyPending, n) }
func DurationMS(ms float64) slog.Attr	{ return slog.Float64(KeyDurationMS, ms) }
func Outcome(o string) slog.Attr	{ return slog.String(KeyOutcome, o) }
func Subject(s string) slog.Attr	{ return slog.String(KeySubject, s) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
