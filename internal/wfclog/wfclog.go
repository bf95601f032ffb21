// Package wfclog wires the engine's structured logging onto logiface,
// defaulting to the stumpy JSON backend, matching how the rest of the
// joeycumines-go-utilpkg logger integrations (zerolog, logrus) are plugged
// into logiface: the core packages depend only on *logiface.Logger[E] for
// an arbitrary Event type, and this package supplies the concrete default.
package wfclog

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/logiface/stumpy"
)

// Logger is the concrete logger type threaded through the engine. Any
// *logiface.Logger[*stumpy.Event] built by a caller (e.g. with a different
// writer or level) may be substituted.
type Logger = *logiface.Logger[*stumpy.Event]

// Default returns a Logger writing newline-delimited JSON to os.Stderr at
// LevelInformational, matching stumpy's zero-configuration defaults.
func Default() Logger {
	return logiface.New[*stumpy.Event](
		stumpy.WithStumpy(),
		logiface.WithLevel[*stumpy.Event](logiface.LevelInformational),
	)
}

// New returns a Logger writing newline-delimited JSON to os.Stderr at the
// given level, for callers (e.g. cmd/wfcdemo's --log-level flag) that want
// something other than Default's fixed LevelInformational.
func New(level logiface.Level) Logger {
	return logiface.New[*stumpy.Event](
		stumpy.WithStumpy(),
		logiface.WithLevel[*stumpy.Event](level),
	)
}

// Noop returns a Logger that discards everything, for tests that don't want
// log noise.
func Noop() Logger {
	return logiface.New[*stumpy.Event](
		logiface.WithLevel[*stumpy.Event](logiface.LevelDisabled),
	)
}

// Nil reports whether l is a nil logger reference. OrDefault uses it to
// substitute Default for a nil Logger.
func Nil(l Logger) bool {
	return l == nil
}

// OrDefault returns l, or Default() if l is nil. Components use this in
// their constructors so a nil Logger option behaves like "use the default"
// rather than silently discarding logs.
func OrDefault(l Logger) Logger {
	if Nil(l) {
		return Default()
	}
	return l
}
