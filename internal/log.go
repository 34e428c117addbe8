package internal

import (
	"context"
	"log/slog"
)

// LevelTrace is finer-grained than [slog.LevelDebug] and is used for
// per-packet tracing in the forwarding and ARP hot paths.
const LevelTrace slog.Level = slog.LevelDebug - 2

// LogEnabled reports whether l has a handler enabled for lvl, treating a nil
// logger as disabled. Callers use this to skip building attrs on hot paths.
func LogEnabled(l *slog.Logger, lvl slog.Level) bool {
	return l != nil && l.Handler().Enabled(context.Background(), lvl)
}

// LogAttrs is the logging helper shared by every package logger. It treats a
// nil *slog.Logger as "no logging" instead of panicking, since components
// are constructed before a logger is necessarily attached.
func LogAttrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l != nil {
		l.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
