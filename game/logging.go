package game

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger sets the logger used by the game package. Nil restores the
// silent default. Safe for concurrent use.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current package logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// lateHandler forwards records to whatever logger is current when the record
// is handled, so loggers handed to long-lived components follow SetLogger.
type lateHandler struct {
	wraps []func(slog.Handler) slog.Handler
}

func (h lateHandler) resolve() slog.Handler {
	out := Logger().Handler()
	for _, w := range h.wraps {
		out = w(out)
	}
	return out
}

func (h lateHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Logger().Handler().Enabled(ctx, level)
}

func (h lateHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.resolve().Handle(ctx, r)
}

func (h lateHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

func (h lateHandler) WithGroup(name string) slog.Handler {
	return h.with(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

func (h lateHandler) with(w func(slog.Handler) slog.Handler) slog.Handler {
	wraps := make([]func(slog.Handler) slog.Handler, len(h.wraps), len(h.wraps)+1)
	copy(wraps, h.wraps)
	return lateHandler{wraps: append(wraps, w)}
}

// componentLogger returns a logger tagged with component that always writes
// through the current package logger.
func componentLogger(component string) *slog.Logger {
	return slog.New(lateHandler{}).With("component", component)
}
