package hbs

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

var discardLogger = slog.New(slog.DiscardHandler)

// logger returns the logger ctx carries, or one that drops everything.
func logger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return discardLogger
}

// LoggingContext returns a copy of ctx carrying l. Renders made with the
// returned context log through l: compiles and finished renders at debug
// level, skipped partials and unresolved placeholders as warnings, and
// failed renders as errors. Without it, an Engine logs nothing.
func LoggingContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}
