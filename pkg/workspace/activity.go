package workspace

import (
	"context"
	"log/slog"
)

// ActivityLogger records user-visible workspace activity. It is only wired
// in when telemetry is enabled.
type ActivityLogger interface {
	Activity(ctx context.Context, event string, attrs ...any)
}

type noopActivity struct{}

func (noopActivity) Activity(context.Context, string, ...any) {}

type slogActivity struct{ logger *slog.Logger }

// NewSlogActivity returns an ActivityLogger that writes Info records to l.
func NewSlogActivity(l *slog.Logger) ActivityLogger {
	if l == nil {
		l = slog.Default()
	}
	return slogActivity{logger: l.With("component", "activity")}
}

func (a slogActivity) Activity(ctx context.Context, event string, attrs ...any) {
	a.logger.InfoContext(ctx, event, attrs...)
}
