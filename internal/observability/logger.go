package observability

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/couchcryptid/diversity-predict-service/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/mdobak/go-xerrors"
)

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL and sets
// it as the slog default. Errors carrying a go-xerrors stack are logged as a
// group with their message and trace.
func NewLogger(cfg *config.Config) *slog.Logger {
	base := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger := slog.New(newStackHandler(base.Handler()))
	slog.SetDefault(logger)
	return logger
}

type stackHandler struct {
	slog.Handler
}

func newStackHandler(h slog.Handler) slog.Handler {
	return stackHandler{Handler: h}
}

func (h stackHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(expandError(a))
		return true
	})
	return h.Handler.Handle(ctx, out)
}

func (h stackHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	expanded := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		expanded[i] = expandError(a)
	}
	return stackHandler{Handler: h.Handler.WithAttrs(expanded)}
}

func (h stackHandler) WithGroup(name string) slog.Handler {
	return stackHandler{Handler: h.Handler.WithGroup(name)}
}

func expandError(a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	err, ok := a.Value.Any().(error)
	if !ok {
		return a
	}
	trace := xerrors.StackTrace(err)
	if len(trace) == 0 {
		return a
	}

	lines := make([]string, 0, len(trace))
	frames := runtime.CallersFrames(trace)
	for {
		f, more := frames.Next()
		if f.Function != "" {
			lines = append(lines, fmt.Sprintf("%s %s:%d", f.Function, f.File, f.Line))
		}
		if !more {
			break
		}
	}
	return slog.Group(a.Key,
		slog.String("msg", err.Error()),
		slog.Any("trace", lines),
	)
}
