package logger

import (
	"context"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the structured logging contract used across the engine.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type charmLogger struct {
	impl *charmlog.Logger
}

func (l *charmLogger) Debug(msg string, keyvals ...any) { l.impl.Debug(msg, keyvals...) }
func (l *charmLogger) Info(msg string, keyvals ...any)  { l.impl.Info(msg, keyvals...) }
func (l *charmLogger) Warn(msg string, keyvals ...any)  { l.impl.Warn(msg, keyvals...) }
func (l *charmLogger) Error(msg string, keyvals ...any) { l.impl.Error(msg, keyvals...) }

func (l *charmLogger) With(keyvals ...any) Logger {
	return &charmLogger{impl: l.impl.With(keyvals...)}
}

// Config holds the logger configuration.
type Config struct {
	Level      charmlog.Level
	Output     io.Writer
	JSON       bool
	TimeFormat string
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:      charmlog.InfoLevel,
		Output:     os.Stderr,
		JSON:       false,
		TimeFormat: "15:04:05",
	}
}

// NewLogger builds a charm-backed logger from cfg.
func NewLogger(cfg *Config) Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	impl := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           cfg.Level,
	})
	if cfg.JSON {
		impl.SetFormatter(charmlog.JSONFormatter)
	} else {
		impl.SetFormatter(charmlog.TextFormatter)
	}
	return &charmLogger{impl: impl}
}

// ParseLevel maps a level name to a charm log level, defaulting to info.
func ParseLevel(level string) charmlog.Level {
	switch level {
	case "debug":
		return charmlog.DebugLevel
	case "info":
		return charmlog.InfoLevel
	case "warn":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

type ctxKey struct{}

// ContextWithLogger attaches log to ctx for retrieval by FromContext.
func ContextWithLogger(ctx context.Context, log Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger attached to ctx, or a default logger when
// none is present. Engine code never receives a nil logger.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if log, ok := ctx.Value(ctxKey{}).(Logger); ok && log != nil {
			return log
		}
	}
	return NewLogger(DefaultConfig())
}
