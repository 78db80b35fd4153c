// Package logger wraps zap with the small, opinionated surface the rest of
// this module depends on, so call sites never import zap directly.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Logger wraps a zap.SugaredLogger with a fixed method set (Debug/Info/
// Warn/Error taking a message plus alternating key/value pairs) so the
// rest of the codebase depends on this type instead of on zap directly.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a Logger. mode "production" yields JSON output at info level;
// anything else (including "") yields human-readable development output at
// debug level.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	if mode == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return &Logger{sugar: z.Sugar()}, nil
}

// Sync flushes any buffered log entries. Call once at process shutdown.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

func (l *Logger) Debug(msg string, kv ...any) { l.sugar.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.sugar.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.sugar.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.sugar.Errorw(msg, kv...) }

// With returns a child Logger carrying kv on every subsequent call, useful
// for scoping a logger to one conversion run (manifest URL, canvas index).
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{sugar: l.sugar.With(kv...)}
}

// Nop returns a Logger that discards everything, for tests and callers
// that don't want to wire a real sink.
func Nop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}
