// Package logger provides structured logging functionality.
package logger

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/smilemakc/chainflow/internal/config"
)

// Logger wraps zerolog.Logger with the method set the rest of this
// module logs through.
type Logger struct {
	logger zerolog.Logger
}

// New creates a new logger based on the configuration.
func New(cfg config.LoggingConfig) *Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var writer zerolog.Logger
	if cfg.Format == "console" {
		writer = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		writer = zerolog.New(os.Stdout)
	}

	return &Logger{logger: writer.With().Timestamp().Logger()}
}

// With returns a new logger annotated with the given key/value pairs,
// which must come in (key string, value interface{}) pairs.
func (l *Logger) With(args ...interface{}) *Logger {
	ctx := l.logger.With()
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, args[i+1])
	}
	return &Logger{logger: ctx.Logger()}
}

// WithContext attaches l to ctx so it can be recovered by a caller that
// only has the context, mirroring zerolog's own context-carrying idiom.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return l.logger.WithContext(ctx)
}

// FromContext recovers a Logger previously attached via WithContext,
// falling back to Default if none was attached.
func FromContext(ctx context.Context) *Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return Default()
	}
	return &Logger{logger: *l}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.event(l.logger.Debug(), msg, args)
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.event(l.logger.Info(), msg, args)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.event(l.logger.Warn(), msg, args)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.event(l.logger.Error(), msg, args)
}

func (l *Logger) event(e *zerolog.Event, msg string, args []interface{}) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if err, ok := args[i+1].(error); ok {
			e = e.AnErr(key, err)
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}

func parseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

// defaultLogger is the process-wide logger used by the package-level
// convenience functions.
var defaultLogger = New(config.LoggingConfig{Level: "info", Format: "json"})

// Default returns the default logger.
func Default() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(l *Logger) {
	defaultLogger = l
}

// Debug logs a debug message using the default logger.
func Debug(msg string, args ...interface{}) { defaultLogger.Debug(msg, args...) }

// Info logs an info message using the default logger.
func Info(msg string, args ...interface{}) { defaultLogger.Info(msg, args...) }

// Warn logs a warning message using the default logger.
func Warn(msg string, args ...interface{}) { defaultLogger.Warn(msg, args...) }

// Error logs an error message using the default logger.
func Error(msg string, args ...interface{}) { defaultLogger.Error(msg, args...) }
