package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the leveled key-value logger used across the service.
// Key-value pairs are passed as alternating arguments: log.Info("msg", "key", value).
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Fatal(msg string, keysAndValues ...interface{})
	With(keysAndValues ...interface{}) Logger
}

type zeroLogger struct {
	zl zerolog.Logger
}

func New(level string) Logger {
	zl := zerolog.New(os.Stdout).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
	return &zeroLogger{zl: zl}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *zeroLogger) Debug(msg string, kv ...interface{}) { emit(l.zl.Debug(), msg, kv) }
func (l *zeroLogger) Info(msg string, kv ...interface{})  { emit(l.zl.Info(), msg, kv) }
func (l *zeroLogger) Warn(msg string, kv ...interface{})  { emit(l.zl.Warn(), msg, kv) }
func (l *zeroLogger) Error(msg string, kv ...interface{}) { emit(l.zl.Error(), msg, kv) }
func (l *zeroLogger) Fatal(msg string, kv ...interface{}) { emit(l.zl.Fatal(), msg, kv) }

func (l *zeroLogger) With(kv ...interface{}) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(kv); i += 2 {
		ctx = ctx.Interface(key(kv[i]), kv[i+1])
	}
	return &zeroLogger{zl: ctx.Logger()}
}

func emit(ev *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		ev = ev.Interface(key(kv[i]), kv[i+1])
	}
	ev.Msg(msg)
}

func key(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() Logger {
	return &zeroLogger{zl: zerolog.Nop()}
}
