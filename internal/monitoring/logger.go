// Package monitoring provides the structured logger shared by the gaze
// pipeline and its collaborators.
package monitoring

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging collaborator consumed by the pipeline.
// Fields are alternating key/value pairs.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, cause error, fields ...any)
}

// ZapLogger adapts a zap SugaredLogger to Logger.
type ZapLogger struct {
	s *zap.SugaredLogger
}

// NewLogger builds a zap-backed Logger. Development mode logs at debug level
// with a console encoder; production mode logs JSON at info level.
func NewLogger(development bool) (*ZapLogger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{s: l.Sugar()}, nil
}

// FromZap wraps an existing zap logger.
func FromZap(l *zap.Logger) *ZapLogger {
	return &ZapLogger{s: l.Sugar()}
}

func (z *ZapLogger) Debug(msg string, fields ...any) { z.s.Debugw(msg, fields...) }
func (z *ZapLogger) Info(msg string, fields ...any)  { z.s.Infow(msg, fields...) }
func (z *ZapLogger) Warn(msg string, fields ...any)  { z.s.Warnw(msg, fields...) }

func (z *ZapLogger) Error(msg string, cause error, fields ...any) {
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	z.s.Errorw(msg, fields...)
}

// Sync flushes buffered log entries.
func (z *ZapLogger) Sync() error { return z.s.Sync() }

// Nop returns a Logger that discards everything.
func Nop() Logger { return FromZap(zap.NewNop()) }

var (
	mu      sync.RWMutex
	current Logger = Nop()
)

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		current = Nop()
		return
	}
	current = l
}

// L returns the package logger.
func L() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}
