// Package log is the process-wide structured logger used by the commands.
// Library packages return errors and never log.
package log

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger atomic.Pointer[zap.Logger] // skips the wrapper frame
	direct atomic.Pointer[zap.Logger]
)

func init() {
	Set(zap.NewNop())
}

// Init builds the global logger. format is "console" or "json"; level is a
// zap level name such as "debug" or "info".
func Init(level, format string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	var cfg zap.Config
	switch format {
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return fmt.Errorf("log format %q: want console or json", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set replaces the global logger.
func Set(l *zap.Logger) {
	direct.Store(l)
	logger.Store(l.WithOptions(zap.AddCallerSkip(1)))
}

// L returns the global logger as built by Init or passed to Set.
func L() *zap.Logger { return direct.Load() }

// With returns a child of the global logger for direct use.
func With(fields ...zap.Field) *zap.Logger { return direct.Load().With(fields...) }

func Debug(msg string, fields ...zap.Field) { logger.Load().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { logger.Load().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { logger.Load().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { logger.Load().Error(msg, fields...) }

func Fatal(msg string, fields ...zap.Field) { logger.Load().Fatal(msg, fields...) }

// Sync flushes buffered entries.
func Sync() { _ = direct.Load().Sync() }
