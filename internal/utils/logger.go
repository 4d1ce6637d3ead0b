// internal/utils/logger.go

package utils

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger defines the interface for logging throughout the application.
type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...interface{})
	Info(msg string)
	Infof(format string, args ...interface{})
	Warn(msg string)
	Warnf(format string, args ...interface{})
	Error(msg string)
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	Sync() error
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // json or console
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// zapLogger adapts a zap SugaredLogger to Logger.
type zapLogger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// NewLogger creates a zap-backed logger from the given configuration.
func NewLogger(cfg LogConfig) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true

	if cfg.Output != "" {
		zc.OutputPaths = []string{cfg.Output}
	}

	base, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return &zapLogger{sugar: base.Sugar(), level: zc.Level}, nil
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar(), level: zap.NewAtomicLevel()}
}

// ParseLevel converts a level name to a zap level. Empty means info.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// SetLevel changes the level of a logger created by NewLogger. Loggers
// derived with WithField share the level.
func SetLevel(l Logger, name string) error {
	zl, ok := l.(*zapLogger)
	if !ok {
		return fmt.Errorf("logger does not support level changes")
	}
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	zl.level.SetLevel(level)
	return nil
}

func (l *zapLogger) Debug(msg string) { l.sugar.Debug(msg) }

func (l *zapLogger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

func (l *zapLogger) Info(msg string) { l.sugar.Info(msg) }

func (l *zapLogger) Infof(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

func (l *zapLogger) Warn(msg string) { l.sugar.Warn(msg) }

func (l *zapLogger) Warnf(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

func (l *zapLogger) Error(msg string) { l.sugar.Error(msg) }

func (l *zapLogger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

func (l *zapLogger) WithField(key string, value interface{}) Logger {
	return &zapLogger{sugar: l.sugar.With(key, value), level: l.level}
}

func (l *zapLogger) WithFields(fields map[string]interface{}) Logger {
	if len(fields) == 0 {
		return l
	}

	// Sorted so output is stable across runs.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return &zapLogger{sugar: l.sugar.With(args...), level: l.level}
}

func (l *zapLogger) Sync() error {
	return l.sugar.Sync()
}
