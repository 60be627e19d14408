// Package logger holds the process-wide zap logger.
package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger = zap.NewNop()
	mu           sync.Mutex
)

// Options selects the encoder, level and outputs.
type Options struct {
	Level    string // debug, info, warn, error
	Format   string // console or json
	FilePath string // optional log file, written in addition to stderr
	Quiet    bool   // drop stderr output, file only
}

// New builds a zap logger from opts.
func New(opts Options) (*zap.Logger, error) {
	var zapCfg zap.Config
	if strings.EqualFold(opts.Format, "console") {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.Sampling = nil
	}
	zapCfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	outputs := []string{}
	if !opts.Quiet {
		outputs = append(outputs, "stderr")
	}
	if opts.FilePath != "" {
		outputs = append(outputs, opts.FilePath)
	}
	if len(outputs) == 0 {
		return zap.NewNop(), nil
	}
	zapCfg.OutputPaths = outputs
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	return zapCfg.Build()
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zap.InfoLevel, nil
	case "debug":
		return zap.DebugLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// Configure replaces the global logger with one built from opts.
func Configure(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set replaces the global logger. The previous one is flushed.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	prev := globalLogger
	globalLogger = l
	mu.Unlock()
	_ = prev.Sync()
}

// L returns the global logger.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return globalLogger
}

// Close flushes the global logger and resets it to a no-op.
func Close() {
	Set(zap.NewNop())
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	L().Sugar().Infof(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	L().Sugar().Debugf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	L().Sugar().Errorf(format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	L().Sugar().Warnf(format, v...)
}
