// Package logutil builds zap loggers from the log configuration.
package logutil

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/najoast/relaybench/config"
)

// NewLogger returns a logger honouring level, format, output and static fields.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level.String())
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Sampling = nil
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch cfg.Format {
	case "", "text":
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		zc.Encoding = "json"
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	if cfg.Output != "" {
		zc.OutputPaths = []string{cfg.Output}
		zc.ErrorOutputPaths = []string{cfg.Output}
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	for k, v := range cfg.Fields {
		logger = logger.With(zap.String(k, v))
	}
	return logger, nil
}

// FromConfig builds the logger described by cfg.Log, lowered to Debug level
// when cfg enables debugging.
func FromConfig(cfg *config.Config) (*zap.Logger, error) {
	logCfg := cfg.Log
	if cfg.IsDebugEnabled() {
		logCfg.Level = config.LogLevelDebug
	}
	return NewLogger(logCfg)
}

// Named returns l scoped to an engine, or a nop logger when l is nil.
func Named(l *zap.Logger, engine string) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.Named(engine)
}
