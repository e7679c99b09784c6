package config

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger *zap.Logger

// InitLogger builds the process-wide logger at the given level. An
// unrecognized level string falls back to info so a bad LOG_LEVEL cannot
// keep the server from starting.
func InitLogger(logLevelStr string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(logLevelStr)))
	if err != nil {
		level = zapcore.InfoLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	// Errors already carry their cause as a field; stacktraces on every
	// warn line drown the stream output.
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	globalLogger = logger
	return logger, nil
}

// Cleanup flushes buffered log output on shutdown.
func Cleanup() {
	if globalLogger != nil {
		globalLogger.Sync()
	}
}
