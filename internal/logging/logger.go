package logging

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "WLEDUI_LOG_LEVEL"

// Initialize creates a new logger with the specified level.
// If level is empty, it checks WLEDUI_LOG_LEVEL.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	zapLevel, err := ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogProbe records the outcome of a single discovery probe. Misses are only
// visible at debug level since a sweep produces hundreds of them.
func LogProbe(ip string, found bool, name string, elapsed time.Duration) {
	if !found {
		Debug("Probe miss",
			zap.String("ip", ip),
			zap.Duration("elapsed", elapsed),
		)
		return
	}
	Info("Board found",
		zap.String("ip", ip),
		zap.String("name", name),
		zap.Duration("elapsed", elapsed),
	)
}

// LogSweep logs the summary of a subnet sweep
func LogSweep(base string, checked, found int, elapsed time.Duration, err error) {
	fields := []zap.Field{
		zap.String("range", base),
		zap.Int("checked", checked),
		zap.Int("found", found),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		Warn("Sweep ended early", append(fields, zap.Error(err))...)
		return
	}
	Info("Sweep complete", fields...)
}

// LogCommand logs a control command sent to a board
func LogCommand(boardID, ip, command string, value any, err error) {
	fields := []zap.Field{
		zap.String("board_id", boardID),
		zap.String("ip", ip),
		zap.String("command", command),
		zap.Any("value", value),
	}
	if err != nil {
		Warn("Command failed, rolled back", append(fields, zap.Error(err))...)
		return
	}
	Debug("Command applied", fields...)
}

// LogHTTPRequest logs an HTTP request served by the dashboard
func LogHTTPRequest(remoteAddr, method, path string, status int, elapsed time.Duration) {
	Info("HTTP request",
		zap.String("remote_addr", remoteAddr),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed),
	)
}

// LogConnection logs a websocket connection event
func LogConnection(remoteAddr string, event string) {
	Info("Connection event",
		zap.String("remote_addr", remoteAddr),
		zap.String("event", event),
	)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
