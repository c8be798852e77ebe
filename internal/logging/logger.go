package logging

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger atomic.Pointer[zap.Logger]

func init() {
	logger.Store(zap.NewNop())
}

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "WIFIPROV_LOG_LEVEL"

// Initialize creates a console logger with the specified level.
// If level is empty, it checks WIFIPROV_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	return InitializeFormat(level, "console")
}

// InitializeFormat is Initialize with a choice of "console" or "json" encoding.
func InitializeFormat(level, format string) error {
	// If no level provided, check environment variable
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	// If still no level, use silent mode (nop logger)
	if level == "" {
		logger.Store(zap.NewNop())
		return nil
	}

	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		// Unknown level - use info as default when explicitly set to something
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	if format == "json" {
		config.Encoding = "json"
		config.EncoderConfig = zap.NewProductionEncoderConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		// Customize encoder for better readability
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	}

	l, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Store(l)

	return nil
}

// InitializeFromEnv initializes the logger from the WIFIPROV_LOG_LEVEL
// environment variable. CLI commands use this so they stay silent by default.
func InitializeFromEnv() error {
	return Initialize("")
}

// SetLogger replaces the global logger. Tests use it with zaptest or observer cores.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

// GetLogger returns the global logger instance. It is silent until
// Initialize or SetLogger runs.
func GetLogger() *zap.Logger {
	return logger.Load()
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

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// LogConnection logs a channel client connection event
func LogConnection(remoteAddr, clientID, event string) {
	Info("Connection event",
		zap.String("remote_addr", remoteAddr),
		zap.String("client_id", clientID),
		zap.String("event", event),
	)
}

// LogChannelEvent logs a named event crossing the channel. Payloads are not
// logged because connect requests carry credentials.
func LogChannelEvent(clientID, direction, event string, size int) {
	Debug("Channel event",
		zap.String("client_id", clientID),
		zap.String("direction", direction),
		zap.String("event", event),
		zap.Int("length", size),
	)
}

// LogTransition logs a session phase change
func LogTransition(from, to string, requestID uint64) {
	Debug("Session phase changed",
		zap.String("from", from),
		zap.String("to", to),
		zap.Uint64("request_id", requestID),
	)
}

// LogLinkChange logs a change of the wireless link mode
func LogLinkChange(from, to, ssid, ip string) {
	Info("Link mode changed",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("ssid", ssid),
		zap.String("ip", ip),
	)
}

// Sync flushes any buffered log entries
func Sync() {
	_ = GetLogger().Sync()
}
