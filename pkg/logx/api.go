package logx

import (
	"fmt"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(NewLogger(LoadFromEnv()))
}

func std() *Logger {
	return defaultLogger.Load()
}

// SetDefaultLogger sets the default logger
func SetDefaultLogger(logger *Logger) {
	defaultLogger.Store(logger)
}

// GetDefaultLogger returns the default logger
func GetDefaultLogger() *Logger {
	return std()
}

// SetLevel sets the log level for the default logger
func SetLevel(level Level) {
	std().SetLevel(level)
}

// Sync flushes the default logger
func Sync() error {
	return std().Sync()
}

// Debug logs a debug level message
func Debug(msg string) {
	std().log(LevelDebug, msg, nil, nil)
}

// Info logs an info level message
func Info(msg string) {
	std().log(LevelInfo, msg, nil, nil)
}

// Warn logs a warning level message
func Warn(msg string) {
	std().log(LevelWarn, msg, nil, nil)
}

// Error logs an error level message
func Error(msg string) {
	std().log(LevelError, msg, nil, nil)
}

// Fatal logs a fatal level message and exits
func Fatal(msg string) {
	std().log(LevelFatal, msg, nil, nil)
}

// Debugf logs a formatted debug message
func Debugf(format string, args ...any) {
	std().log(LevelDebug, fmt.Sprintf(format, args...), nil, nil)
}

// Infof logs a formatted info message
func Infof(format string, args ...any) {
	std().log(LevelInfo, fmt.Sprintf(format, args...), nil, nil)
}

// Warnf logs a formatted warning message
func Warnf(format string, args ...any) {
	std().log(LevelWarn, fmt.Sprintf(format, args...), nil, nil)
}

// Errorf logs a formatted error message
func Errorf(format string, args ...any) {
	std().log(LevelError, fmt.Sprintf(format, args...), nil, nil)
}

// Fatalf logs a formatted fatal message and exits
func Fatalf(format string, args ...any) {
	std().log(LevelFatal, fmt.Sprintf(format, args...), nil, nil)
}

// WithFields creates a new logger entry with fields
func WithFields(fields Fields) *Entry {
	return std().WithFields(fields)
}

// WithField creates a new logger entry with a single field
func WithField(key string, value any) *Entry {
	return std().WithField(key, value)
}

// WithError creates a new logger entry with an error field
func WithError(err error) *Entry {
	return std().WithError(err)
}
