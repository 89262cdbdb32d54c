// Package logging configures structured logging for the prescriber API.
// It writes slog output to the console and to a rotating file in the log
// directory, and exposes package-level helpers so every other package logs
// through the same logger.
package logging

import (
	"io"
	"log/slog"
	"os"
)

type LoggingService struct {
	Logger  *slog.Logger
	rotator *RotatingWriter
}

var DefaultLoggingService *LoggingService

// InitLogger initializes the global logger. An empty logDir logs to the
// console only, which is what the tests use.
func InitLogger(logDir string) {
	DefaultLoggingService = &LoggingService{}

	var out io.Writer = os.Stdout
	if logDir != "" {
		rotator := NewRotatingWriter(logDir, 28)
		DefaultLoggingService.rotator = rotator
		out = io.MultiWriter(os.Stdout, rotator)
	}

	DefaultLoggingService.Logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: levelFromEnv(),
	}))
	slog.SetDefault(DefaultLoggingService.Logger)
}

// Shutdown flushes and closes the log file, if any.
func Shutdown() {
	if DefaultLoggingService != nil && DefaultLoggingService.rotator != nil {
		DefaultLoggingService.rotator.Close()
	}
}

func levelFromEnv() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func logger() *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		// Fallback so packages can log before InitLogger runs
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return DefaultLoggingService.Logger
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	logger().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	logger().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	logger().Error(msg, args...)
}

func Debug(msg string, args ...any) {
	logger().Debug(msg, args...)
}
