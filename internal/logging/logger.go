// Package logging initializes the process-wide structured logger.
//
// Decrypted credential plaintext must never pass through here; call sites
// log envelope prefixes or counts, not secret material.
package logging

import (
	"log/slog"
	"os"
)

// Logger is the application-wide structured logger instance.
var Logger *slog.Logger

// Init configures the global logger.
// level: "debug", "info", "warn", "error" (defaults to "info")
// format: "json" or "text" (defaults to "text")
func Init(level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// WithAccount returns a logger with the account_id field.
func WithAccount(accountID string) *slog.Logger {
	return slog.Default().With("account_id", accountID)
}

// WithProvider returns a logger with account_id and provider fields.
func WithProvider(accountID, provider string) *slog.Logger {
	return slog.Default().With("account_id", accountID, "provider", provider)
}
