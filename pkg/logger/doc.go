// Package logger provides structured logging with configurable log levels.
// It wraps the standard log/slog package: JSON records in production, text
// records elsewhere.
package logger
