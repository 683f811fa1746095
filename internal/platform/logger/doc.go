// Package logger provides structured logging for the application.
//
// It uses the standard library log/slog package to emit JSON logs with a
// configurable level, and carries request-scoped loggers through
// context.Context so that trace IDs follow a request into stores and services.
package logger
