package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// LogLevel represents different log levels for service operations
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ServiceLogger provides structured logging for service layer operations
type ServiceLogger struct {
	logger *slog.Logger
	config LogConfig
}

type LogConfig struct {
	Service     string
	Component   string
	EnableDebug bool
}

func NewServiceLogger(logger *slog.Logger, config LogConfig) *ServiceLogger {
	return &ServiceLogger{
		logger: logger.With("service", config.Service, "component", config.Component),
		config: config,
	}
}

// Logger returns the underlying slog logger with the service attributes
func (l *ServiceLogger) Logger() *slog.Logger {
	return l.logger
}

// ===== OPERATION LOGGING =====

func (l *ServiceLogger) LogOperation(ctx context.Context, operation string, sessionID, applicationID string, duration time.Duration, err error) {
	logLevel := LogLevelDebug
	status := "success"

	if err != nil {
		logLevel = LogLevelError
		status = "error"

		// Adjust log level based on error type
		switch {
		case IsValidation(err):
			logLevel = LogLevelInfo
			status = "validation_error"
		case IsConflict(err):
			logLevel = LogLevelInfo
			status = "conflict"
		case IsNotFound(err):
			logLevel = LogLevelInfo
			status = "not_found"
		case IsResource(err), IsGeneration(err):
			logLevel = LogLevelWarn
			status = "unavailable"
		}
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("session_id", sessionID),
		slog.String("application_id", applicationID),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))

		var validationErrs ValidationErrors
		var persistenceErr *PersistenceError
		if errors.As(err, &validationErrs) {
			attrs = append(attrs, slog.Int("validation_errors_count", len(validationErrs)))
		} else if errors.As(err, &persistenceErr) {
			attrs = append(attrs, slog.Bool("retryable", true))
		}
	}

	// Add caller information for errors
	if logLevel == LogLevelError {
		if pc, file, line, ok := runtime.Caller(2); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				attrs = append(attrs,
					slog.String("caller_func", fn.Name()),
					slog.String("caller_file", file),
					slog.Int("caller_line", line),
				)
			}
		}
	}

	message := fmt.Sprintf("%s operation %s", operation, status)

	switch logLevel {
	case LogLevelDebug:
		if l.config.EnableDebug {
			l.logger.LogAttrs(ctx, slog.LevelDebug, message, attrs...)
		}
	case LogLevelInfo:
		l.logger.LogAttrs(ctx, slog.LevelInfo, message, attrs...)
	case LogLevelWarn:
		l.logger.LogAttrs(ctx, slog.LevelWarn, message, attrs...)
	case LogLevelError:
		l.logger.LogAttrs(ctx, slog.LevelError, message, attrs...)
	}
}

// ===== MIDDLEWARE AND HELPERS =====

// ContextualLogger times one operation and logs its outcome
type ContextualLogger struct {
	logger        *ServiceLogger
	operation     string
	sessionID     string
	applicationID string
	startTime     time.Time
	ctx           context.Context
}

func (l *ServiceLogger) WithOperation(ctx context.Context, operation, sessionID, applicationID string) *ContextualLogger {
	return &ContextualLogger{
		logger:        l,
		operation:     operation,
		sessionID:     sessionID,
		applicationID: applicationID,
		startTime:     time.Now(),
		ctx:           ctx,
	}
}

func (cl *ContextualLogger) LogResult(err error) {
	cl.logger.LogOperation(cl.ctx, cl.operation, cl.sessionID, cl.applicationID, time.Since(cl.startTime), err)
}
