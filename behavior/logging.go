package behavior

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/mediate/pipeline"
)

// Logger is the interface for structured logging.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logging returns a behavior that logs pipeline entry and completion.
// Entry is logged before the rest of the chain runs. Successful requests
// are logged at info level, failures at error level. The outcome of the
// chain is returned unchanged.
func Logging[Req, Resp any](logger Logger) pipeline.Behavior[Req, Resp] {
	return pipeline.BehaviorFunc[Req, Resp](func(ctx context.Context, req Req, next pipeline.Next[Resp]) (Resp, error) {
		fields := []Field{F("request", RequestName(req))}

		// Add request ID if present
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			fields = append(fields, F("request_id", requestID))
		}

		logger.Info("request started", fields...)
		start := time.Now()

		resp, err := next(ctx)

		fields = append(fields, F("duration", time.Since(start)))
		if err != nil {
			fields = append(fields, F("error", err.Error()))
			logger.Error("request failed", fields...)
		} else {
			logger.Info("request completed", fields...)
		}

		return resp, err
	})
}

// NopLogger is a logger that discards all log entries.
type NopLogger struct{}

func (NopLogger) Info(msg string, fields ...Field)  {}
func (NopLogger) Error(msg string, fields ...Field) {}
func (NopLogger) Debug(msg string, fields ...Field) {}
func (NopLogger) Warn(msg string, fields ...Field)  {}

// SlogLogger adapts a *slog.Logger to Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps l. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{logger: l}
}

func (l *SlogLogger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *SlogLogger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }
func (l *SlogLogger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *SlogLogger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }

func (l *SlogLogger) log(level slog.Level, msg string, fields []Field) {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
