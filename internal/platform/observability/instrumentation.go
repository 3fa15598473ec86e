package observability

import (
	"context"
	"log/slog"
	"time"
)

type requestIDKey struct{}

// WithRequestID stores the request correlation ID on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the correlation ID stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// StartSpan logs the duration and outcome of an operation at debug level,
// or at error level when it fails. It is a no-op before Setup.
func StartSpan(ctx context.Context, component, operation string) func(error) {
	logger, _ := currentLogger()
	if logger == nil {
		return func(error) {}
	}

	start := time.Now()
	return func(err error) {
		attrs := []slog.Attr{
			slog.String("component", component),
			slog.String("operation", operation),
			slog.Duration("duration", time.Since(start)),
		}
		if id := RequestID(ctx); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}

		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelError
			attrs = append(attrs, slog.Any("error", err))
		}
		logger.LogAttrs(ctx, level, "span", attrs...)
	}
}
