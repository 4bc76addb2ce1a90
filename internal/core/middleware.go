package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"bandkeeper/pkg/domain"
)

// Chain wraps h with mws so that mws[0] runs first.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RecoveryMiddleware converts handler panics into Internal errors.
func RecoveryMiddleware(logger Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req domain.Request) (out Outcome, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("command panicked", "command", req.Command, "panic", r, "stack", string(debug.Stack()))
					out = Outcome{}
					err = domain.Errorf(domain.KindInternal, "internal error: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

// LoggingMiddleware logs every command with its user, duration and outcome.
func LoggingMiddleware(logger Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req domain.Request) (Outcome, error) {
			start := time.Now()
			out, err := next(ctx, req)
			args := []any{
				"command", req.Command,
				"user", req.User.Login,
				"duration", time.Since(start),
			}
			if err != nil {
				kind := domain.KindOf(err)
				args = append(args, "error_kind", string(kind), "error", err)
				if kind == domain.KindInternal {
					logger.Error("command failed", args...)
				} else {
					logger.Info("command rejected", args...)
				}
				return out, err
			}
			logger.Info("command executed", append(args, "changes", len(out.Changes))...)
			return out, nil
		}
	}
}

// MetricsMiddleware reports each command outcome to rec.
func MetricsMiddleware(rec MetricsRecorder) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req domain.Request) (Outcome, error) {
			start := time.Now()
			out, err := next(ctx, req)
			rec.Observe(ctx, metricName(req.Command), err == nil, time.Since(start))
			return out, err
		}
	}
}

// TracingMiddleware opens a span per command.
func TracingMiddleware(tracer Tracer) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req domain.Request) (Outcome, error) {
			ctx, span := tracer.Start(ctx, fmt.Sprintf("command.%s", metricName(req.Command)))
			out, err := next(ctx, req)
			span.End(err)
			return out, err
		}
	}
}

// metricName keeps arbitrary client input out of metric label values.
func metricName(command string) string {
	name := normalizeCommand(command)
	if name == "" || len(name) > 64 {
		return "unknown"
	}
	return name
}
