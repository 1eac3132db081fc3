// Package middleware provides the cross-cutting wrappers applied to
// every request before routing.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloudgateway/internal/core"
	"cloudgateway/pkg/errors"
)

// Chain composes middlewares so the first listed runs outermost
func Chain(h core.Handler, middlewares ...core.Middleware) core.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Logging logs one line per request with its outcome and duration
func Logging(logger *slog.Logger) core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, req core.Request) (core.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			elapsed := time.Since(start)

			attrs := []any{
				"request_id", req.ID(),
				"method", req.Method(),
				"path", req.Path(),
				"remote_addr", req.RemoteAddr(),
				"duration_ms", elapsed.Milliseconds(),
			}

			if err != nil {
				var gwErr *errors.Error
				if errors.As(err, &gwErr) {
					attrs = append(attrs, "status", gwErr.HTTPStatusCode(), "error_code", gwErr.Code)
				} else {
					attrs = append(attrs, "error", err)
				}
				logger.Warn("request failed", attrs...)
				return resp, err
			}

			attrs = append(attrs, "status", resp.StatusCode())
			logger.Info("request completed", attrs...)
			return resp, nil
		}
	}
}

// Recovery converts handler panics into internal errors so one bad
// request cannot take the gateway down
func Recovery(logger *slog.Logger) core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, req core.Request) (resp core.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panicked",
						"request_id", req.ID(),
						"path", req.Path(),
						"panic", fmt.Sprintf("%v", r))
					resp = nil
					err = errors.NewError(errors.ErrorTypeInternal, errors.CodeInternalError, "internal server error")
				}
			}()
			return next(ctx, req)
		}
	}
}
