package auth

import (
	"context"
	"log/slog"

	"cloudgateway/internal/core"
	"cloudgateway/pkg/errors"
	"cloudgateway/pkg/metrics"
)

// Middleware gates non-public paths behind token verification. On success
// the decoded claims ride the request context for the rest of the pipeline.
func Middleware(v *Verifier, isPublic func(path string) bool, m *metrics.Metrics, logger *slog.Logger) core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, req core.Request) (core.Response, error) {
			if isPublic(req.Path()) {
				return next(ctx, req)
			}

			authCtx, err := v.Verify(ctx, FromAuthorizationHeader(req.Headers()))
			if err != nil {
				var gwErr *errors.Error
				if errors.As(err, &gwErr) {
					if m != nil {
						m.AuthRejected.WithLabelValues(gwErr.Code).Inc()
					}
					logger.Warn("authentication rejected",
						"id", req.ID(),
						"path", req.Path(),
						"reason", gwErr.Code,
						"error", err,
					)
				}
				return nil, err
			}

			return next(core.WithAuthContext(ctx, authCtx), req)
		}
	}
}
