package ratelimit

import (
	"context"
	"log/slog"
	"net"

	"cloudgateway/internal/core"
	"cloudgateway/pkg/metrics"
)

// KeyFunc extracts the rate limit identity from a request
type KeyFunc func(core.Request) string

// BySourceAddress keys the limiter on the client's source address,
// ignoring the ephemeral port.
func BySourceAddress(req core.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr())
	if err != nil {
		return req.RemoteAddr()
	}
	return host
}

// Middleware rejects requests over the limit with a rate_limit error.
// Limiter-internal failures have already been absorbed by Admit.
func Middleware(l *Limiter, keyFunc KeyFunc, m *metrics.Metrics, logger *slog.Logger) core.Middleware {
	if keyFunc == nil {
		keyFunc = BySourceAddress
	}

	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, req core.Request) (core.Response, error) {
			identity := keyFunc(req)

			if err := l.Admit(ctx, identity); err != nil {
				if m != nil {
					m.RateLimitRejected.Inc()
				}
				logger.Warn("rate limit exceeded",
					"id", req.ID(),
					"identity", identity,
					"path", req.Path(),
				)
				return nil, err
			}

			return next(ctx, req)
		}
	}
}
