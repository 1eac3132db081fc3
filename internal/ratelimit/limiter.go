// Package ratelimit enforces a fixed counting window per client identity
// against the shared key-value store. The counter key carries a TTL equal
// to the window, so windows reset by expiry rather than by a sweeper.
// When the store is unreachable the limiter fails open: availability is
// preferred over strict enforcement.
package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"cloudgateway/internal/storage"
	"cloudgateway/pkg/errors"
)

const keyPrefix = "rate_limit:"

// Limiter is a fixed-window rate limiter over a shared store
type Limiter struct {
	store  storage.Store
	limit  int
	window time.Duration
	logger *slog.Logger
}

// NewLimiter creates a limiter admitting limit requests per window
func NewLimiter(store storage.Store, limit int, window time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		logger: logger.With("component", "ratelimit"),
	}
}

// Admit checks whether a request from identity may proceed. The first
// request in a window initializes the counter with the window TTL;
// subsequent requests increment it. Store failures admit the request.
func (l *Limiter) Admit(ctx context.Context, identity string) error {
	key := keyPrefix + identity

	current, err := l.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		if err := l.store.SetWithTTL(ctx, key, "1", l.window); err != nil {
			l.failOpen(identity, err)
		}
		return nil
	}
	if err != nil {
		l.failOpen(identity, err)
		return nil
	}

	count, err := strconv.Atoi(current)
	if err != nil {
		l.failOpen(identity, err)
		return nil
	}

	if count >= l.limit {
		return errors.NewError(errors.ErrorTypeRateLimit, errors.CodeRateLimitExceeded, "rate limit exceeded").
			WithDetail("identity", identity).
			WithDetail("limit", l.limit)
	}

	if _, err := l.store.Increment(ctx, key); err != nil {
		l.failOpen(identity, err)
	}
	return nil
}

func (l *Limiter) failOpen(identity string, err error) {
	l.logger.Warn("rate limit store unavailable, admitting request",
		"identity", identity,
		"error", err,
	)
}
