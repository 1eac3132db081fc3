// Package storage defines the contract for the shared key-value store used
// for rate-limit counters, the token revocation set, and the external
// service directory. The store itself is an external dependency; callers
// must treat every operation as fallible and degrade accordingly.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist
var ErrNotFound = errors.New("storage: key not found")

// Store is a minimal key-value interface with expiry support
type Store interface {
	// Get returns the value for key, or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// SetWithTTL stores value under key; ttl <= 0 means no expiry
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Increment atomically increments the integer value at key and
	// returns the new value; missing keys start from zero
	Increment(ctx context.Context, key string) (int64, error)

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases resources held by the store
	Close() error
}
