// Package redis implements the storage.Store contract on a Redis server.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"cloudgateway/internal/storage"
)

// Config holds Redis connection settings
type Config struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// DialTimeout bounds connection establishment
	DialTimeout time.Duration `yaml:"dialTimeout"`
}

// Store implements storage.Store using go-redis
type Store struct {
	client redis.UniversalClient
}

// NewStore creates a store backed by a new Redis client
func NewStore(cfg Config) *Store {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	return &Store{client: client}
}

// NewStoreWithClient wraps an existing client, mainly for tests
func NewStoreWithClient(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Get returns the value for key, or storage.ErrNotFound
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetWithTTL stores value under key with an optional expiry
func (s *Store) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Increment atomically increments the counter at key
func (s *Store) Increment(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

// Delete removes key
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Exists reports whether key is present
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}

var _ storage.Store = (*Store)(nil)
