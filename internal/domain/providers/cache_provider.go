package providers

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// CacheProvider defines the interface for caching operations
type CacheProvider interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)

	// GetMulti retrieves the keys that are present; missing keys are omitted
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)

	// Set stores a value in cache with expiration
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix and reports how many went
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}
