package ports

import (
	"context"
	"time"
)

// Cache defines the key/value cache used to memoize computed reports.
// Get returns ErrCacheMiss when the key is absent or expired.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error)
}

type CacheError string

func (e CacheError) Error() string { return string(e) }

const ErrCacheMiss CacheError = "cache miss"
