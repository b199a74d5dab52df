package cache

import (
	"context"
	"errors"
)

// based on github.com/kittpat1413/go-common/framework/cache/cache.go

// ErrCacheMiss is returned if an entry is neither cached nor loadable
var ErrCacheMiss = errors.New("cache miss")

// Cache is a read-through cache. Implementations must be safe for concurrent use.
type Cache[K comparable, V any] interface {
	// Get returns the cached value for key, loading it when missing or expired
	Get(ctx context.Context, key K) (*V, error)
	// Invalidate drops the entry for key. The next Get reloads it.
	Invalidate(ctx context.Context, key K)
}
