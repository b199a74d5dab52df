// Package loadercache is an in-memory read-through cache. Concurrent misses
// for the same key share a single loader call.
package loadercache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/utils/cache"
)

type (
	Option[K comparable, V any]     func(*loaderCache[K, V])
	LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (*V, error)

	entry[V any] struct {
		data    *V
		expires time.Time // zero: never
	}
	loaderCache[K comparable, V any] struct {
		expiration time.Duration
		loader     LoaderFunc[K, V]
		now        func() time.Time
		l          *log.Logger

		mu      sync.Mutex
		entries map[K]entry[V]
		// bumped by Invalidate, loads started before are not stored
		generation map[K]uint64
		group      singleflight.Group
	}
)

// WithExpiration sets the lifetime of loaded entries. 0 disables expiration.
func WithExpiration[K comparable, V any](expiration time.Duration) Option[K, V] {
	return func(c *loaderCache[K, V]) {
		c.expiration = expiration
	}
}

func WithLoader[K comparable, V any](lf LoaderFunc[K, V]) Option[K, V] {
	return func(c *loaderCache[K, V]) {
		c.loader = lf
	}
}

func WithLogger[K comparable, V any](l *log.Logger) Option[K, V] {
	return func(c *loaderCache[K, V]) {
		c.l = l
	}
}

func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *loaderCache[K, V]) {
		c.now = now
	}
}

func New[K comparable, V any](opts ...Option[K, V]) cache.Cache[K, V] {
	c := &loaderCache[K, V]{
		expiration: 5 * time.Minute,
		now:        time.Now,
		l:          log.Default().Named("cache"),
		entries:    make(map[K]entry[V]),
		generation: make(map[K]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *loaderCache[K, V]) lookup(key K) (v *V, gen uint64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.entries[key]
	if found && (e.expires.IsZero() || c.now().Before(e.expires)) {
		return e.data, 0, true
	}
	delete(c.entries, key)
	return nil, c.generation[key], false
}

func (c *loaderCache[K, V]) Get(ctx context.Context, key K) (*V, error) {
	if v, _, ok := c.lookup(key); ok {
		return v, nil
	}
	if c.loader == nil {
		return nil, cache.ErrCacheMiss
	}
	res, err, shared := c.group.Do(fmt.Sprint(key), func() (any, error) {
		return c.load(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.l.Debug("shared load", log.Any("key", key))
	}
	//nolint:forcetypeassert // load only returns *V
	return res.(*V), nil
}

func (c *loaderCache[K, V]) load(ctx context.Context, key K) (*V, error) {
	// another caller may have stored the entry while we waited for the group
	v, gen, ok := c.lookup(key)
	if ok {
		return v, nil
	}
	c.l.Debug("loading entry", log.Any("key", key))
	v, err := c.loader(ctx, key)
	if err != nil {
		c.l.Error("error loading entry", log.Any("key", key), log.ErrorField(err))
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation[key] != gen {
		c.l.Debug("entry invalidated during load", log.Any("key", key))
		return v, nil
	}
	e := entry[V]{data: v}
	if c.expiration > 0 {
		e.expires = c.now().Add(c.expiration)
	}
	c.entries[key] = e
	return v, nil
}

func (c *loaderCache[K, V]) Invalidate(ctx context.Context, key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.generation[key]++
	c.l.Debug("invalidated", log.Any("key", key), log.Int("remaining", len(c.entries)))
}
