// Package cache is a read-through cache for reconciled entities, keyed by
// entity kind and id. Mutations invalidate explicit key lists; a TTL bounds
// how long a value written by another process can stay hidden.
package cache

import (
	"context"
	"sync"
	"time"
)

// Kind names an entity family.
type Kind string

const (
	KindAccount     Kind = "account"
	KindCreditCard  Kind = "credit_card"
	KindBill        Kind = "bill"
	KindTransaction Kind = "transaction"
)

// Key addresses one cached entity. An empty ID addresses every entry of Kind.
type Key struct {
	Kind Kind
	ID   string
}

// All returns a key matching every entry of kind.
func All(kind Kind) Key { return Key{Kind: kind} }

// Loader fetches the value for a key on a miss.
type Loader func(ctx context.Context) (any, error)

// Cache is safe for concurrent use. Values are stored as given; callers store
// copies if they intend to mutate what they read.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]entry
	ttl     time.Duration
	now     func() time.Time
}

type entry struct {
	value   any
	expires time.Time // zero: never
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL expires entries ttl after they are stored. Zero keeps them until
// invalidated, which is only correct when this process is the store's sole writer.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock overrides the clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{entries: make(map[Key]entry), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

func (c *Cache) live(e entry) bool {
	return e.expires.IsZero() || c.now().Before(e.expires)
}

// Get returns the cached value for key, calling load on a miss. Load errors
// are returned and nothing is cached.
func (c *Cache) Get(ctx context.Context, key Key, load Loader) (any, error) {
	if v, ok := c.Lookup(key); ok {
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.Put(key, v)
	return v, nil
}

// Lookup returns the cached value for key without loading. Expired entries
// are reported as missing.
func (c *Cache) Lookup(key Key) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.live(e) {
		return nil, false
	}
	return e.value, true
}

// Put stores v under key.
func (c *Cache) Put(key Key, v any) {
	e := entry{value: v}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
}

// Invalidate drops every listed key. A key with an empty ID drops the whole kind.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		if k.ID != "" {
			delete(c.entries, k)
			continue
		}
		for existing := range c.entries {
			if existing.Kind == k.Kind {
				delete(c.entries, existing)
			}
		}
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.entries {
		if c.live(e) {
			n++
		}
	}
	return n
}


// GetTyped wraps Cache.Get for a concrete value type.
func GetTyped[T any](ctx context.Context, c *Cache, key Key, load func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.Get(ctx, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
