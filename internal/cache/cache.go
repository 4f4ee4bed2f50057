// Package cache memoizes generated text by request fingerprint and coalesces
// concurrent identical requests into a single in-flight fetch.
package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"healthinsight/internal/logging"
)

// FetchFunc produces the value for a fingerprint on a miss. The context it
// receives is detached from the cancellation of any single waiting caller.
type FetchFunc func(ctx context.Context) (string, error)

// Store is an optional second tier shared between processes.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Clear(ctx context.Context) error
}

type Stats struct {
	Entries   int   `json:"entries"`
	Pending   int   `json:"pending"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Coalesced int64 `json:"coalesced"`
}

type entry struct {
	value     string
	expiresAt time.Time
}

type ResponseCache struct {
	ttl    time.Duration
	now    func() time.Time
	store  Store
	logger *zap.Logger

	group singleflight.Group

	mu         sync.Mutex
	entries    map[string]entry
	pending    map[string]struct{}
	generation uint64
	hits       int64
	misses     int64
	coalesced  int64
}

type Option func(*ResponseCache)

func WithStore(store Store) Option {
	return func(c *ResponseCache) { c.store = store }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *ResponseCache) { c.logger = logging.OrNop(logger) }
}

// New creates a cache whose entries live for ttl. A zero ttl keeps entries
// until Clear is called.
func New(ttl time.Duration, opts ...Option) *ResponseCache {
	c := &ResponseCache{
		ttl:     ttl,
		now:     time.Now,
		logger:  zap.NewNop(),
		entries: make(map[string]entry),
		pending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type fetchResult struct {
	value string
}

// GetOrFetch returns the cached value for fingerprint, joins an in-flight
// fetch for it, or starts one. At most one fetch per fingerprint runs at a
// time. Failures are returned to every waiter and never cached.
func (c *ResponseCache) GetOrFetch(ctx context.Context, fingerprint string, fetch FetchFunc) (string, error) {
	c.mu.Lock()
	if value, ok := c.lookupLocked(fingerprint); ok {
		c.hits++
		c.mu.Unlock()
		c.logger.Debug("cache hit", zap.String("fingerprint", fingerprint))
		return value, nil
	}
	if _, inFlight := c.pending[fingerprint]; inFlight {
		c.coalesced++
		c.logger.Debug("joining in-flight request", zap.String("fingerprint", fingerprint))
	} else {
		c.misses++
	}
	c.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fingerprint, func() (any, error) {
		value, err := c.fill(detached, fingerprint, fetch)
		if err != nil {
			return nil, err
		}
		return fetchResult{value: value}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(fetchResult).value, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *ResponseCache) fill(ctx context.Context, fingerprint string, fetch FetchFunc) (string, error) {
	// A previous flight may have stored the value after this caller missed.
	c.mu.Lock()
	if value, ok := c.lookupLocked(fingerprint); ok {
		c.mu.Unlock()
		return value, nil
	}
	gen := c.generation
	c.pending[fingerprint] = struct{}{}
	c.mu.Unlock()

	if c.store != nil {
		value, ok, err := c.store.Get(ctx, fingerprint)
		switch {
		case err != nil:
			c.logger.Warn("shared cache read failed", zap.String("fingerprint", fingerprint), zap.Error(err))
		case ok:
			c.complete(fingerprint, gen, value, true)
			return value, nil
		}
	}

	value, err := fetch(ctx)
	c.complete(fingerprint, gen, value, err == nil)
	if err != nil {
		return "", err
	}

	if c.store != nil {
		if err := c.store.Set(ctx, fingerprint, value, c.ttl); err != nil {
			c.logger.Warn("shared cache write failed", zap.String("fingerprint", fingerprint), zap.Error(err))
		}
	}
	return value, nil
}

// complete moves a fingerprint out of the pending set and, on success, into
// the entry map in one step. Results of fetches started before a Clear are
// handed to their waiters but not stored.
func (c *ResponseCache) complete(fingerprint string, gen uint64, value string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	delete(c.pending, fingerprint)
	if !ok {
		return
	}
	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}
	c.entries[fingerprint] = entry{value: value, expiresAt: expiresAt}
}

func (c *ResponseCache) lookupLocked(fingerprint string) (string, bool) {
	ent, ok := c.entries[fingerprint]
	if !ok {
		return "", false
	}
	if c.expired(ent) {
		delete(c.entries, fingerprint)
		return "", false
	}
	return ent.value, true
}

func (c *ResponseCache) expired(ent entry) bool {
	return !ent.expiresAt.IsZero() && !c.now().Before(ent.expiresAt)
}

// Clear empties the entry map and the pending set, and the shared tier when
// one is configured.
func (c *ResponseCache) Clear(ctx context.Context) {
	c.mu.Lock()
	for fingerprint := range c.pending {
		c.group.Forget(fingerprint)
	}
	c.entries = make(map[string]entry)
	c.pending = make(map[string]struct{})
	c.generation++
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Clear(ctx); err != nil {
			c.logger.Warn("shared cache clear failed", zap.Error(err))
		}
	}
}

func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	for fingerprint, ent := range c.entries {
		if c.expired(ent) {
			delete(c.entries, fingerprint)
		}
	}
	return Stats{
		Entries:   len(c.entries),
		Pending:   len(c.pending),
		Hits:      c.hits,
		Misses:    c.misses,
		Coalesced: c.coalesced,
	}
}
