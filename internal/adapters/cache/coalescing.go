package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Amund211/viewcache/internal/domain"
	"github.com/Amund211/viewcache/internal/logging"
)

// Loader performs the underlying read of a view
type Loader interface {
	Load(ctx context.Context, key string) (string, error)
}

type LoaderFunc func(ctx context.Context, key string) (string, error)

func (f LoaderFunc) Load(ctx context.Context, key string) (string, error) {
	return f(ctx, key)
}

// A load shared by every caller acquiring the same key while it is running.
// content and err are written once, before done is closed.
type flight struct {
	done    chan struct{}
	content string
	err     error
	waiters int
}

func (f *flight) wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.content, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CoalescingCache makes sure at most one load per key is outstanding at any time, and optionally
// keeps the loaded content around forever.
//
// A nil store disables caching: concurrent requests are still coalesced, but every request that
// arrives after a load has settled starts a new one.
type CoalescingCache struct {
	loader Loader
	store  Store

	// Guards inflight, and the decision of which path serves a request
	lock     sync.Mutex
	inflight map[string]*flight
}

func NewCoalescingCache(loader Loader, store Store) *CoalescingCache {
	return &CoalescingCache{
		loader:   loader,
		store:    store,
		inflight: make(map[string]*flight),
	}
}

func (c *CoalescingCache) CacheEnabled() bool {
	return c.store != nil
}

// Acquire returns the content for the given key, and which path served the request.
//
// If ctx is cancelled while waiting, ctx.Err() is returned. The load itself keeps running for the
// other callers.
func (c *CoalescingCache) Acquire(ctx context.Context, key string) (string, domain.Source, error) {
	logger := logging.FromContext(ctx)

	c.lock.Lock()

	if c.store != nil {
		if content, ok := c.store.get(key); ok {
			c.lock.Unlock()
			logger.DebugContext(ctx, "Acquired view", "key", key, "cache", "hit")
			recordAcquire(ctx, domain.SourceCache)
			return content, domain.SourceCache, nil
		}
	}

	if f, ok := c.inflight[key]; ok {
		f.waiters++
		c.lock.Unlock()
		logger.DebugContext(ctx, "Waiting for in-flight load", "key", key, "cache", "inflight")
		recordAcquire(ctx, domain.SourceInflight)
		content, err := f.wait(ctx)
		return content, domain.SourceInflight, err
	}

	f := &flight{done: make(chan struct{}), waiters: 1}
	c.inflight[key] = f
	c.lock.Unlock()

	logger.DebugContext(ctx, "Loading view", "key", key, "cache", "miss")
	recordAcquire(ctx, domain.SourceFilesystem)

	// Ignore cancellations from the caller - the load is shared with anyone attaching to it
	go c.load(context.WithoutCancel(ctx), key, f)

	content, err := f.wait(ctx)
	return content, domain.SourceFilesystem, err
}

// Waiters returns the number of callers attached to the in-flight load for key, including the
// one that started it. Returns 0 if no load is in flight.
func (c *CoalescingCache) Waiters(key string) int {
	c.lock.Lock()
	defer c.lock.Unlock()

	f, ok := c.inflight[key]
	if !ok {
		return 0
	}
	return f.waiters
}

func (c *CoalescingCache) load(ctx context.Context, key string, f *flight) {
	start := time.Now()
	content, err := c.callLoader(ctx, key)
	recordLoad(ctx, start, err)

	if err != nil {
		logging.FromContext(ctx).InfoContext(ctx, "Failed to load view", "key", key, "error", err.Error())
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if err == nil && c.store != nil {
		c.store.set(key, content)
	}
	delete(c.inflight, key)

	f.content = content
	f.err = err
	close(f.done)
}

func (c *CoalescingCache) callLoader(ctx context.Context, key string) (content string, err error) {
	// A panicking loader must still settle the flight, or every waiter would hang
	defer func() {
		if r := recover(); r != nil {
			content = ""
			err = fmt.Errorf("%w: loader panicked: %v", domain.ErrLoadFailed, r)
		}
	}()

	return c.loader.Load(ctx, key)
}
