package axnext

import (
	"context"
	"sync"
	"time"
)

// CacheEntry is a cached response and the time it was stored.
type CacheEntry struct {
	Identity   Identity      `msgpack:"i"`
	Value      *Response     `msgpack:"v"`
	InsertedAt time.Time     `msgpack:"t"`
	TTL        time.Duration `msgpack:"l"`
}

// Visible reports whether the entry may still be served at now.
func (e *CacheEntry) Visible(now time.Time) bool {
	return e != nil && now.Before(e.InsertedAt.Add(e.TTL))
}

// CacheStore is the storage behind a ResponseCache. Stores may keep expired
// entries; the cache checks visibility on every read.
type CacheStore interface {
	Get(ctx context.Context, key string) (*CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Sweeper is implemented by stores that need periodic removal of expired
// entries.
type Sweeper interface {
	Sweep(now time.Time) int
}

// ResponseCache is the time-bounded read cache owned by a Client.
type ResponseCache struct {
	store         CacheStore
	enabled       bool
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewResponseCache creates a cache over store and starts the sweeper when
// the store needs one.
func NewResponseCache(cfg Config, store CacheStore, now func() time.Time, logger Logger) *ResponseCache {
	if store == nil {
		store = NewMemoryCacheStore()
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = nopLogger()
	}
	c := &ResponseCache{
		store:         store,
		enabled:       cfg.CacheEnabled,
		ttl:           cfg.CacheTTL,
		sweepInterval: cfg.CacheSweepInterval,
		now:           now,
		logger:        logger,
	}

	if sweeper, ok := store.(Sweeper); ok && c.enabled && c.sweepInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.wg.Add(1)
		go c.run(ctx, sweeper)
	}
	return c
}

// Enabled reports whether the cache serves and stores entries.
func (c *ResponseCache) Enabled() bool {
	return c != nil && c.enabled
}

// Get returns a copy of the cached response for id if a visible entry exists.
func (c *ResponseCache) Get(ctx context.Context, id Identity) (*Response, bool) {
	if !c.Enabled() {
		return nil, false
	}
	entry, found, err := c.store.Get(ctx, id.Key())
	if err != nil {
		c.logger.Warn("cache lookup failed", "identity", id.String(), "error", err)
		return nil, false
	}
	if !found || entry.Identity != id || !entry.Visible(c.now()) {
		return nil, false
	}
	return entry.Value.Clone(), true
}

// Set stores a copy of resp under id.
func (c *ResponseCache) Set(ctx context.Context, id Identity, resp *Response) {
	if !c.Enabled() || resp == nil {
		return
	}
	entry := &CacheEntry{
		Identity:   id,
		Value:      resp.Clone(),
		InsertedAt: c.now(),
		TTL:        c.ttl,
	}
	if err := c.store.Set(ctx, id.Key(), entry); err != nil {
		c.logger.Warn("cache store failed", "identity", id.String(), "error", err)
	}
}

// Invalidate removes the entry for id.
func (c *ResponseCache) Invalidate(ctx context.Context, id Identity) {
	if c == nil {
		return
	}
	if err := c.store.Delete(ctx, id.Key()); err != nil {
		c.logger.Warn("cache invalidate failed", "identity", id.String(), "error", err)
	}
}

// Clear removes every entry.
func (c *ResponseCache) Clear(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.store.Clear(ctx)
}

// Sweep removes expired entries now and returns how many were dropped.
func (c *ResponseCache) Sweep() int {
	if c == nil {
		return 0
	}
	if sweeper, ok := c.store.(Sweeper); ok {
		return sweeper.Sweep(c.now())
	}
	return 0
}

// Close stops the sweeper.
func (c *ResponseCache) Close() {
	if c == nil {
		return
	}
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
	})
}

func (c *ResponseCache) run(ctx context.Context, sweeper Sweeper) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sweeper.Sweep(c.now()); n > 0 {
				c.logger.Debug("cache sweep", "removed", n)
			}
		}
	}
}
