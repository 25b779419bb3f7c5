package snapshot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DashboardBuilder builds a fresh Dashboard for instant now.
type DashboardBuilder interface {
	Build(ctx context.Context, now time.Time) (*Dashboard, error)
}

// Cache memoizes the latest Dashboard for a fixed TTL. Concurrent callers
// that miss share a single build. Invalidate drops the cached value and
// discards any build already in flight.
type Cache struct {
	builder DashboardBuilder
	ttl     time.Duration
	now     func() time.Time

	group singleflight.Group

	mu         sync.RWMutex
	current    *Dashboard
	expiresAt  time.Time
	generation uint64
}

// NewCache wraps builder with a TTL cache. A non-positive ttl disables
// expiry; the snapshot then lives until invalidated.
func NewCache(builder DashboardBuilder, ttl time.Duration) *Cache {
	return &Cache{builder: builder, ttl: ttl, now: time.Now}
}

// WithClock overrides the cache clock.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get returns the cached Dashboard, building one when the cache is empty or
// expired. Cancelling ctx abandons the wait but not the shared build.
func (c *Cache) Get(ctx context.Context) (*Dashboard, error) {
	c.mu.RLock()
	dash, expiresAt, gen := c.current, c.expiresAt, c.generation
	c.mu.RUnlock()

	if c.fresh(dash, expiresAt) {
		return dash, nil
	}

	key := fmt.Sprintf("dashboard-%d", gen)
	ch := c.group.DoChan(key, func() (any, error) {
		// A build for this generation may have landed since the check above.
		c.mu.RLock()
		dash, expiresAt, current := c.current, c.expiresAt, c.generation == gen
		c.mu.RUnlock()
		if current && c.fresh(dash, expiresAt) {
			return dash, nil
		}
		return c.build(context.WithoutCancel(ctx), gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Dashboard), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) fresh(dash *Dashboard, expiresAt time.Time) bool {
	return dash != nil && (c.ttl <= 0 || c.now().Before(expiresAt))
}

func (c *Cache) build(ctx context.Context, gen uint64) (*Dashboard, error) {
	started := c.now()
	dash, err := c.builder.Build(ctx, started)
	if err != nil {
		log.Printf("[snapshot] Build failed after %s: %v", c.now().Sub(started).Round(time.Millisecond), err)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen {
		c.current = dash
		c.expiresAt = started.Add(c.ttl)
	}
	return dash, nil
}

// Invalidate discards the cached Dashboard.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.generation++
}

// Refresh invalidates the cache and builds a new Dashboard. Callers wait
// for the build; use Rebuild to keep serving the current Dashboard.
func (c *Cache) Refresh(ctx context.Context) (*Dashboard, error) {
	c.Invalidate()
	return c.Get(ctx)
}

// Rebuild builds a new Dashboard while the current one keeps serving, then
// swaps it in. A failed build leaves the current Dashboard in place. A
// build that races with Invalidate is discarded.
func (c *Cache) Rebuild(ctx context.Context) (*Dashboard, error) {
	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	started := c.now()
	dash, err := c.builder.Build(ctx, started)
	if err != nil {
		log.Printf("[snapshot] Rebuild failed after %s, keeping current snapshot: %v", c.now().Sub(started).Round(time.Millisecond), err)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen {
		c.current = dash
		c.expiresAt = started.Add(c.ttl)
		c.generation++
	}
	return dash, nil
}

// Peek returns the cached Dashboard without building, or nil.
func (c *Cache) Peek() *Dashboard {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}
