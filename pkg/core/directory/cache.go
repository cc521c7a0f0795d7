package directory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jakechorley/shift-selector/pkg/core/model"
)

// Cache reuses a directory snapshot for a fixed TTL.
// A TTL of zero disables caching and every Load goes to the sheet.
// Failed loads are never cached, and concurrent misses share a single fetch.
type Cache struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	snapshot  *model.Directory
	fetchedAt time.Time
}

// NewCache wraps loader with a TTL cache
func NewCache(loader Loader, ttl time.Duration) *Cache {
	return &Cache{loader: loader, ttl: ttl, now: time.Now}
}

// Load returns the cached snapshot while fresh, otherwise fetches a new one
func (c *Cache) Load(ctx context.Context) (*model.Directory, error) {
	if c.ttl <= 0 {
		return c.loader.Load(ctx)
	}

	if dir := c.fresh(); dir != nil {
		return dir, nil
	}

	v, err, _ := c.group.Do("directory", func() (interface{}, error) {
		dir, err := c.loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.snapshot = dir
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return dir, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Directory), nil
}

// Invalidate drops the cached snapshot
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
}

func (c *Cache) fresh() *model.Directory {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.snapshot
	}
	return nil
}
