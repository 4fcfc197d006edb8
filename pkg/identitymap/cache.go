// Package identitymap keeps one in-memory instance per entity id for the
// length of a unit of work, such as one inbound request.
//
// A Cache is not safe for concurrent use. Every goroutine that handles its
// own unit of work creates its own Cache and attaches it to its context:
//
//	ctx = identitymap.NewContext(ctx, identitymap.New())
//	defer identitymap.FromContext(ctx).Clear()
package identitymap

import (
	"context"

	"github.com/st9db/st9.go/pkg/models"
)

type Cache struct {
	entries map[string]*models.Entity
}

func New() *Cache {
	return &Cache{entries: make(map[string]*models.Entity)}
}

func (c *Cache) Get(id string) (*models.Entity, bool) {
	e, ok := c.entries[id]
	return e, ok
}

// Set caches e under id. A nil e is ignored.
func (c *Cache) Set(id string, e *models.Entity) {
	if e == nil || id == "" {
		return
	}
	c.entries[id] = e
}

// Fetch returns the cached entity for id, or calls loader once and caches a
// non-nil result.
func (c *Cache) Fetch(id string, loader func() (*models.Entity, error)) (*models.Entity, error) {
	if e, ok := c.entries[id]; ok {
		return e, nil
	}
	e, err := loader()
	if err != nil {
		return nil, err
	}
	c.Set(id, e)
	return e, nil
}

func (c *Cache) Remove(id string) {
	delete(c.entries, id)
}

func (c *Cache) Clear() {
	clear(c.entries)
}

func (c *Cache) Len() int {
	return len(c.entries)
}

type cacheKey struct{}

// NewContext attaches c to ctx.
func NewContext(ctx context.Context, c *Cache) context.Context {
	return context.WithValue(ctx, cacheKey{}, c)
}

// FromContext returns the cache attached to ctx, or nil.
func FromContext(ctx context.Context) *Cache {
	c, _ := ctx.Value(cacheKey{}).(*Cache)
	return c
}
