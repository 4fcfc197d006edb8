// Package cursor wraps index scans in a lazy, pageable sequence.
//
// A Cursor starts as an ordered list of ids plus the prev/next tokens of the
// page that produced it. Entities are fetched only when asked for: At issues
// a single get, Slice and All a batched multi-get. All caches its result, so
// enumerating twice costs one round of requests.
package cursor

import (
	"context"

	"github.com/st9db/st9.go/pkg/models"
	"github.com/st9db/st9.go/pkg/store"
)

// Source is the part of store.Store a Cursor reads through.
type Source interface {
	Get(ctx context.Context, id string, opts store.GetOptions) (*models.Entity, error)
	MultiGet(ctx context.Context, ids []string, opts store.GetOptions) ([]*models.Entity, error)
	Scan(ctx context.Context, path, token string) (*store.Page, error)
}

type Cursor struct {
	src  Source
	path string
	prev string
	next string

	ids      []string
	elements []*models.Entity
	loaded   bool

	collapse        bool
	deferHooks      bool
	withQuarantined bool
}

// New returns a cursor over ids that are not fetched yet.
func New(src Source, ids []string) *Cursor {
	return &Cursor{src: src, ids: ids, collapse: true}
}

// FromPage returns the cursor of one scan page. path is the scan path
// without a token; NextSet and PrevSet resume it.
func FromPage(src Source, path string, page *store.Page) *Cursor {
	c := New(src, page.IDs)
	c.path = path
	c.prev = page.Prev
	c.next = page.Next
	return c
}

// FromEntities returns an already materialized cursor. Nil entries are
// dropped.
func FromEntities(src Source, es []*models.Entity) *Cursor {
	c := New(src, nil)
	for _, e := range es {
		if e == nil {
			continue
		}
		c.ids = append(c.ids, e.ID())
		c.elements = append(c.elements, e)
	}
	c.loaded = true
	return c
}

// Empty returns a cursor with nothing in it.
func Empty(src Source) *Cursor {
	return FromEntities(src, nil)
}

// derive copies the flags of c onto a cursor over ids.
func (c *Cursor) derive(ids []string) *Cursor {
	out := New(c.src, ids)
	out.collapse = c.collapse
	out.deferHooks = c.deferHooks
	out.withQuarantined = c.withQuarantined
	return out
}

// SetCollapse controls whether ids that resolve to nothing are dropped
// (the default) or kept as nils.
func (c *Cursor) SetCollapse(on bool) *Cursor {
	c.collapse = on
	return c
}

// SetDeferHooks skips after-find and after-initialize hooks on fetch.
func (c *Cursor) SetDeferHooks(on bool) *Cursor {
	c.deferHooks = on
	return c
}

// SetWithQuarantined includes quarantined entities on fetch.
func (c *Cursor) SetWithQuarantined(on bool) *Cursor {
	c.withQuarantined = on
	return c
}

func (c *Cursor) WithQuarantined() bool {
	return c.withQuarantined
}

func (c *Cursor) Path() string {
	return c.path
}

func (c *Cursor) PrevToken() string {
	return c.prev
}

func (c *Cursor) NextToken() string {
	return c.next
}

// IDs returns the ordered id sequence.
func (c *Cursor) IDs() []string {
	return append([]string(nil), c.ids...)
}

func (c *Cursor) Len() int {
	if c.loaded {
		return len(c.elements)
	}
	return len(c.ids)
}

func (c *Cursor) Empty() bool {
	return c.Len() == 0
}

func (c *Cursor) opts() store.GetOptions {
	return store.GetOptions{
		WithQuarantined: c.withQuarantined,
		Collapse:        c.collapse,
		DeferHooks:      c.deferHooks,
	}
}

// All fetches every entity in one batched multi-get and caches the result.
func (c *Cursor) All(ctx context.Context) ([]*models.Entity, error) {
	if c.loaded {
		return c.elements, nil
	}
	if len(c.ids) == 0 {
		c.loaded = true
		return nil, nil
	}
	es, err := c.src.MultiGet(ctx, c.ids, c.opts())
	if err != nil {
		return nil, err
	}
	c.elements = es
	c.loaded = true
	return es, nil
}

// Each calls fn for every entity in order, stopping at the first error.
func (c *Cursor) Each(ctx context.Context, fn func(*models.Entity) error) error {
	es, err := c.All(ctx)
	if err != nil {
		return err
	}
	for _, e := range es {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// At returns the i-th entity, or nil when out of range. A negative i counts
// from the end. Before All has run this is a single get.
func (c *Cursor) At(ctx context.Context, i int) (*models.Entity, error) {
	if c.loaded {
		if i < 0 {
			i += len(c.elements)
		}
		if i < 0 || i >= len(c.elements) {
			return nil, nil
		}
		return c.elements[i], nil
	}
	if i < 0 {
		i += len(c.ids)
	}
	if i < 0 || i >= len(c.ids) {
		return nil, nil
	}
	return c.src.Get(ctx, c.ids[i], c.opts())
}

// First is At(0).
func (c *Cursor) First(ctx context.Context) (*models.Entity, error) {
	return c.At(ctx, 0)
}

// Slice returns the entities in [lo, hi), clamped to the cursor. Before All
// has run only that range is fetched.
func (c *Cursor) Slice(ctx context.Context, lo, hi int) ([]*models.Entity, error) {
	n := c.Len()
	lo, hi = max(lo, 0), min(hi, n)
	if lo >= hi {
		return nil, nil
	}
	if c.loaded {
		return c.elements[lo:hi], nil
	}
	return c.src.MultiGet(ctx, c.ids[lo:hi], c.opts())
}

// FirstN returns a cursor over the first n elements with the same flags.
// Nothing is fetched.
func (c *Cursor) FirstN(n int) *Cursor {
	n = max(min(n, c.Len()), 0)
	if !c.loaded {
		return c.derive(append([]string(nil), c.ids[:n]...))
	}
	if c.collapse {
		out := FromEntities(c.src, c.elements[:n])
		out.collapse, out.deferHooks, out.withQuarantined = c.collapse, c.deferHooks, c.withQuarantined
		return out
	}
	// Without collapse elements line up with ids, holes included.
	out := c.derive(append([]string(nil), c.ids[:n]...))
	out.elements = append([]*models.Entity(nil), c.elements[:n]...)
	out.loaded = true
	return out
}

// NextSet reads the page after this one. Without a next token the result is
// empty.
func (c *Cursor) NextSet(ctx context.Context) (*Cursor, error) {
	return c.turn(ctx, c.next)
}

// PrevSet reads the page before this one. Without a prev token the result is
// empty.
func (c *Cursor) PrevSet(ctx context.Context) (*Cursor, error) {
	return c.turn(ctx, c.prev)
}

func (c *Cursor) turn(ctx context.Context, token string) (*Cursor, error) {
	if token == "" || c.path == "" {
		out := c.derive(nil)
		out.path = c.path
		return out, nil
	}
	page, err := c.src.Scan(ctx, c.path, token)
	if err != nil {
		return nil, err
	}
	out := c.derive(page.IDs)
	out.path = c.path
	out.prev = page.Prev
	out.next = page.Next
	return out, nil
}

// ToMap fetches every entity and keys it by id.
func (c *Cursor) ToMap(ctx context.Context) (map[string]*models.Entity, error) {
	es, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.Entity, len(es))
	for _, e := range es {
		if e != nil {
			out[e.ID()] = e
		}
	}
	return out, nil
}

// MapChildren collects the ids held by the "<field>_id" attributes of every
// element into a new cursor. Elements whose type has no such attribute are
// skipped.
func (c *Cursor) MapChildren(ctx context.Context, fields ...string) (*Cursor, error) {
	es, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range es {
		if e == nil {
			continue
		}
		for _, f := range fields {
			key := f + "_id"
			if _, ok := e.Type().Attribute(key); !ok {
				continue
			}
			if id, ok := e.Get(key).(string); ok && id != "" {
				ids = append(ids, id)
			}
		}
	}
	return c.derive(ids), nil
}
