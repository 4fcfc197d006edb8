package identitymap

import (
	"context"

	"github.com/st9db/st9.go/pkg/models"
	"github.com/st9db/st9.go/pkg/store"
)

// Store reads through the Cache attached to the context. Writes drop the id
// from the cache before they go out. Without a cache in the context every
// call goes straight to the wrapped store.
type Store struct {
	store.Store
}

var _ store.Store = (*Store)(nil)

func Wrap(s store.Store) *Store {
	return &Store{Store: s}
}

func (s *Store) Get(ctx context.Context, id string, opts store.GetOptions) (*models.Entity, error) {
	c := FromContext(ctx)
	if c == nil {
		return s.Store.Get(ctx, id, opts)
	}
	return c.Fetch(id, func() (*models.Entity, error) {
		return s.Store.Get(ctx, id, opts)
	})
}

// MultiGet serves cached ids locally and fetches only the rest.
func (s *Store) MultiGet(ctx context.Context, ids []string, opts store.GetOptions) ([]*models.Entity, error) {
	c := FromContext(ctx)
	if c == nil {
		return s.Store.MultiGet(ctx, ids, opts)
	}

	seen := make(map[string]struct{}, len(ids))
	var order, missing []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		order = append(order, id)
		if _, ok := c.Get(id); !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		inner := opts
		inner.Collapse = false
		found, err := s.Store.MultiGet(ctx, missing, inner)
		if err != nil {
			return nil, err
		}
		for i, e := range found {
			c.Set(missing[i], e)
		}
	}

	out := make([]*models.Entity, 0, len(order))
	for _, id := range order {
		e, _ := c.Get(id)
		if e == nil && opts.Collapse {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, e *models.Entity) (*store.Saved, error) {
	s.forget(ctx, e.ID())
	return s.Store.Update(ctx, e)
}

func (s *Store) Destroy(ctx context.Context, id string) error {
	s.forget(ctx, id)
	return s.Store.Destroy(ctx, id)
}

func (s *Store) Quarantine(ctx context.Context, id string) error {
	s.forget(ctx, id)
	return s.Store.Quarantine(ctx, id)
}

func (s *Store) Unquarantine(ctx context.Context, id string) error {
	s.forget(ctx, id)
	return s.Store.Unquarantine(ctx, id)
}

func (s *Store) forget(ctx context.Context, id string) {
	if c := FromContext(ctx); c != nil {
		c.Remove(id)
	}
}
