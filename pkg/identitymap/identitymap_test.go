package identitymap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/st9db/st9.go/pkg/models"
	"github.com/st9db/st9.go/pkg/schema"
	"github.com/st9db/st9.go/pkg/store"
)

var widget = models.NewRegistry().MustRegister(models.TypeSpec{
	Name:       "widget",
	Attributes: []schema.Attribute{{Name: "count", Type: schema.Int32}},
})

func materialize(id string) *models.Entity {
	return models.Materialize(widget, id, nil, nil, nil)
}

// countingStore materializes a fresh entity per requested id, except ids
// listed as missing.
type countingStore struct {
	store.Store
	gets      int
	multiGets [][]string
	destroyed []string
	updated   []string
	missing   map[string]bool
}

func (s *countingStore) Get(_ context.Context, id string, _ store.GetOptions) (*models.Entity, error) {
	s.gets++
	if s.missing[id] {
		return nil, nil
	}
	return materialize(id), nil
}

func (s *countingStore) MultiGet(_ context.Context, ids []string, opts store.GetOptions) ([]*models.Entity, error) {
	s.multiGets = append(s.multiGets, ids)
	var out []*models.Entity
	for _, id := range ids {
		if s.missing[id] {
			if !opts.Collapse {
				out = append(out, nil)
			}
			continue
		}
		out = append(out, materialize(id))
	}
	return out, nil
}

func (s *countingStore) Update(_ context.Context, e *models.Entity) (*store.Saved, error) {
	s.updated = append(s.updated, e.ID())
	return &store.Saved{ID: e.ID(), Version: 2}, nil
}

func (s *countingStore) Destroy(_ context.Context, id string) error {
	s.destroyed = append(s.destroyed, id)
	return nil
}

func TestCacheFetch(t *testing.T) {
	c := New()
	calls := 0
	loader := func() (*models.Entity, error) {
		calls++
		return materialize("@widget:0000000000000001"), nil
	}

	first, err := c.Fetch("@widget:0000000000000001", loader)
	require.NoError(t, err)
	second, err := c.Fetch("@widget:0000000000000001", loader)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len())

	c.Remove("@widget:0000000000000001")
	_, ok := c.Get("@widget:0000000000000001")
	assert.False(t, ok)

	c.Set("a", materialize("a"))
	c.Set("b", nil)
	assert.Equal(t, 1, c.Len())
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCacheFetchDoesNotCacheMisses(t *testing.T) {
	c := New()
	boom := errors.New("boom")

	_, err := c.Fetch("x", func() (*models.Entity, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	e, err := c.Fetch("x", func() (*models.Entity, error) { return nil, nil })
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Equal(t, 0, c.Len())
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	c := New()
	assert.Same(t, c, FromContext(NewContext(context.Background(), c)))
}

func TestStoreGet(t *testing.T) {
	inner := &countingStore{}
	s := Wrap(inner)
	id := "@widget:0000000000000001"

	a, err := s.Get(context.Background(), id, store.GetOptions{})
	require.NoError(t, err)
	b, err := s.Get(context.Background(), id, store.GetOptions{})
	require.NoError(t, err)
	assert.NotSame(t, a, b, "no cache in context")
	assert.Equal(t, 2, inner.gets)

	ctx := NewContext(context.Background(), New())
	a, err = s.Get(ctx, id, store.GetOptions{})
	require.NoError(t, err)
	b, err = s.Get(ctx, id, store.GetOptions{})
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 3, inner.gets)

	require.NoError(t, s.Destroy(ctx, id))
	assert.Equal(t, []string{id}, inner.destroyed)
	c, err := s.Get(ctx, id, store.GetOptions{})
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Equal(t, 4, inner.gets)
}

func TestStoreUpdateInvalidates(t *testing.T) {
	inner := &countingStore{}
	s := Wrap(inner)
	ctx := NewContext(context.Background(), New())
	id := "@widget:0000000000000001"

	e, err := s.Get(ctx, id, store.GetOptions{})
	require.NoError(t, err)
	_, err = s.Update(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, 0, FromContext(ctx).Len())
}

func TestStoreMultiGet(t *testing.T) {
	inner := &countingStore{missing: map[string]bool{"@widget:0000000000000003": true}}
	s := Wrap(inner)
	ctx := NewContext(context.Background(), New())

	cached, err := s.Get(ctx, "@widget:0000000000000001", store.GetOptions{})
	require.NoError(t, err)

	ids := []string{"@widget:0000000000000001", "@widget:0000000000000002", "@widget:0000000000000003", "@widget:0000000000000002"}
	out, err := s.MultiGet(ctx, ids, store.GetOptions{})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Same(t, cached, out[0])
	assert.Equal(t, "@widget:0000000000000002", out[1].ID())
	assert.Nil(t, out[2])
	assert.Equal(t, [][]string{{"@widget:0000000000000002", "@widget:0000000000000003"}}, inner.multiGets)

	out, err = s.MultiGet(ctx, ids, store.GetOptions{Collapse: true})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Len(t, inner.multiGets, 2, "the hole is asked for again")
	assert.Equal(t, []string{"@widget:0000000000000003"}, inner.multiGets[1])
}
