package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/schema"
)

func noteType(t *testing.T) *EntityType {
	t.Helper()
	reg := NewRegistry()
	reg.MustRegister(TypeSpec{Name: "author"})
	return reg.MustRegister(TypeSpec{
		Name: "note",
		Attributes: []schema.Attribute{
			{Name: "title", Type: schema.SmallString},
			{Name: "pinned", Type: schema.Boolean},
			{Name: "due", Type: schema.Timestamp},
			{Name: "meta", Type: schema.Text, Serialized: true},
		},
		HasOne: []HasOne{{Name: "author"}},
	})
}

func TestEntitySetTracksChanges(t *testing.T) {
	e := noteType(t).New()
	assert.True(t, e.IsNew())
	assert.Empty(t, e.Changed())

	require.NoError(t, e.Set("title", "groceries"))
	require.NoError(t, e.Set("pinned", "1"))
	assert.Equal(t, []string{"pinned", "title"}, e.Changed())

	pinned, ok := Value[bool](e, "pinned")
	assert.True(t, ok)
	assert.True(t, pinned)

	err := e.Set("pinned", "maybe")
	assert.ErrorIs(t, err, constants.ErrInvalidValue)

	err = e.Set("colour", "red")
	assert.ErrorIs(t, err, constants.ErrNotStaticAttribute)

	e.MarkSaved("@note:0123456789abcdef", 1)
	assert.False(t, e.IsNew())
	assert.Empty(t, e.Changed())
	assert.Equal(t, "0123456789abcdef", e.ShortID())

	require.NoError(t, e.Set("title", "groceries"))
	assert.Empty(t, e.Changed(), "assigning the same value is not a change")
}

func TestEntityTimestampAndDecode(t *testing.T) {
	e := noteType(t).New()
	require.NoError(t, e.Assign(map[string]any{
		"due":  "2024-03-01",
		"meta": map[string]any{"tags": []string{"a", "b"}},
	}))

	due, ok := Value[time.Time](e, "due")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), due)

	var meta struct {
		Tags []string `json:"tags"`
	}
	require.NoError(t, e.Decode("meta", &meta))
	assert.Equal(t, []string{"a", "b"}, meta.Tags)
}

func TestEntityEqual(t *testing.T) {
	typ := noteType(t)
	v := int64(3)
	a := Materialize(typ, "@note:0123456789abcdef", &v, nil, nil)
	b := Materialize(typ, "@note:0123456789abcdef", nil, nil, nil)
	c := Materialize(typ, "@note:fedcba9876543210", nil, nil, nil)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, typ.New().Equal(typ.New()))

	version, ok := a.Version()
	assert.True(t, ok)
	assert.Equal(t, int64(3), version)
	assert.Equal(t, "@note:0123456789abcdef", a.Get("id"))
}

func TestEntityForeignKeyChangeDropsRelated(t *testing.T) {
	typ := noteType(t)
	e := typ.New()
	author := Materialize(typ, "@author:0123456789abcdef", nil, nil, nil)

	e.SetRelated("author", author)
	require.NoError(t, e.Set("author_id", author.ID()))
	_, ok := e.Related("author")
	assert.True(t, ok)

	require.NoError(t, e.Set("author_id", "@author:fedcba9876543210"))
	_, ok = e.Related("author")
	assert.False(t, ok)
}

func TestEntityCachedMiss(t *testing.T) {
	typ := noteType(t)
	e := typ.New()

	_, cached := e.CachedRelated("author")
	assert.False(t, cached)

	e.SetRelated("author", nil)
	r, cached := e.CachedRelated("author")
	assert.True(t, cached)
	assert.Nil(t, r)
	_, ok := e.Related("author")
	assert.False(t, ok)

	require.NoError(t, e.Set("author_id", "@author:fedcba9876543210"))
	_, cached = e.CachedRelated("author")
	assert.False(t, cached, "a new key drops the cached miss")

	e.SetRelated("author", nil)
	e.ForgetRelated("author")
	_, cached = e.CachedRelated("author")
	assert.False(t, cached)
}

func TestEntityCollectionCache(t *testing.T) {
	e := noteType(t).New()
	_, ok := e.CachedCollection("pages", "10")
	assert.False(t, ok)

	e.CacheCollection("pages", "10", []string{"x"})
	v, ok := e.CachedCollection("pages", "10")
	assert.True(t, ok)
	assert.Equal(t, []string{"x"}, v)

	_, ok = e.CachedCollection("pages", "20")
	assert.False(t, ok)
}

func TestAsJSON(t *testing.T) {
	e := Materialize(noteType(t), "@note:0123456789abcdef", nil, map[string]any{"title": "x"}, nil)
	out := e.AsJSON("title")
	assert.Equal(t, map[string]any{"title": "x", "id": "0123456789abcdef"}, out)
}
