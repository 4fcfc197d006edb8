package query

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/schema"
)

var attrs = map[string]*schema.Attribute{
	"name":    {Name: "name", Type: schema.SmallString},
	"n":       {Name: "n", Type: schema.Int32},
	"active":  {Name: "active", Type: schema.Boolean},
	"made":    {Name: "made", Type: schema.Timestamp},
	"user_id": {Name: "user_id", Type: schema.Reference},
}

func lookup(name string) (*schema.Attribute, bool) {
	a, ok := attrs[name]
	return a, ok
}

func index(t *testing.T, unique bool, fields ...string) *schema.Index {
	t.Helper()
	idx, err := schema.NewIndex(schema.IndexSpec{Name: "by_x", Fields: fields, Sort: schema.Desc, Unique: unique}, lookup)
	require.NoError(t, err)
	return idx
}

// expr decodes the q parameter back into the plain expression.
func expr(t *testing.T, q string) string {
	t.Helper()
	_, raw, ok := strings.Cut(q, "?q=")
	require.True(t, ok, q)
	s, err := url.QueryUnescape(raw)
	require.NoError(t, err)
	return s
}

func TestFindQuery(t *testing.T) {
	idx := index(t, false, "name", "n", "active", "made", "user_id")

	cases := []struct {
		name string
		cond Conditions
		want string
	}{
		{"positional", Values{"bob", 3}, `name eq "bob" and n eq 3`},
		{"escaped string", Fields{"name.eq": `O'Brien "X"`}, `name eq "O'Brien \"X\""`},
		{"backslash", Fields{"name": `a\b`}, `name eq "a\\b"`},
		{"in list", Fields{"n.in": []int{1, 2, 3}}, `n in (1,2,3)`},
		{"bare list means in", Fields{"n": []any{"4", 5}}, `n in (4,5)`},
		{"booleans", Fields{"active": "1"}, `active eq true`},
		{"null", Fields{"name.ne": nil}, `name ne null`},
		{"sorted map keys", Fields{"n.gt": 1, "active.eq": false}, `active eq false and n gt 1`},
		{"timestamp", Where{Ge("made", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))}, `made ge "20240301T000000+0000"`},
		{"id tiebreak", Where{Eq("n", 500), Lt("id", "@widget:0123456789abcdef")}, `n eq 500 and id lt "@widget:0123456789abcdef"`},
		{"in helper", Where{In("name", "a", "b")}, `name in ("a","b")`},
		{"empty", Values{}, ``},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			q, err := FindQuery(idx, c.cond)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(q, ".by_x?q="), q)
			assert.Equal(t, c.want, expr(t, q))
		})
	}
}

func TestFindQueryEscapesForURL(t *testing.T) {
	q, err := FindQuery(index(t, true, "name"), Values{"a b&c"})
	require.NoError(t, err)
	assert.Equal(t, `.by_x?q=name+eq+%22a+b%26c%22`, q)
}

func TestFindQueryErrors(t *testing.T) {
	idx := index(t, true, "name", "n")

	_, err := FindQuery(idx, Fields{"user_id.eq": "x"})
	assert.ErrorIs(t, err, constants.ErrNotStaticAttribute)

	_, err = FindQuery(idx, Fields{"id.eq": "x"})
	assert.ErrorIs(t, err, constants.ErrNotStaticAttribute, "unique indexes have no id column")

	_, err = FindQuery(idx, Fields{"n.like": 1})
	assert.ErrorIs(t, err, constants.ErrInvalidArgument)

	_, err = FindQuery(idx, Fields{"n.in": 1})
	assert.ErrorIs(t, err, constants.ErrInvalidArgument)

	_, err = FindQuery(idx, Values{"a", 1, 2})
	assert.ErrorIs(t, err, constants.ErrInvalidArgument)

	_, err = FindQuery(idx, Values{"a", "many"})
	assert.ErrorIs(t, err, constants.ErrInvalidValue)
}

func TestCountQuery(t *testing.T) {
	c, err := schema.NewCounter(schema.CounterSpec{Name: "by_user", Fields: []string{"user_id", "n"}, Sort: schema.Asc}, lookup)
	require.NoError(t, err)

	q, err := CountQuery(c, "@user:0123456789abcdef", "7")
	require.NoError(t, err)
	assert.Equal(t, ".by_user/%40user%3A0123456789abcdef/7", q)

	q, err = CountQuery(c)
	require.NoError(t, err)
	assert.Equal(t, ".by_user", q)

	_, err = CountQuery(c, 1, 2, 3)
	assert.ErrorIs(t, err, constants.ErrInvalidArgument)
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "/1.0/i/widget.by_count?q=x&n=2", IndexPath("widget", ".by_count?q=x", 2, false))
	assert.Equal(t, "/1.0/i/widget.by_count?q=x&includeQuarantine=true", IndexPath("widget", ".by_count?q=x", 0, true))
	assert.Equal(t, "/1.0/i/widget.all?n=5", AllPath("widget", 5, false))
	assert.Equal(t, "/1.0/i/widget.all?", AllPath("widget", 0, false))
	assert.Equal(t, "/1.0/u/user.by_email?q=x", UniquePath("user", ".by_email?q=x"))
	assert.Equal(t, "/1.0/c/widget.by_user/a?n=10", CounterPath("widget", ".by_user/a", 10))
	assert.Equal(t, "/1.0/i/widget.all?n=5&s=tok%2Ben", WithToken(AllPath("widget", 5, false), "tok+en"))
	assert.Equal(t, "/x?a=1", WithToken("/x?a=1", ""))
}
