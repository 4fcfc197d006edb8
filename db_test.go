package st9_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	st9 "github.com/st9db/st9.go"
	"github.com/st9db/st9.go/internal/fakest9"
	"github.com/st9db/st9.go/pkg/config"
	"github.com/st9db/st9.go/pkg/connection"
	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/models"
	"github.com/st9db/st9.go/pkg/schema"
)

type types struct {
	widget     *models.EntityType
	host       *models.EntityType
	child      *models.EntityType
	grandchild *models.EntityType
	note       *models.EntityType
	post       *models.EntityType
	tag        *models.EntityType
	tagging    *models.EntityType
}

// declare registers the types shared by the tests in this package.
func declare(t *testing.T, reg *models.Registry) types {
	t.Helper()
	must := func(spec models.TypeSpec) *models.EntityType {
		et, err := reg.Register(spec)
		require.NoError(t, err)
		return et
	}
	return types{
		widget: must(models.TypeSpec{
			Name: "widget",
			Attributes: []schema.Attribute{
				{Name: "count", Type: schema.Int32, Nullable: true},
				{Name: "name", Type: schema.SmallString, Nullable: true},
				{Name: "color", Type: schema.Enum, Nullable: true, Values: []string{"red", "green", "blue"}},
			},
			Indexes: []schema.IndexSpec{
				{Name: "by_count", Fields: []string{"count"}, Sort: schema.Desc},
				{Name: "by_name", Fields: []string{"name"}, Sort: schema.Asc, Unique: true},
			},
			Counters:   []schema.CounterSpec{{Name: "by_color", Fields: []string{"color"}, Sort: schema.Asc}},
			Timestamps: true,
		}),
		host: must(models.TypeSpec{
			Name:          "host",
			Quarantinable: true,
			HasMany:       []models.HasMany{{Name: "children", Kind: "child", ForeignKey: "parent_id"}},
		}),
		child: must(models.TypeSpec{
			Name:          "child",
			Quarantinable: true,
			HasOne:        []models.HasOne{{Name: "parent", Kind: "host", Nullable: true}},
			HasMany:       []models.HasMany{{Name: "grandchildren", Kind: "grandchild", ForeignKey: "parent_id"}},
		}),
		grandchild: must(models.TypeSpec{
			Name:          "grandchild",
			Quarantinable: true,
			HasOne:        []models.HasOne{{Name: "parent", Kind: "child", Nullable: true}},
		}),
		note: must(models.TypeSpec{
			Name:       "note",
			Attributes: []schema.Attribute{{Name: "body", Type: schema.Text, Nullable: true}},
			HasOne:     []models.HasOne{{Name: "subject", Polymorphic: true, Nullable: true}},
		}),
		post: must(models.TypeSpec{
			Name:    "post",
			HasMany: []models.HasMany{{Name: "tags", Through: "tagging"}},
		}),
		tag: must(models.TypeSpec{
			Name:       "tag",
			Attributes: []schema.Attribute{{Name: "label", Type: schema.SmallString, Nullable: true}},
		}),
		tagging: must(models.TypeSpec{
			Name: "tagging",
			HasOne: []models.HasOne{
				{Name: "post", Nullable: true},
				{Name: "tag", Nullable: true},
			},
		}),
	}
}

type fixture struct {
	server *fakest9.Server
	reg    *models.Registry
	db     *st9.DB
	types
}

func setup(t *testing.T, opts ...st9.Option) *fixture {
	t.Helper()
	ctx := context.Background()

	server := fakest9.NewServer("127.0.0.1:0")
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		if err := server.Stop(); err != nil {
			t.Errorf("failed to stop server: %v", err)
		}
	})

	reg := models.NewRegistry()
	ts := declare(t, reg)

	db, err := st9.FromEndpointURLString(ctx, server.URL(), reg, append([]st9.Option{st9.WithAllowCascades(true)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, db.PublishSchema(ctx))

	return &fixture{server: server, reg: reg, db: db, types: ts}
}

// other opens a second DB against the same server and types.
func (f *fixture) other(t *testing.T, opts ...st9.Option) *st9.DB {
	t.Helper()
	db, err := st9.FromEndpointURLString(context.Background(), f.server.URL(), f.reg, opts...)
	require.NoError(t, err)
	return db
}

func TestPing(t *testing.T) {
	f := setup(t)
	ok, err := f.db.Ping(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPublishSchemaRepublishes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	doc, err := f.db.Store().GetSchema(ctx, "widget")
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.NotNil(t, doc.Version)
	assert.EqualValues(t, 1, *doc.Version)
	assert.Len(t, doc.Indexes, 2)

	require.NoError(t, f.db.PublishSchema(ctx, f.widget))
	doc, err = f.db.Store().GetSchema(ctx, "widget")
	require.NoError(t, err)
	assert.EqualValues(t, 2, *doc.Version)

	missing, err := f.db.Store().GetSchema(ctx, "nothing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestNuke(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.db.Create(ctx, f.widget, map[string]any{"count": 1})
	require.NoError(t, err)

	err = f.db.Nuke(ctx, true)
	require.ErrorIs(t, err, constants.ErrNukeDisabled)

	f.server.SetNukeEnabled(true)
	require.NoError(t, f.db.Nuke(ctx, true))

	all, err := f.db.All(ctx, f.widget)
	require.NoError(t, err)
	assert.True(t, all.Empty())

	doc, err := f.db.Store().GetSchema(ctx, "widget")
	require.NoError(t, err)
	assert.NotNil(t, doc)
}

func TestRequestInfoHeaders(t *testing.T) {
	f := setup(t)
	f.server.ResetRequests()

	ctx := connection.WithRequestInfo(context.Background(), connection.RequestInfo{
		RequestID: "req-1",
		UserID:    "user-7",
	})
	_, err := f.db.Ping(ctx)
	require.NoError(t, err)

	reqs := f.server.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "req-1", reqs[0].Header.Get(connection.HeaderRequestID))
	assert.Equal(t, "user-7", reqs[0].Header.Get(connection.HeaderUserID))
	assert.Empty(t, reqs[0].Header.Get(connection.HeaderSessionID))

	f.server.ResetRequests()
	_, err = f.db.Ping(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, f.server.Requests()[0].Header.Get(connection.HeaderRequestID))
}

func TestFromConfigRetries(t *testing.T) {
	server := fakest9.NewServer("127.0.0.1:0")
	require.NoError(t, server.Start())
	defer server.Stop()

	server.AddStubResponse(fakest9.StubResponse{
		Matcher: fakest9.RequestMatcher{Method: http.MethodGet, PathPrefix: "/ping"},
		Times:   2,
		Status:  http.StatusServiceUnavailable,
		Body:    "warming up",
	})

	path := filepath.Join(t.TempDir(), "st9.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
url = "`+server.URL()+`"
log_level = "error"

[retry]
max_retries = 3
initial_backoff = "1ms"
max_backoff = "5ms"
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, config.Duration(time.Millisecond), cfg.Retry.InitialBackoff)

	db, err := st9.FromConfig(context.Background(), cfg, models.NewRegistry())
	require.NoError(t, err)

	ok, err := db.Ping(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, server.Requests(), 3)
}

func TestFromEndpointURLStringRejectsGarbage(t *testing.T) {
	_, err := st9.FromEndpointURLString(context.Background(), "not a url", models.NewRegistry())
	assert.ErrorIs(t, err, constants.ErrInvalidArgument)
}
