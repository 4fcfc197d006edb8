package benchmark_test

import (
	"context"
	"testing"

	st9 "github.com/st9db/st9.go"
	"github.com/st9db/st9.go/internal/fakest9"
	"github.com/st9db/st9.go/pkg/models"
	"github.com/st9db/st9.go/pkg/query"
	"github.com/st9db/st9.go/pkg/schema"
)

func setupDB(b *testing.B) (*st9.DB, *models.EntityType) {
	b.Helper()
	server := fakest9.NewServer("127.0.0.1:0")
	if err := server.Start(); err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { server.Stop() }) //nolint:errcheck

	reg := models.NewRegistry()
	user := reg.MustRegister(models.TypeSpec{
		Name: "user",
		Attributes: []schema.Attribute{
			{Name: "username", Type: schema.SmallString, Nullable: true},
			{Name: "karma", Type: schema.Int32, Nullable: true},
		},
		Indexes: []schema.IndexSpec{{Name: "by_karma", Fields: []string{"karma"}, Sort: schema.Desc}},
	})

	ctx := context.Background()
	db, err := st9.FromEndpointURLString(ctx, server.URL(), reg)
	if err != nil {
		b.Fatal(err)
	}
	if err := db.PublishSchema(ctx); err != nil {
		b.Fatal(err)
	}
	return db, user
}

func BenchmarkCreate(b *testing.B) {
	db, user := setupDB(b)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := db.Create(ctx, user, map[string]any{"username": "tobi", "karma": i % 10}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFind(b *testing.B) {
	db, user := setupDB(b)
	ctx := context.Background()
	u, err := db.Create(ctx, user, map[string]any{"username": "bob"})
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := db.MustFind(ctx, user, u.ID()); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFindWithIndex pages through one index bucket and loads every entity.
func BenchmarkFindWithIndex(b *testing.B) {
	db, user := setupDB(b)
	ctx := context.Background()
	for range 50 {
		if _, err := db.Create(ctx, user, map[string]any{"karma": 1}); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c, err := db.FindWithIndex(ctx, user, "by_karma", query.Values{1}, st9.Size(20))
		if err != nil {
			b.Fatal(err)
		}
		for !c.Empty() {
			if _, err := c.All(ctx); err != nil {
				b.Fatal(err)
			}
			if c, err = c.NextSet(ctx); err != nil {
				b.Fatal(err)
			}
		}
	}
}
