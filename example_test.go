package st9_test

import (
	"context"
	"fmt"

	st9 "github.com/st9db/st9.go"
	"github.com/st9db/st9.go/internal/fakest9"
	"github.com/st9db/st9.go/pkg/models"
	"github.com/st9db/st9.go/pkg/query"
	"github.com/st9db/st9.go/pkg/schema"
)

//nolint:funlen
func ExampleDB_FindWithIndex() {
	server := fakest9.NewServer("127.0.0.1:0")
	if err := server.Start(); err != nil {
		panic(err)
	}
	defer server.Stop()

	reg := models.NewRegistry()
	widget := reg.MustRegister(models.TypeSpec{
		Name: "widget",
		Attributes: []schema.Attribute{
			{Name: "count", Type: schema.Int32, Nullable: true},
		},
		// Non-unique indexes get a trailing id column, so entries with the
		// same count come back newest first.
		Indexes: []schema.IndexSpec{
			{Name: "by_count", Fields: []string{"count"}, Sort: schema.Desc},
		},
	})

	ctx := context.Background()
	db, err := st9.FromEndpointURLString(ctx, server.URL(), reg)
	if err != nil {
		panic(err)
	}
	if err := db.PublishSchema(ctx); err != nil {
		panic(err)
	}

	var ids []string
	for range 5 {
		w, err := db.Create(ctx, widget, map[string]any{"count": 500})
		if err != nil {
			panic(err)
		}
		ids = append(ids, w.ID())
	}
	position := func(id string) int {
		for i, x := range ids {
			if x == id {
				return i
			}
		}
		return -1
	}

	c, err := db.FindWithIndex(ctx, widget, "by_count", query.Fields{"count": 500}, st9.Size(2))
	if err != nil {
		panic(err)
	}
	for !c.Empty() {
		var page []int
		for _, id := range c.IDs() {
			page = append(page, position(id))
		}
		fmt.Println(page)

		c, err = c.NextSet(ctx)
		if err != nil {
			panic(err)
		}
	}

	// Output:
	// [4 3]
	// [2 1]
	// [0]
}
