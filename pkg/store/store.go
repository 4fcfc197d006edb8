// Package store is the entity level view of the ST9 HTTP API. It knows the
// paths and envelopes of every endpoint; the transport underneath only moves
// bytes.
package store

import (
	"context"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/st9db/st9.go/pkg/models"
	"github.com/st9db/st9.go/pkg/schema"
)

// GetOptions tune single and multi gets.
type GetOptions struct {
	WithQuarantined bool
	// Collapse drops ids that resolved to nothing. Without it the result has
	// a nil at that position.
	Collapse bool
	// DeferHooks skips after-find and after-initialize hooks.
	DeferHooks bool
}

// Page is one page of an index scan.
type Page struct {
	IDs  []string
	Prev string
	Next string
}

// Row is one counter group. The query that produced the page is merged into
// every row.
type Row map[string]any

// Count returns the "count" column as an integer.
func (r Row) Count() int64 {
	switch v := r["count"].(type) {
	case json.Number:
		n, _ := v.Int64()
		return n
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// CounterPage is one page of counter rows.
type CounterPage struct {
	Rows []Row
	Prev string
	Next string
}

// Saved is the server's answer to a create or update.
type Saved struct {
	ID      string
	Version int64
}

// Store is the set of remote operations the rest of the client is built on.
// Paths passed to Scan, Counters, Unique and Exists come from pkg/query.
type Store interface {
	Get(ctx context.Context, id string, opts GetOptions) (*models.Entity, error)
	MultiGet(ctx context.Context, ids []string, opts GetOptions) ([]*models.Entity, error)
	Create(ctx context.Context, e *models.Entity) (*Saved, error)
	Update(ctx context.Context, e *models.Entity) (*Saved, error)
	Destroy(ctx context.Context, id string) error

	Scan(ctx context.Context, path, token string) (*Page, error)
	Counters(ctx context.Context, path, token string) (*CounterPage, error)
	Unique(ctx context.Context, path string, deferHooks bool) (*models.Entity, error)
	Exists(ctx context.Context, path string) (bool, error)

	Quarantine(ctx context.Context, id string) error
	Unquarantine(ctx context.Context, id string) error
	Quarantined(ctx context.Context, id string) (bool, error)

	GetSchema(ctx context.Context, typeName string) (*schema.Document, error)
	PublishSchema(ctx context.Context, typeName string, doc *schema.Document) error
	Ping(ctx context.Context) (bool, error)
	Nuke(ctx context.Context, preserveSchema bool) error
}
