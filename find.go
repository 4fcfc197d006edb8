package st9

import (
	"context"
	"fmt"
	"time"

	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/cursor"
	"github.com/st9db/st9.go/pkg/models"
	"github.com/st9db/st9.go/pkg/query"
	"github.com/st9db/st9.go/pkg/store"
)

type findOptions struct {
	size            int
	token           string
	withQuarantined bool
	deferHooks      bool
	keepHoles       bool
}

// FindOption narrows a lookup.
type FindOption func(*findOptions)

// Size sets the page size of a scan.
func Size(n int) FindOption {
	return func(o *findOptions) { o.size = n }
}

// Token starts a scan at a page token from a previous cursor.
func Token(t string) FindOption {
	return func(o *findOptions) { o.token = t }
}

// WithQuarantined includes quarantined entities.
func WithQuarantined() FindOption {
	return func(o *findOptions) { o.withQuarantined = true }
}

// DeferHooks skips after-find and after-initialize hooks, for bulk loads.
func DeferHooks() FindOption {
	return func(o *findOptions) { o.deferHooks = true }
}

// KeepHoles keeps a nil for every id that resolves to nothing, so results
// line up with the ids asked for.
func KeepHoles() FindOption {
	return func(o *findOptions) { o.keepHoles = true }
}

func collect(opts []FindOption) findOptions {
	var o findOptions
	for _, f := range opts {
		f(&o)
	}
	return o
}

func (o findOptions) get() store.GetOptions {
	return store.GetOptions{WithQuarantined: o.withQuarantined, Collapse: !o.keepHoles, DeferHooks: o.deferHooks}
}

// Find reads one entity by id: a 16 character token (optionally followed by
// "-anything"), a full db id, or a positive integer. A missing entity is
// (nil, nil).
func (db *DB) Find(ctx context.Context, t *models.EntityType, id any, opts ...FindOption) (*models.Entity, error) {
	defer db.timed("find", t, time.Now(), "id", fmt.Sprint(id))

	dbID, err := t.ToDBID(id)
	if err != nil {
		return nil, err
	}
	return db.store.Get(ctx, dbID, collect(opts).get())
}

// MustFind is Find that fails with constants.ErrNotFound.
func (db *DB) MustFind(ctx context.Context, t *models.EntityType, id any, opts ...FindOption) (*models.Entity, error) {
	e, err := db.Find(ctx, t, id, opts...)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: %s %v", constants.ErrNotFound, t.Name, id)
	}
	return e, nil
}

// FindMany reads several entities in batched multi-gets.
func (db *DB) FindMany(ctx context.Context, t *models.EntityType, ids []any, opts ...FindOption) ([]*models.Entity, error) {
	defer db.timed("find many", t, time.Now(), "count", len(ids))

	dbIDs, err := t.ToDBIDs(ids)
	if err != nil {
		return nil, err
	}
	return db.store.MultiGet(ctx, dbIDs, collect(opts).get())
}

// FindWithIndex scans the named index. Index constants.AllIndex scans every
// entity of the type and ignores cond.
func (db *DB) FindWithIndex(ctx context.Context, t *models.EntityType, index string, cond query.Conditions, opts ...FindOption) (*cursor.Cursor, error) {
	defer db.timed("find with index", t, time.Now(), "index", index)

	o := collect(opts)
	path, err := db.scanPath(t, index, cond, o.size, o.withQuarantined)
	if err != nil {
		return nil, err
	}
	page, err := db.store.Scan(ctx, path, o.token)
	if err != nil {
		return nil, err
	}
	return cursor.FromPage(db.store, path, page).
		SetWithQuarantined(o.withQuarantined).
		SetDeferHooks(o.deferHooks).
		SetCollapse(!o.keepHoles), nil
}

// All scans every entity of the type.
func (db *DB) All(ctx context.Context, t *models.EntityType, opts ...FindOption) (*cursor.Cursor, error) {
	return db.FindWithIndex(ctx, t, constants.AllIndex, nil, opts...)
}

// Exists reports whether the index scan has at least one entry.
func (db *DB) Exists(ctx context.Context, t *models.EntityType, index string, cond query.Conditions, opts ...FindOption) (bool, error) {
	defer db.timed("exists", t, time.Now(), "index", index)

	o := collect(opts)
	path, err := db.scanPath(t, index, cond, 0, o.withQuarantined)
	if err != nil {
		return false, err
	}
	return db.store.Exists(ctx, path)
}

// FindUnique reads the entity at a unique index entry, or nil. Paging and
// quarantine options do not apply to it.
func (db *DB) FindUnique(ctx context.Context, t *models.EntityType, index string, cond query.Conditions, opts ...FindOption) (*models.Entity, error) {
	defer db.timed("find unique", t, time.Now(), "index", index)

	o := collect(opts)
	if o.size != 0 || o.token != "" || o.withQuarantined {
		return nil, fmt.Errorf("%w: size, token and quarantine options are not valid for a unique lookup", constants.ErrInvalidArgument)
	}
	idx, err := t.Index(index)
	if err != nil {
		return nil, err
	}
	if !idx.Unique {
		return nil, fmt.Errorf("%w: %s.%s", constants.ErrNonUniqueIndex, t.Name, index)
	}
	q, err := query.FindQuery(idx, cond)
	if err != nil {
		return nil, err
	}
	return db.store.Unique(ctx, query.UniquePath(t.Base().Name, q), o.deferHooks)
}

// Count reads the named counter, grouped by the given leading field values.
func (db *DB) Count(ctx context.Context, t *models.EntityType, counter string, values []any, opts ...FindOption) (*cursor.CounterCursor, error) {
	defer db.timed("count", t, time.Now(), "counter", counter)

	c, err := t.Counter(counter)
	if err != nil {
		return nil, err
	}
	cq, err := query.CountQuery(c, values...)
	if err != nil {
		return nil, err
	}
	o := collect(opts)
	path := query.CounterPath(t.Base().Name, cq, o.size)
	page, err := db.store.Counters(ctx, path, o.token)
	if err != nil {
		return nil, err
	}
	return cursor.NewCounterCursor(db.store, path, page), nil
}

func (db *DB) scanPath(t *models.EntityType, index string, cond query.Conditions, size int, withQuarantined bool) (string, error) {
	base := t.Base().Name
	if index == constants.AllIndex {
		return query.AllPath(base, size, withQuarantined), nil
	}
	idx, err := t.Index(index)
	if err != nil {
		return "", err
	}
	q, err := query.FindQuery(idx, cond)
	if err != nil {
		return "", err
	}
	return query.IndexPath(base, q, size, withQuarantined), nil
}
