package st9

import (
	"context"
	"fmt"

	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/cursor"
	"github.com/st9db/st9.go/pkg/identitymap"
	"github.com/st9db/st9.go/pkg/models"
	"github.com/st9db/st9.go/pkg/query"
)

// HasOne returns the target of the has-one edge name, reading it from the
// store on first access and caching it on e until ReloadHasOne. A missing
// target is cached as nil too. An empty foreign key is (nil, nil).
func (db *DB) HasOne(ctx context.Context, e *models.Entity, name string) (*models.Entity, error) {
	h, ok := e.Type().HasOne(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", constants.ErrUnknownRelation, e.Type().Name, name)
	}
	if r, cached := e.CachedRelated(name); cached {
		return r, nil
	}

	fk, _ := e.Get(h.ForeignKey()).(string)
	if fk == "" {
		return nil, nil
	}
	target, err := db.targetType(h, fk)
	if err != nil {
		return nil, err
	}
	id, err := target.ToDBID(fk)
	if err != nil {
		return nil, err
	}
	r, err := db.store.Get(ctx, id, collect(nil).get())
	if err != nil {
		return nil, err
	}
	e.SetRelated(name, r)
	return r, nil
}

// ReloadHasOne drops the cached target and reads it again.
func (db *DB) ReloadHasOne(ctx context.Context, e *models.Entity, name string) (*models.Entity, error) {
	if r, ok := e.Related(name); ok {
		if c := identitymap.FromContext(ctx); c != nil {
			c.Remove(r.ID())
		}
	}
	e.ForgetRelated(name)
	return db.HasOne(ctx, e, name)
}

// Assign points the has-one edge name at target. The foreign key of an
// unsaved target is filled in when e is saved. A nil target clears the edge.
func (db *DB) Assign(e *models.Entity, name string, target *models.Entity) error {
	h, ok := e.Type().HasOne(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", constants.ErrUnknownRelation, e.Type().Name, name)
	}
	if target == nil {
		if err := e.Set(h.ForeignKey(), nil); err != nil {
			return err
		}
		e.SetRelated(name, nil)
		return nil
	}
	if !h.Polymorphic {
		want, err := db.reg.Lookup(h.TargetKind())
		if err != nil {
			return err
		}
		if !target.Type().Is(want) {
			return &constants.InvalidAssociationError{Got: target.Type().Name, Want: want.Name}
		}
	}
	if target.Persisted() {
		if err := e.Set(h.ForeignKey(), target.ID()); err != nil {
			return err
		}
	}
	e.SetRelated(name, target)
	return nil
}

func (db *DB) targetType(h models.HasOne, fk string) (*models.EntityType, error) {
	if h.Polymorphic {
		return db.reg.TypeOfID(fk)
	}
	return db.reg.Lookup(h.TargetKind())
}

// HasMany scans the children of e across the has-many edge name. The
// result is cached on e per option set; other options load it again. Size
// defaults to the configured has-many page size.
func (db *DB) HasMany(ctx context.Context, e *models.Entity, name string, opts ...FindOption) (*cursor.Cursor, error) {
	h, ok := e.Type().HasMany(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", constants.ErrUnknownRelation, e.Type().Name, name)
	}
	if db.hasManyPageSize > 0 {
		opts = append([]FindOption{Size(db.hasManyPageSize)}, opts...)
	}
	key := fmt.Sprintf("%+v", collect(opts))
	if v, ok := e.CachedCollection(name, key); ok {
		return v.(*cursor.Cursor), nil
	}
	if e.IsNew() {
		return cursor.Empty(db.store), nil
	}

	kind, err := db.reg.Lookup(h.QueryKind())
	if err != nil {
		return nil, err
	}
	c, err := db.FindWithIndex(ctx, kind, h.ForeignKey, query.Fields{h.ForeignKey: e.ID()}, opts...)
	if err != nil {
		return nil, err
	}

	if h.Through != "" {
		if err := c.Includes(ctx, cursor.Field(h.Target)); err != nil {
			return nil, err
		}
		through, err := c.All(ctx)
		if err != nil {
			return nil, err
		}
		targets := make([]*models.Entity, 0, len(through))
		for _, t := range through {
			if r, ok := t.Related(h.Target); ok {
				targets = append(targets, r)
			}
		}
		c = cursor.FromEntities(db.store, targets)
	}

	e.CacheCollection(name, key, c)
	return c, nil
}

// ReloadHasMany drops the cached collection and scans it again.
func (db *DB) ReloadHasMany(ctx context.Context, e *models.Entity, name string, opts ...FindOption) (*cursor.Cursor, error) {
	e.ForgetCollection(name)
	return db.HasMany(ctx, e, name, opts...)
}
