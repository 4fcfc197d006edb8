package st9

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/identitymap"
	"github.com/st9db/st9.go/pkg/models"
	"github.com/st9db/st9.go/pkg/query"
)

// New builds an unsaved entity and runs its after-initialize hooks.
func (db *DB) New(ctx context.Context, t *models.EntityType, values map[string]any) (*models.Entity, error) {
	e := t.New()
	if err := e.Assign(values); err != nil {
		return nil, err
	}
	if err := models.Run(ctx, t.Hooks().AfterInitialize, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Create is New followed by Save.
func (db *DB) Create(ctx context.Context, t *models.EntityType, values map[string]any) (*models.Entity, error) {
	e, err := db.New(ctx, t, values)
	if err != nil {
		return nil, err
	}
	if err := db.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Update assigns values and saves.
func (db *DB) Update(ctx context.Context, e *models.Entity, values map[string]any) error {
	if err := e.Assign(values); err != nil {
		return err
	}
	return db.Save(ctx, e)
}

// Save validates e, saves new or changed has-one targets, then creates or
// updates e. Hooks run in the order before save, before create/update, the
// write, after create/update, after save.
func (db *DB) Save(ctx context.Context, e *models.Entity) error {
	t := e.Type()
	if err := db.validate(ctx, e); err != nil {
		return err
	}

	hooks := t.Hooks()
	if err := models.Run(ctx, hooks.BeforeSave, e); err != nil {
		return err
	}
	if err := db.saveRelations(ctx, e); err != nil {
		return err
	}

	isNew := e.IsNew()
	before, after := hooks.BeforeUpdate, hooks.AfterUpdate
	if isNew {
		before, after = hooks.BeforeCreate, hooks.AfterCreate
	}
	if err := models.Run(ctx, before, e); err != nil {
		return err
	}
	if err := db.touch(e, isNew); err != nil {
		return err
	}

	write := db.store.Update
	if isNew {
		write = db.store.Create
	}
	saved, err := write(ctx, e)
	if err != nil {
		return err
	}
	e.MarkSaved(saved.ID, saved.Version)

	if err := models.Run(ctx, after, e); err != nil {
		return err
	}
	return models.Run(ctx, hooks.AfterSave, e)
}

func (db *DB) validate(ctx context.Context, e *models.Entity) error {
	var problems []string
	for _, v := range e.Type().Validators() {
		msgs, err := v(ctx, e)
		if err != nil {
			return err
		}
		problems = append(problems, msgs...)
	}
	if len(problems) > 0 {
		return &constants.ValidationError{Errors: problems}
	}
	return nil
}

// saveRelations saves every cached has-one target that is new or changed and
// copies its id into the foreign key.
func (db *DB) saveRelations(ctx context.Context, e *models.Entity) error {
	for _, h := range e.Type().HasOnes() {
		target, ok := e.Related(h.Name)
		if !ok {
			continue
		}
		if target.IsNew() || len(target.Changed()) > 0 {
			if err := db.Save(ctx, target); err != nil {
				return fmt.Errorf("save %s of %s: %w", h.Name, e, err)
			}
		}
		if e.Get(h.ForeignKey()) != target.ID() {
			if err := e.Set(h.ForeignKey(), target.ID()); err != nil {
				return err
			}
			e.SetRelated(h.Name, target)
		}
	}
	return nil
}

// touch stamps created_at on new entities and updated_at always, at second
// precision.
func (db *DB) touch(e *models.Entity, isNew bool) error {
	if !e.Type().Timestamps {
		return nil
	}
	now := time.Now().UTC().Truncate(time.Second)
	if isNew {
		if err := e.Set(models.CreatedAt, now); err != nil {
			return err
		}
	}
	return e.Set(models.UpdatedAt, now)
}

// Destroy deletes e after cascading to its children.
func (db *DB) Destroy(ctx context.Context, e *models.Entity) error {
	if e.IsNew() {
		return fmt.Errorf("%w: destroy of an unsaved %s", constants.ErrInvalidArgument, e.Type().Name)
	}
	return db.destroy(ctx, newCascadeWalk(e.ID()), e)
}

func (db *DB) destroy(ctx context.Context, w cascadeWalk, e *models.Entity) error {
	hooks := e.Type().Hooks()
	if err := models.Run(ctx, hooks.BeforeDestroy, e); err != nil {
		return err
	}
	if err := db.destroyCascade(ctx, w, e.Type(), []string{e.ID()}, true); err != nil {
		return err
	}
	if err := db.store.Destroy(ctx, e.ID()); err != nil {
		return err
	}
	return models.Run(ctx, hooks.AfterDestroy, e)
}

// Reload reads a fresh copy of e, bypassing the identity cache.
func (db *DB) Reload(ctx context.Context, e *models.Entity) (*models.Entity, error) {
	if e.IsNew() {
		return nil, fmt.Errorf("%w: reload of an unsaved %s", constants.ErrInvalidArgument, e.Type().Name)
	}
	if c := identitymap.FromContext(ctx); c != nil {
		c.Remove(e.ID())
	}
	return db.MustFind(ctx, e.Type(), e.ID())
}

// UniqueValidator reports "<fields> taken" when another entity already
// holds the same entry of a unique index.
func UniqueValidator(db *DB, index string) models.Validator {
	return func(ctx context.Context, e *models.Entity) ([]string, error) {
		idx, err := e.Type().Index(index)
		if err != nil {
			return nil, err
		}
		values := make(query.Values, 0, len(idx.QueryFields()))
		for _, a := range idx.QueryFields() {
			values = append(values, e.Get(a.Name))
		}
		other, err := db.FindUnique(ctx, e.Type(), index, values)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID() != e.ID() {
			return []string{strings.Join(idx.Fields(), ", ") + " taken"}, nil
		}
		return nil, nil
	}
}
