package st9

import (
	"context"
	"fmt"

	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/models"
)

// Quarantine hides e from normal reads, after quarantining its children
// across every has-many edge whose child type is quarantinable.
func (db *DB) Quarantine(ctx context.Context, e *models.Entity) error {
	if err := db.quarantinable(e); err != nil {
		return err
	}
	return db.quarantineTree(ctx, newCascadeWalk(e.ID()), e.Type(), e.ID(), true)
}

// Unquarantine reverses Quarantine, children included.
func (db *DB) Unquarantine(ctx context.Context, e *models.Entity) error {
	if err := db.quarantinable(e); err != nil {
		return err
	}
	return db.quarantineTree(ctx, newCascadeWalk(e.ID()), e.Type(), e.ID(), false)
}

// Quarantined reads the quarantine flag of e from the server.
func (db *DB) Quarantined(ctx context.Context, e *models.Entity) (bool, error) {
	if err := db.quarantinable(e); err != nil {
		return false, err
	}
	return db.store.Quarantined(ctx, e.ID())
}

func (db *DB) quarantinable(e *models.Entity) error {
	if !e.Type().Quarantinable {
		return fmt.Errorf("%w: %s is not quarantinable", constants.ErrInvalidArgument, e.Type().Name)
	}
	if e.IsNew() {
		return fmt.Errorf("%w: quarantine of an unsaved %s", constants.ErrInvalidArgument, e.Type().Name)
	}
	return nil
}

// quarantineTree walks the quarantinable edges depth first and flags the
// leaves before their owners. Unquarantine looks at quarantined children too.
// Ids already reached through a cycle are skipped.
func (db *DB) quarantineTree(ctx context.Context, w cascadeWalk, t *models.EntityType, id string, on bool) error {
	var edges []models.HasMany
	var kinds []*models.EntityType
	for _, h := range t.HasManys() {
		kind, err := db.reg.Lookup(h.QueryKind())
		if err != nil {
			return err
		}
		if kind.Quarantinable {
			edges = append(edges, h)
			kinds = append(kinds, kind)
		}
	}
	if len(edges) > 0 && !db.allowCascades {
		return fmt.Errorf("%w: quarantine of %s", constants.ErrCascade, t.Name)
	}

	for i, h := range edges {
		found, err := db.childIDs(ctx, kinds[i], id, h, !on)
		if err != nil {
			return err
		}
		for _, child := range w.admit(found) {
			if err := db.quarantineTree(ctx, w, kinds[i], child, on); err != nil {
				return err
			}
		}
	}

	if on {
		return db.store.Quarantine(ctx, id)
	}
	return db.store.Unquarantine(ctx, id)
}
