package st9

import (
	"context"
	"fmt"

	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/models"
	"github.com/st9db/st9.go/pkg/query"
)

// cascadeWalk holds the ids a cascade has already reached. Relation cycles
// end at the first id seen twice.
type cascadeWalk map[string]struct{}

func newCascadeWalk(ids ...string) cascadeWalk {
	w := make(cascadeWalk, len(ids))
	w.admit(ids)
	return w
}

// admit marks ids as reached and returns those that were not reached before.
func (w cascadeWalk) admit(ids []string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := w[id]; ok {
			continue
		}
		w[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// DestroyWithCascades deletes the children of every id across the has-many
// edges of t, grandchildren included, then the ids themselves unless
// onlyChildren is set. Children of a CascadeDestroy edge are loaded and go
// through Destroy with their own hooks; the others are deleted by id. An
// entity reached twice through a relation cycle is only handled once.
func (db *DB) DestroyWithCascades(ctx context.Context, t *models.EntityType, ids []string, onlyChildren bool) error {
	return db.destroyCascade(ctx, newCascadeWalk(ids...), t, ids, onlyChildren)
}

func (db *DB) destroyCascade(ctx context.Context, w cascadeWalk, t *models.EntityType, ids []string, onlyChildren bool) error {
	edges := t.HasManys()
	if len(edges) > 0 && !db.allowCascades {
		return fmt.Errorf("%w: destroy of %s", constants.ErrCascade, t.Name)
	}

	for _, h := range edges {
		kind, err := db.reg.Lookup(h.QueryKind())
		if err != nil {
			return err
		}
		for _, id := range ids {
			found, err := db.childIDs(ctx, kind, id, h, true)
			if err != nil {
				return err
			}
			children := w.admit(found)
			if len(children) == 0 {
				continue
			}
			db.logger.Debug("cascading destroy", "owner", id, "relation", h.Name, "children", len(children))

			if h.Dependent == models.CascadeDestroy {
				es, err := db.store.MultiGet(ctx, children, collect([]FindOption{WithQuarantined()}).get())
				if err != nil {
					return err
				}
				for _, e := range es {
					if e == nil {
						continue
					}
					if err := db.destroy(ctx, w, e); err != nil {
						return err
					}
				}
				continue
			}
			if err := db.destroyCascade(ctx, w, kind, children, false); err != nil {
				return err
			}
		}
	}

	if onlyChildren {
		return nil
	}
	for _, id := range ids {
		if err := db.store.Destroy(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// childIDs pages through the foreign key index of h on kind and returns every
// child id of owner.
func (db *DB) childIDs(ctx context.Context, kind *models.EntityType, owner string, h models.HasMany, withQuarantined bool) ([]string, error) {
	idx, err := kind.Index(h.ForeignKey)
	if err != nil {
		return nil, err
	}
	q, err := query.FindQuery(idx, query.Fields{h.ForeignKey: owner})
	if err != nil {
		return nil, err
	}
	path := query.IndexPath(kind.Base().Name, q, db.hasManyPageSize, withQuarantined)

	var ids []string
	token := ""
	for {
		page, err := db.store.Scan(ctx, path, token)
		if err != nil {
			return nil, err
		}
		ids = append(ids, page.IDs...)
		if page.Next == "" || len(page.IDs) == 0 {
			return ids, nil
		}
		token = page.Next
	}
}
