package cursor

import (
	"context"

	"github.com/st9db/st9.go/pkg/models"
	"github.com/st9db/st9.go/pkg/store"
)

// Include names a has-one edge to eager load, with further edges to load on
// the targets.
type Include struct {
	Name   string
	Nested []Include
}

// Field builds an Include.
func Field(name string, nested ...Include) Include {
	return Include{Name: name, Nested: nested}
}

// Fields is shorthand for flat includes.
func Fields(names ...string) []Include {
	out := make([]Include, len(names))
	for i, n := range names {
		out[i] = Include{Name: n}
	}
	return out
}

// Includes resolves the given has-one edges of every element with one
// multi-get per edge and caches the targets on the elements. Targets already
// cached are not fetched again.
func (c *Cursor) Includes(ctx context.Context, fields ...Include) error {
	es, err := c.All(ctx)
	if err != nil {
		return err
	}
	return includes(ctx, c.src, c.opts(), es, fields)
}

func includes(ctx context.Context, src Source, opts store.GetOptions, es []*models.Entity, fields []Include) error {
	for _, f := range fields {
		var need []string
		for _, e := range es {
			if id, ok := pending(e, f.Name); ok {
				need = append(need, id)
			}
		}

		found := make(map[string]*models.Entity)
		if len(need) > 0 {
			opts.Collapse = true
			loaded, err := src.MultiGet(ctx, uniq(need), opts)
			if err != nil {
				return err
			}
			for _, t := range loaded {
				found[t.ID()] = t
			}
		}

		var targets []*models.Entity
		seen := make(map[*models.Entity]bool)
		for _, e := range es {
			if e == nil {
				continue
			}
			if id, ok := pending(e, f.Name); ok {
				e.SetRelated(f.Name, found[id])
			}
			if t, ok := e.Related(f.Name); ok && !seen[t] {
				seen[t] = true
				targets = append(targets, t)
			}
		}

		if len(f.Nested) > 0 && len(targets) > 0 {
			if err := includes(ctx, src, opts, targets, f.Nested); err != nil {
				return err
			}
		}
	}
	return nil
}

// pending returns the foreign key of the has-one edge name when e declares
// it, holds a key, and has no target cached yet.
func pending(e *models.Entity, name string) (string, bool) {
	if e == nil {
		return "", false
	}
	h, ok := e.Type().HasOne(name)
	if !ok {
		return "", false
	}
	if _, cached := e.CachedRelated(name); cached {
		return "", false
	}
	id, ok := e.Get(h.ForeignKey()).(string)
	return id, ok && id != ""
}
