package cursor

import (
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/st9db/st9.go/pkg/models"
)

// Set operations work on id sequences only and return unfetched cursors.
// The result includes quarantined entities if either operand did.

// Union is the ids of c followed by those of o not already present, without
// duplicates.
func (c *Cursor) Union(o *Cursor) *Cursor {
	return c.combine(o, uniq(append(c.IDs(), o.ids...)))
}

// Intersect keeps the ids of c that also appear in o, in c's order, without
// duplicates.
func (c *Cursor) Intersect(o *Cursor) *Cursor {
	in := set(o.ids)
	var ids []string
	for _, id := range uniq(c.ids) {
		if _, ok := in[id]; ok {
			ids = append(ids, id)
		}
	}
	return c.combine(o, ids)
}

// Difference keeps the ids of c that do not appear in o.
func (c *Cursor) Difference(o *Cursor) *Cursor {
	out := set(o.ids)
	var ids []string
	for _, id := range c.ids {
		if _, ok := out[id]; !ok {
			ids = append(ids, id)
		}
	}
	return c.combine(o, ids)
}

// Append concatenates both id sequences, duplicates included.
func (c *Cursor) Append(o *Cursor) *Cursor {
	return c.combine(o, append(c.IDs(), o.ids...))
}

// Uniq drops repeated ids, keeping the first occurrence.
func (c *Cursor) Uniq() *Cursor {
	return c.derive(uniq(c.ids))
}

func (c *Cursor) combine(o *Cursor, ids []string) *Cursor {
	out := c.derive(ids)
	out.withQuarantined = c.withQuarantined || o.withQuarantined
	return out
}

// Equal compares id sequences.
func (c *Cursor) Equal(o *Cursor) bool {
	if o == nil {
		return false
	}
	return slices.Equal(c.ids, o.ids)
}

// EqualEntities compares the id sequence with that of a plain list.
func (c *Cursor) EqualEntities(es []*models.Entity) bool {
	ids := make([]string, len(es))
	for i, e := range es {
		if e != nil {
			ids[i] = e.ID()
		}
	}
	return slices.Equal(c.ids, ids)
}

// Hash is consistent with Equal.
func (c *Cursor) Hash() uint64 {
	h := xxhash.New()
	for _, id := range c.ids {
		_, _ = h.WriteString(id)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

func set(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
