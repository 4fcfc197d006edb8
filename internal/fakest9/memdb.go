package fakest9

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/st9db/st9.go/pkg/schema"
)

type record struct {
	kind        string
	id          string
	seq         int64
	version     int64
	fields      map[string]any
	quarantined bool
}

func (r *record) get(name string) any {
	if name == "id" {
		return r.id
	}
	return r.fields[name]
}

// body is the wire form of the record.
func (r *record) body() map[string]any {
	out := make(map[string]any, len(r.fields)+3)
	for k, v := range r.fields {
		out[k] = v
	}
	out["id"] = r.id
	out["version"] = r.version
	out["kind"] = r.kind
	return out
}

type memDB struct {
	mu       sync.Mutex
	seq      int64
	entities map[string]*record
	byKind   map[string][]*record
	schemas  map[string]*schema.Document
}

func newMemDB() *memDB {
	return &memDB{
		entities: make(map[string]*record),
		byKind:   make(map[string][]*record),
		schemas:  make(map[string]*schema.Document),
	}
}

// lookup resolves a db id or a "type:n" sequence id. Callers hold mu.
func (db *memDB) lookup(id string) *record {
	if rec, ok := db.entities[id]; ok {
		return rec
	}
	if strings.HasPrefix(id, "@") {
		return nil
	}
	kind, n, ok := strings.Cut(id, ":")
	if !ok {
		return nil
	}
	i, err := strconv.Atoi(n)
	if err != nil || i < 1 {
		return nil
	}
	live := db.live(kind)
	if i > len(live) {
		return nil
	}
	return live[i-1]
}

// live lists the records of a kind in creation order, deleted ones
// excluded. Callers hold mu.
func (db *memDB) live(kind string) []*record {
	var out []*record
	for _, rec := range db.byKind[kind] {
		if _, ok := db.entities[rec.id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// create stores a new record and returns it. Callers hold mu.
func (db *memDB) create(kind string, fields map[string]any) *record {
	db.seq++
	rec := &record{
		kind:    kind,
		id:      fmt.Sprintf("@%s:%016x", kind, db.seq),
		seq:     db.seq,
		version: 1,
		fields:  fields,
	}
	db.entities[rec.id] = rec
	db.byKind[kind] = append(db.byKind[kind], rec)
	return rec
}

// violatesUnique reports whether fields collide with another record on a
// unique index of kind. Callers hold mu.
func (db *memDB) violatesUnique(kind, self string, fields map[string]any) bool {
	doc := db.schemas[kind]
	if doc == nil {
		return false
	}
	for _, idx := range doc.Indexes {
		if !idx.Unique {
			continue
		}
		for _, rec := range db.live(kind) {
			if rec.id == self {
				continue
			}
			same := true
			for _, col := range idx.Cols {
				v := rec.fields[col.Name]
				if c, ok := compare(v, fields[col.Name]); v == nil || !ok || c != 0 {
					same = false
					break
				}
			}
			if same {
				return true
			}
		}
	}
	return false
}

// scan filters the records of kind by terms and orders them by cols. With
// no cols the order is by id. Callers hold mu.
func (db *memDB) scan(kind string, terms []term, cols []schema.ColumnDoc, withQuarantined bool) []*record {
	var out []*record
outer:
	for _, rec := range db.live(kind) {
		if rec.quarantined && !withQuarantined {
			continue
		}
		for _, t := range terms {
			if !t.matches(rec.get(t.field)) {
				continue outer
			}
		}
		out = append(out, rec)
	}
	sortRecords(out, cols)
	return out
}

// descending reports whether a published column sorts high to low. Schema
// documents carry the direction upper-cased.
func descending(col schema.ColumnDoc) bool {
	return strings.EqualFold(col.Sort, string(schema.Desc))
}

func sortRecords(recs []*record, cols []schema.ColumnDoc) {
	sort.SliceStable(recs, func(i, j int) bool {
		for _, col := range cols {
			c, _ := compare(recs[i].get(col.Name), recs[j].get(col.Name))
			if c == 0 {
				continue
			}
			if descending(col) {
				return c > 0
			}
			return c < 0
		}
		return recs[i].seq < recs[j].seq
	})
}

func (db *memDB) index(kind, name string) (*schema.IndexDoc, bool) {
	doc := db.schemas[kind]
	if doc == nil {
		return nil, false
	}
	for i := range doc.Indexes {
		if doc.Indexes[i].Name == name {
			return &doc.Indexes[i], true
		}
	}
	return nil, false
}

func (db *memDB) counter(kind, name string) (*schema.CounterDoc, bool) {
	doc := db.schemas[kind]
	if doc == nil {
		return nil, false
	}
	for i := range doc.Counters {
		if doc.Counters[i].Name == name {
			return &doc.Counters[i], true
		}
	}
	return nil, false
}

func (db *memDB) nuke(preserveSchema bool) {
	db.entities = make(map[string]*record)
	db.byKind = make(map[string][]*record)
	if !preserveSchema {
		db.schemas = make(map[string]*schema.Document)
	}
}

// page slices recs at the offset encoded in token. The returned tokens are
// empty at either end.
func page[T any](recs []T, token string, size int) (out []T, prev, next string) {
	offset := 0
	if token != "" {
		if n, err := strconv.Atoi(token); err == nil && n > 0 {
			offset = n
		}
	}
	if offset > len(recs) {
		offset = len(recs)
	}
	end := min(offset+size, len(recs))
	if end < len(recs) {
		next = strconv.Itoa(end)
	}
	if offset > 0 {
		prev = strconv.Itoa(max(offset-size, 0))
	}
	return recs[offset:end], prev, next
}
