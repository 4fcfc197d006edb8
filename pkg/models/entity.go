package models

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/goccy/go-json"

	"github.com/st9db/st9.go/pkg/constants"
)

// Entity is a typed record. It is either new (no id, no version) or was
// materialized from the store with an empty dirty set.
type Entity struct {
	t         *EntityType
	id        string
	version   *int64
	values    map[string]any
	extra     map[string]any
	dirty     map[string]struct{}
	persisted bool

	related     map[string]*Entity
	collections map[string]cachedCollection
}

type cachedCollection struct {
	key   string
	value any
}

// Materialize builds a persisted entity from already decoded values. No
// coercion or hooks run; the dirty set is empty.
func Materialize(t *EntityType, id string, version *int64, values, extra map[string]any) *Entity {
	if values == nil {
		values = make(map[string]any)
	}
	return &Entity{
		t:         t,
		id:        id,
		version:   version,
		values:    values,
		extra:     extra,
		dirty:     make(map[string]struct{}),
		persisted: true,
	}
}

func (e *Entity) Type() *EntityType {
	return e.t
}

// ID is the full db id ("@widget:0123456789abcdef"), empty for new entities.
func (e *Entity) ID() string {
	return e.id
}

// ShortID is the token part of the db id.
func (e *Entity) ShortID() string {
	if e.id == "" {
		return ""
	}
	return ShortID(e.id)
}

func (e *Entity) Version() (int64, bool) {
	if e.version == nil {
		return 0, false
	}
	return *e.version, true
}

// SetVersion overrides the version sent with the next update.
func (e *Entity) SetVersion(v int64) {
	e.version = &v
}

func (e *Entity) IsNew() bool {
	return !e.persisted
}

func (e *Entity) Persisted() bool {
	return e.persisted
}

// Get returns the value of a declared attribute, or of an undeclared field
// that came over the wire. "id" and "version" are always available.
func (e *Entity) Get(name string) any {
	switch name {
	case "id":
		if e.id == "" {
			return nil
		}
		return e.id
	case "version":
		if e.version == nil {
			return nil
		}
		return *e.version
	}
	if v, ok := e.values[name]; ok {
		return v
	}
	return e.extra[name]
}

// Set coerces v for the named attribute and records the change.
func (e *Entity) Set(name string, v any) error {
	a, ok := e.t.Attribute(name)
	if !ok {
		return fmt.Errorf("%w: %s on %s", constants.ErrNotStaticAttribute, name, e.t.Name)
	}
	c, err := a.Coerce(v)
	if err != nil {
		return err
	}
	if !a.Validate(c) {
		return fmt.Errorf("%w: %#v for %s", constants.ErrInvalidValue, v, a)
	}
	if old, had := e.values[name]; had && reflect.DeepEqual(old, c) {
		return nil
	} else if !had && c == nil {
		return nil
	}
	e.values[name] = c
	e.dirty[name] = struct{}{}
	if fk, ok := e.hasOneForKey(name); ok {
		if r, cached := e.related[fk]; cached && (r == nil || r.id != c) {
			delete(e.related, fk)
		}
	}
	return nil
}

// Assign sets every attribute in values, stopping at the first error.
// Keys are applied in sorted order.
func (e *Entity) Assign(values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := e.Set(k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

// Values returns a copy of the declared attribute values.
func (e *Entity) Values() map[string]any {
	out := make(map[string]any, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// Changed lists the attributes modified since load or last save, sorted.
func (e *Entity) Changed() []string {
	out := make([]string, 0, len(e.dirty))
	for k := range e.dirty {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (e *Entity) IsChanged(name string) bool {
	_, ok := e.dirty[name]
	return ok
}

// MarkSaved records the outcome of a successful create or update.
func (e *Entity) MarkSaved(id string, version int64) {
	e.id = id
	e.version = &version
	e.persisted = true
	e.dirty = make(map[string]struct{})
}

// Decode unmarshals a serialized attribute into out.
func (e *Entity) Decode(name string, out any) error {
	v := e.Get(name)
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// Equal reports identity: the same instance, or the same type and db id for
// persisted entities.
func (e *Entity) Equal(o *Entity) bool {
	if e == o {
		return true
	}
	if e == nil || o == nil {
		return false
	}
	return e.t == o.t && e.persisted && o.persisted && e.id == o.id
}

// Related returns the cached target of a has-one edge. A cached miss
// reports false; see CachedRelated.
func (e *Entity) Related(name string) (*Entity, bool) {
	r, ok := e.related[name]
	return r, ok && r != nil
}

// CachedRelated reports whether the has-one edge name was resolved, and to
// what. A resolved edge may have found nothing, in which case target is nil.
func (e *Entity) CachedRelated(name string) (target *Entity, cached bool) {
	target, cached = e.related[name]
	return target, cached
}

// SetRelated caches target for a has-one edge without touching the foreign
// key. Use Assign on the DB to also update the key. A nil target records
// that the edge resolved to nothing.
func (e *Entity) SetRelated(name string, target *Entity) {
	if e.related == nil {
		e.related = make(map[string]*Entity)
	}
	e.related[name] = target
}

// ForgetRelated drops whatever is cached for the has-one edge name.
func (e *Entity) ForgetRelated(name string) {
	delete(e.related, name)
}

// CachedCollection returns a has-many result cached under name if it was
// loaded with the same argument key.
func (e *Entity) CachedCollection(name, key string) (any, bool) {
	c, ok := e.collections[name]
	if !ok || c.key != key {
		return nil, false
	}
	return c.value, true
}

func (e *Entity) CacheCollection(name, key string, v any) {
	if e.collections == nil {
		e.collections = make(map[string]cachedCollection)
	}
	e.collections[name] = cachedCollection{key: key, value: v}
}

// ForgetCollection drops the cached has-many result under name.
func (e *Entity) ForgetCollection(name string) {
	delete(e.collections, name)
}

// AsJSON renders the attributes, restricted to only when it is not empty,
// plus the short id.
func (e *Entity) AsJSON(only ...string) map[string]any {
	keep := make(map[string]bool, len(only))
	for _, n := range only {
		keep[n] = true
	}
	out := make(map[string]any, len(e.t.attributes)+1)
	for _, a := range e.t.attributes {
		if len(keep) > 0 && !keep[a.Name] {
			continue
		}
		out[a.Name] = e.values[a.Name]
	}
	if sid := e.ShortID(); sid != "" {
		out["id"] = sid
	} else {
		out["id"] = nil
	}
	return out
}

func (e *Entity) String() string {
	if e.id == "" {
		return fmt.Sprintf("%s(new)", e.t.Name)
	}
	return e.id
}

func (e *Entity) hasOneForKey(key string) (string, bool) {
	for _, h := range e.t.hasOne {
		if h.ForeignKey() == key {
			return h.Name, true
		}
	}
	return "", false
}

// Value reads an attribute as T. The boolean is false when the attribute is
// nil or holds another type.
func Value[T any](e *Entity, name string) (T, bool) {
	v, ok := e.Get(name).(T)
	return v, ok
}
