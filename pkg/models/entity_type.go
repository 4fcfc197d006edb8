package models

import (
	"fmt"

	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/schema"
)

// EntityType is the full descriptor of a registered type: its own
// declarations merged over its parent's. It is immutable after registration.
type EntityType struct {
	Name          string
	Parent        *EntityType
	Quarantinable bool
	Timestamps    bool

	attributes []*schema.Attribute
	attrByName map[string]*schema.Attribute

	indexes     []*schema.Index
	indexByName map[string]*schema.Index

	counters      []*schema.Counter
	counterByName map[string]*schema.Counter

	fulltext *schema.Fulltext

	hasOne  []HasOne
	hasMany []HasMany

	hooks      Hooks
	validators []Validator
}

// Base is the top-most ancestor. Entities of every subtype are stored under
// the base type's name.
func (t *EntityType) Base() *EntityType {
	b := t
	for b.Parent != nil {
		b = b.Parent
	}
	return b
}

// IsSubtype reports whether t is stored under another type's name and so
// needs a type discriminator on the wire.
func (t *EntityType) IsSubtype() bool {
	return t.Parent != nil
}

// Is reports whether t is other or descends from it.
func (t *EntityType) Is(other *EntityType) bool {
	for c := t; c != nil; c = c.Parent {
		if c == other {
			return true
		}
	}
	return false
}

func (t *EntityType) String() string {
	return t.Name
}

func (t *EntityType) Attribute(name string) (*schema.Attribute, bool) {
	a, ok := t.attrByName[name]
	return a, ok
}

func (t *EntityType) Attributes() []*schema.Attribute {
	return t.attributes
}

// Index returns the named index, or constants.ErrNoIndex.
func (t *EntityType) Index(name string) (*schema.Index, error) {
	if idx, ok := t.indexByName[name]; ok {
		return idx, nil
	}
	return nil, fmt.Errorf("%w: %s on %s", constants.ErrNoIndex, name, t.Name)
}

func (t *EntityType) Indexes() []*schema.Index {
	return t.indexes
}

// Counter returns the named counter, or constants.ErrNoCounter.
func (t *EntityType) Counter(name string) (*schema.Counter, error) {
	if c, ok := t.counterByName[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s on %s", constants.ErrNoCounter, name, t.Name)
}

func (t *EntityType) Counters() []*schema.Counter {
	return t.counters
}

func (t *EntityType) Fulltext() *schema.Fulltext {
	return t.fulltext
}

func (t *EntityType) HasOne(name string) (HasOne, bool) {
	for _, h := range t.hasOne {
		if h.Name == name {
			return h, true
		}
	}
	return HasOne{}, false
}

func (t *EntityType) HasOnes() []HasOne {
	return t.hasOne
}

func (t *EntityType) HasMany(name string) (HasMany, bool) {
	for _, h := range t.hasMany {
		if h.Name == name {
			return h, true
		}
	}
	return HasMany{}, false
}

func (t *EntityType) HasManys() []HasMany {
	return t.hasMany
}

func (t *EntityType) Hooks() *Hooks {
	return &t.hooks
}

func (t *EntityType) Validators() []Validator {
	return t.validators
}

// Document renders the schema published for this type.
func (t *EntityType) Document() *schema.Document {
	return schema.NewDocument(t.attributes, t.indexes, t.counters, t.fulltext)
}

// New returns an unsaved entity of this type. No hooks run.
func (t *EntityType) New() *Entity {
	return &Entity{
		t:      t,
		values: make(map[string]any, len(t.attributes)),
		dirty:  make(map[string]struct{}),
	}
}

func (t *EntityType) addAttribute(a *schema.Attribute) {
	if _, ok := t.attrByName[a.Name]; ok {
		for i, old := range t.attributes {
			if old.Name == a.Name {
				t.attributes[i] = a
			}
		}
	} else {
		t.attributes = append(t.attributes, a)
	}
	t.attrByName[a.Name] = a
}

func (t *EntityType) addIndex(idx *schema.Index) {
	if _, ok := t.indexByName[idx.Name]; ok {
		for i, old := range t.indexes {
			if old.Name == idx.Name {
				t.indexes[i] = idx
			}
		}
	} else {
		t.indexes = append(t.indexes, idx)
	}
	t.indexByName[idx.Name] = idx
}

func (t *EntityType) addCounter(c *schema.Counter) {
	if _, ok := t.counterByName[c.Name]; ok {
		for i, old := range t.counters {
			if old.Name == c.Name {
				t.counters[i] = c
			}
		}
	} else {
		t.counters = append(t.counters, c)
	}
	t.counterByName[c.Name] = c
}
