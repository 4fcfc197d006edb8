package models

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/schema"
)

const (
	CreatedAt = "created_at"
	UpdatedAt = "updated_at"
)

// TypeSpec declares an entity type. Hooks and validators can only be set
// from code; everything else can also be loaded from YAML.
type TypeSpec struct {
	Name string `yaml:"name"`
	// Namespace is prepended to Name with a dash ("admin" + "user" -> "admin-user").
	Namespace string `yaml:"namespace,omitempty"`
	// Parent is the registered type this one extends.
	Parent        string               `yaml:"parent,omitempty"`
	Attributes    []schema.Attribute   `yaml:"attributes,omitempty"`
	Indexes       []schema.IndexSpec   `yaml:"indexes,omitempty"`
	Counters      []schema.CounterSpec `yaml:"counters,omitempty"`
	Fulltext      *schema.FulltextSpec `yaml:"fulltext,omitempty"`
	HasOne        []HasOne             `yaml:"has_one,omitempty"`
	HasMany       []HasMany            `yaml:"has_many,omitempty"`
	Quarantinable bool                 `yaml:"quarantinable,omitempty"`
	Timestamps    bool                 `yaml:"timestamps,omitempty"`
	Hooks         Hooks                `yaml:"-"`
	Validators    []Validator          `yaml:"-"`
}

// FullName is the registered name of the type.
func (s *TypeSpec) FullName() string {
	if s.Namespace == "" {
		return s.Name
	}
	return s.Namespace + "-" + s.Name
}

// Registry maps type names to descriptors. It replaces runtime name to class
// resolution for the serializer and polymorphic relations.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*EntityType
	order []*EntityType
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*EntityType)}
}

// Register composes spec over its parent and stores the result. Every index,
// counter and fulltext field must resolve to a declared attribute.
func (r *Registry) Register(spec TypeSpec) (*EntityType, error) {
	name := spec.FullName()
	if name == "" {
		return nil, fmt.Errorf("%w: type without a name", constants.ErrInvalidSchema)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.types[name]; ok {
		return nil, fmt.Errorf("%w: type %s is already registered", constants.ErrInvalidSchema, name)
	}

	t := &EntityType{
		Name:          name,
		attrByName:    make(map[string]*schema.Attribute),
		indexByName:   make(map[string]*schema.Index),
		counterByName: make(map[string]*schema.Counter),
	}

	if spec.Parent != "" {
		parent, ok := r.types[spec.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: parent %s of %s is not registered", constants.ErrInvalidSchema, spec.Parent, name)
		}
		inherit(t, parent)
	}

	t.Quarantinable = t.Quarantinable || spec.Quarantinable
	t.Timestamps = t.Timestamps || spec.Timestamps
	t.hooks = t.hooks.merge(spec.Hooks)
	t.validators = append(append([]Validator{}, t.validators...), spec.Validators...)

	if t.Timestamps {
		for _, n := range []string{CreatedAt, UpdatedAt} {
			if _, ok := t.attrByName[n]; !ok {
				t.addAttribute(&schema.Attribute{Name: n, Type: schema.Timestamp, Nullable: true})
			}
		}
	}

	for i := range spec.Attributes {
		a := spec.Attributes[i]
		if err := a.Check(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		t.addAttribute(&a)
	}

	for _, h := range spec.HasOne {
		if h.Name == "" {
			return nil, fmt.Errorf("%w: has_one without a name on %s", constants.ErrInvalidSchema, name)
		}
		fk := h.ForeignKey()
		t.addAttribute(&schema.Attribute{Name: fk, Type: schema.Reference, Nullable: h.Nullable})
		idx, err := schema.NewIndex(schema.IndexSpec{Name: fk, Fields: []string{fk}, Sort: schema.Desc}, t.Attribute)
		if err != nil {
			return nil, err
		}
		t.addIndex(idx)
		t.hasOne = replaceHasOne(t.hasOne, h)
	}

	for _, is := range spec.Indexes {
		idx, err := schema.NewIndex(is, t.Attribute)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		t.addIndex(idx)
	}

	for _, cs := range spec.Counters {
		c, err := schema.NewCounter(cs, t.Attribute)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		t.addCounter(c)
	}

	if spec.Fulltext != nil {
		ft, err := schema.NewFulltext(*spec.Fulltext, t.Attribute)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if t.fulltext != nil && !t.fulltext.SameFields(ft) {
			return nil, fmt.Errorf("%w: %s redeclares fulltext with different fields", constants.ErrInvalidIndex, name)
		}
		t.fulltext = ft
	}

	for _, h := range spec.HasMany {
		if err := h.normalize(name); err != nil {
			return nil, err
		}
		t.hasMany = replaceHasMany(t.hasMany, h)
	}

	r.types[name] = t
	r.order = append(r.order, t)
	return t, nil
}

// MustRegister is Register for package level declarations.
func (r *Registry) MustRegister(spec TypeSpec) *EntityType {
	t, err := r.Register(spec)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup resolves a wire type name.
func (r *Registry) Lookup(name string) (*EntityType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.types[name]; ok {
		return t, nil
	}
	return nil, &constants.InvalidKindError{Kind: name}
}

// TypeOfID resolves the type named by a db id prefix.
func (r *Registry) TypeOfID(dbID string) (*EntityType, error) {
	rid, err := ParseRecordID(dbID)
	if err != nil {
		return nil, err
	}
	return r.Lookup(rid.Type)
}

// Types lists registered types in registration order.
func (r *Registry) Types() []*EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*EntityType{}, r.order...)
}

// RegisterAll registers specs in order, stopping at the first failure.
func (r *Registry) RegisterAll(specs []TypeSpec) ([]*EntityType, error) {
	out := make([]*EntityType, 0, len(specs))
	for _, s := range specs {
		t, err := r.Register(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

type typeFile struct {
	Types []TypeSpec `yaml:"types"`
}

// LoadTypeSpecs reads type declarations from a YAML document with a
// top-level "types" list.
func LoadTypeSpecs(r io.Reader) ([]TypeSpec, error) {
	var f typeFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", constants.ErrInvalidSchema, err)
	}
	for i := range f.Types {
		f.Types[i].Name = strings.TrimSpace(f.Types[i].Name)
	}
	return f.Types, nil
}

// LoadTypeSpecsFile is LoadTypeSpecs over a file path.
func LoadTypeSpecsFile(path string) ([]TypeSpec, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return LoadTypeSpecs(fh)
}

func inherit(t, parent *EntityType) {
	t.Parent = parent
	t.Quarantinable = parent.Quarantinable
	t.Timestamps = parent.Timestamps
	for _, a := range parent.attributes {
		t.addAttribute(a)
	}
	for _, idx := range parent.indexes {
		t.addIndex(idx)
	}
	for _, c := range parent.counters {
		t.addCounter(c)
	}
	t.fulltext = parent.fulltext
	t.hasOne = append([]HasOne{}, parent.hasOne...)
	t.hasMany = append([]HasMany{}, parent.hasMany...)
	t.hooks = Hooks{}.merge(parent.hooks)
	t.validators = append([]Validator{}, parent.validators...)
}

func replaceHasOne(list []HasOne, h HasOne) []HasOne {
	for i := range list {
		if list[i].Name == h.Name {
			list[i] = h
			return list
		}
	}
	return append(list, h)
}

func replaceHasMany(list []HasMany, h HasMany) []HasMany {
	for i := range list {
		if list[i].Name == h.Name {
			list[i] = h
			return list
		}
	}
	return append(list, h)
}
