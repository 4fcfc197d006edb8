package schema

import (
	"fmt"
	"strings"

	"github.com/st9db/st9.go/pkg/constants"
)

// Sort is the direction of an index or counter.
type Sort string

const (
	Asc  Sort = "asc"
	Desc Sort = "desc"
)

func (s Sort) valid() bool {
	return s == Asc || s == Desc
}

// Lookup resolves a declared attribute by name.
type Lookup func(name string) (*Attribute, bool)

// IndexSpec declares a secondary index.
type IndexSpec struct {
	Name      string   `json:"name" yaml:"name" toml:"name"`
	Fields    []string `json:"fields" yaml:"fields" toml:"fields"`
	Sort      Sort     `json:"sort" yaml:"sort" toml:"sort"`
	Unique    bool     `json:"unique,omitempty" yaml:"unique,omitempty" toml:"unique,omitempty"`
	Transform string   `json:"transform,omitempty" yaml:"transform,omitempty" toml:"transform,omitempty"`
}

// CounterSpec declares a server maintained counter.
type CounterSpec struct {
	Name   string   `json:"name" yaml:"name" toml:"name"`
	Fields []string `json:"fields" yaml:"fields" toml:"fields"`
	Sort   Sort     `json:"sort" yaml:"sort" toml:"sort"`
}

// FulltextSpec declares the single fulltext definition of a type.
type FulltextSpec struct {
	Fields                    []string `json:"fields" yaml:"fields" toml:"fields"`
	ParentType                string   `json:"parent_type,omitempty" yaml:"parent_type,omitempty" toml:"parent_type,omitempty"`
	ParentIdentifierAttribute string   `json:"parent_identifier_attribute,omitempty" yaml:"parent_identifier_attribute,omitempty" toml:"parent_identifier_attribute,omitempty"`
}

// Index is a checked index definition. Every field it references is a
// declared attribute or the synthetic id.
type Index struct {
	Name      string
	Sort      Sort
	Unique    bool
	Transform string

	declared []*Attribute
	columns  []*Attribute
}

// NewIndex checks spec against the attributes visible through lookup.
// Non-unique indexes get a trailing id column as a tiebreak, sorted like the
// index itself.
func NewIndex(spec IndexSpec, lookup Lookup) (*Index, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: index without a name", constants.ErrInvalidIndex)
	}
	if !spec.Sort.valid() {
		return nil, fmt.Errorf("%w: index %s needs a sort of asc or desc", constants.ErrInvalidIndex, spec.Name)
	}
	if spec.Name == constants.AllIndex {
		return nil, fmt.Errorf("%w: %q is reserved", constants.ErrInvalidIndex, spec.Name)
	}

	declared, err := resolveFields(spec.Name, spec.Fields, lookup)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		Name:      spec.Name,
		Sort:      spec.Sort,
		Unique:    spec.Unique,
		Transform: spec.Transform,
		declared:  declared,
		columns:   declared,
	}
	if !spec.Unique && !hasField(declared, IDAttribute.Name) {
		idx.columns = append(append([]*Attribute{}, declared...), IDAttribute)
	}
	return idx, nil
}

// Fields returns the column names including the id tiebreak.
func (i *Index) Fields() []string {
	return names(i.columns)
}

// QueryFields returns the declared fields in order, which is also the order
// positional query values bind to.
func (i *Index) QueryFields() []*Attribute {
	return i.declared
}

// Field finds a column by name, including the id tiebreak.
func (i *Index) Field(name string) (*Attribute, bool) {
	for _, a := range i.columns {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

func (i *Index) Doc() IndexDoc {
	cols := make([]ColumnDoc, len(i.columns))
	for n, a := range i.columns {
		cols[n] = ColumnDoc{Name: a.Name, Sort: strings.ToUpper(string(i.Sort)), Transform: i.Transform}
	}
	return IndexDoc{Name: i.Name, Unique: i.Unique, Cols: cols}
}

// Counter is a checked counter definition.
type Counter struct {
	Name string
	Sort Sort

	columns []*Attribute
}

func NewCounter(spec CounterSpec, lookup Lookup) (*Counter, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: counter without a name", constants.ErrInvalidCounter)
	}
	if !spec.Sort.valid() {
		return nil, fmt.Errorf("%w: counter %s needs a sort of asc or desc", constants.ErrInvalidCounter, spec.Name)
	}
	columns, err := resolveFields(spec.Name, spec.Fields, lookup)
	if err != nil {
		return nil, err
	}
	return &Counter{Name: spec.Name, Sort: spec.Sort, columns: columns}, nil
}

func (c *Counter) Fields() []string {
	return names(c.columns)
}

func (c *Counter) Columns() []*Attribute {
	return c.columns
}

func (c *Counter) Doc() CounterDoc {
	cols := make([]ColumnDoc, len(c.columns))
	for n, a := range c.columns {
		cols[n] = ColumnDoc{Name: a.Name, Sort: strings.ToUpper(string(c.Sort))}
	}
	return CounterDoc{Name: c.Name, Cols: cols}
}

// Fulltext is the fulltext definition of a type. Its name is always
// constants.FulltextName.
type Fulltext struct {
	ParentType                string
	ParentIdentifierAttribute string

	columns []*Attribute
}

func NewFulltext(spec FulltextSpec, lookup Lookup) (*Fulltext, error) {
	if len(spec.Fields) == 0 {
		return nil, fmt.Errorf("%w: fulltext needs at least one field", constants.ErrInvalidIndex)
	}
	columns, err := resolveFields(constants.FulltextName, spec.Fields, lookup)
	if err != nil {
		return nil, err
	}
	return &Fulltext{
		ParentType:                spec.ParentType,
		ParentIdentifierAttribute: spec.ParentIdentifierAttribute,
		columns:                   columns,
	}, nil
}

func (f *Fulltext) Name() string {
	return constants.FulltextName
}

func (f *Fulltext) Fields() []string {
	return names(f.columns)
}

// SameFields reports whether other covers exactly the same fields, in order.
func (f *Fulltext) SameFields(other *Fulltext) bool {
	a, b := f.Fields(), other.Fields()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (f *Fulltext) Doc() FulltextDoc {
	cols := make([]ColumnDoc, len(f.columns))
	for n, a := range f.columns {
		cols[n] = ColumnDoc{Name: a.Name}
	}
	return FulltextDoc{
		Name:                      constants.FulltextName,
		ParentType:                f.ParentType,
		ParentIdentifierAttribute: f.ParentIdentifierAttribute,
		Cols:                      cols,
	}
}

func resolveFields(owner string, fields []string, lookup Lookup) ([]*Attribute, error) {
	out := make([]*Attribute, 0, len(fields))
	for _, name := range fields {
		if name == IDAttribute.Name {
			out = append(out, IDAttribute)
			continue
		}
		a, ok := lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s references %s", constants.ErrNotStaticAttribute, owner, name)
		}
		out = append(out, a)
	}
	return out, nil
}

func hasField(attrs []*Attribute, name string) bool {
	for _, a := range attrs {
		if a.Name == name {
			return true
		}
	}
	return false
}

func names(attrs []*Attribute) []string {
	out := make([]string, len(attrs))
	for i, a := range attrs {
		out[i] = a.Name
	}
	return out
}
