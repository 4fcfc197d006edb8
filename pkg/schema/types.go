// Package schema is the single source of truth for ST9 attribute type
// semantics: it coerces caller values into their canonical in-memory form,
// encodes them for the wire, decodes wire values, and describes the
// indexes, counters and fulltext definitions published for an entity type.
//
// Canonical in-memory values per type:
//
//	boolean           bool
//	utf8_smallstring  string
//	utf8_text         string
//	i32               int32
//	utc_date_secs     time.Time (UTC, second precision)
//	enum              string (one of the declared values)
//	reference         string (a full db id such as "@user:0123456789abcdef")
//	array             []any
//
// Attributes flagged as serialized hold a map[string]any or []any in memory
// and travel as JSON text on the wire.
//
// nil is a legal value for every type and always round-trips as nil.
package schema

import (
	"fmt"
	"strings"

	"github.com/st9db/st9.go/pkg/constants"
)

// Type is the declared type of an attribute.
type Type string

const (
	Boolean     Type = "boolean"
	SmallString Type = "utf8_smallstring"
	Text        Type = "utf8_text"
	Int32       Type = "i32"
	Timestamp   Type = "utc_date_secs"
	Enum        Type = "enum"
	Reference   Type = "reference"
	Array       Type = "array"
)

var knownTypes = map[Type]bool{
	Boolean:     true,
	SmallString: true,
	Text:        true,
	Int32:       true,
	Timestamp:   true,
	Enum:        true,
	Reference:   true,
	Array:       true,
}

// Known reports whether t is one of the declared wire types.
func (t Type) Known() bool {
	return knownTypes[t]
}

// Tag returns the type name used in the published schema document.
func (t Type) Tag() string {
	return strings.ToUpper(string(t))
}

// Attribute describes a single declared attribute of an entity type.
// It is immutable once the owning type has been registered.
type Attribute struct {
	Name       string   `json:"name" yaml:"name" toml:"name"`
	Type       Type     `json:"type" yaml:"type" toml:"type"`
	Nullable   bool     `json:"nullable,omitempty" yaml:"nullable,omitempty" toml:"nullable,omitempty"`
	Values     []string `json:"values,omitempty" yaml:"values,omitempty" toml:"values,omitempty"`
	Serialized bool     `json:"serialized,omitempty" yaml:"serialized,omitempty" toml:"serialized,omitempty"`
}

// IDAttribute is the synthetic id field every index may reference.
var IDAttribute = &Attribute{Name: "id", Type: Reference}

func (a *Attribute) String() string {
	return fmt.Sprintf("%s:%s", a.Name, a.Type)
}

// Check verifies that the declaration itself is usable.
func (a *Attribute) Check() error {
	if a.Name == "" {
		return fmt.Errorf("%w: attribute without a name", constants.ErrInvalidSchema)
	}
	if a.Type == "" {
		a.Type = SmallString
	}
	if a.Type == Enum && len(a.Values) == 0 {
		return fmt.Errorf("%w: enum %s declares no values", constants.ErrInvalidSchema, a.Name)
	}
	if a.Serialized && a.Type != SmallString && a.Type != Text {
		return fmt.Errorf("%w: serialized attribute %s must be a string type", constants.ErrInvalidSchema, a.Name)
	}
	return nil
}

func (a *Attribute) allows(value string) bool {
	if len(a.Values) == 0 {
		return true
	}
	for _, v := range a.Values {
		if v == value {
			return true
		}
	}
	return false
}
