package models

import (
	"fmt"
	"strings"

	"github.com/st9db/st9.go/pkg/constants"
)

// Cascade selects what happens to has-many children when the owner is
// destroyed.
type Cascade string

const (
	// CascadeDelete removes children by id without loading them.
	CascadeDelete Cascade = "delete"
	// CascadeDestroy loads every child and runs its own Destroy, hooks and
	// cascades included.
	CascadeDestroy Cascade = "destroy"
)

// HasOne stores the db id of another entity in the "<name>_id" attribute.
type HasOne struct {
	Name string `yaml:"name" toml:"name"`
	// Kind is the target type name. Defaults to Name.
	Kind string `yaml:"kind,omitempty" toml:"kind,omitempty"`
	// Polymorphic targets are resolved from the type prefix of the stored id.
	Polymorphic bool `yaml:"polymorphic,omitempty" toml:"polymorphic,omitempty"`
	Nullable    bool `yaml:"nullable,omitempty" toml:"nullable,omitempty"`
}

func (h HasOne) ForeignKey() string {
	return h.Name + "_id"
}

// TargetKind is the declared target type name.
func (h HasOne) TargetKind() string {
	if h.Kind != "" {
		return h.Kind
	}
	return h.Name
}

// HasMany is a virtual collection resolved through the index named after
// ForeignKey on the child type.
type HasMany struct {
	Name string `yaml:"name" toml:"name"`
	// Kind is the child type. Defaults to Name without a trailing "s".
	Kind string `yaml:"kind,omitempty" toml:"kind,omitempty"`
	// ForeignKey defaults to "<owner>_id" using the owner's simple name.
	ForeignKey string `yaml:"foreign_key,omitempty" toml:"foreign_key,omitempty"`
	// Through names an intermediate type holding ForeignKey; the collection is
	// then the Target has-one of every intermediate entity.
	Through string `yaml:"through,omitempty" toml:"through,omitempty"`
	// Target defaults to Kind.
	Target    string  `yaml:"target,omitempty" toml:"target,omitempty"`
	Dependent Cascade `yaml:"dependent,omitempty" toml:"dependent,omitempty"`
}

// QueryKind is the type whose foreign key index is scanned.
func (h HasMany) QueryKind() string {
	if h.Through != "" {
		return h.Through
	}
	return h.Kind
}

func (h *HasMany) normalize(owner string) error {
	if h.Name == "" {
		return fmt.Errorf("%w: has_many without a name on %s", constants.ErrInvalidSchema, owner)
	}
	if h.Kind == "" {
		h.Kind = strings.TrimSuffix(h.Name, "s")
	}
	if h.ForeignKey == "" {
		h.ForeignKey = SimpleName(owner) + "_id"
	}
	if h.Through != "" && h.Target == "" {
		h.Target = h.Kind
	}
	switch h.Dependent {
	case "":
		h.Dependent = CascadeDelete
	case CascadeDelete, CascadeDestroy:
	default:
		return fmt.Errorf("%w: unknown dependent option %q on %s.%s", constants.ErrInvalidSchema, h.Dependent, owner, h.Name)
	}
	return nil
}

// SimpleName strips any namespace from a type name ("admin-user" -> "user").
func SimpleName(name string) string {
	if i := strings.LastIndexByte(name, '-'); i >= 0 {
		return name[i+1:]
	}
	return name
}
