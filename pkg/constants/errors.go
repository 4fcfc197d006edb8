package constants

import (
	"errors"
	"fmt"
	"strings"
)

// Errors
var (
	ErrInvalidValue            = errors.New("invalid value assignment")
	ErrValidation              = errors.New("validation failed")
	ErrPersistence             = errors.New("call to datastore failed")
	ErrObsoleteVersion         = errors.New("obsolete version")
	ErrDuplicateKey            = errors.New("duplicate key")
	ErrInvalidClientRequest    = errors.New("invalid client request")
	ErrUnexpectedRemoteService = errors.New("unexpected remote service error")
	ErrNotFound                = errors.New("not found")
	ErrInvalidFindableID       = errors.New("invalid findable id")
	ErrInvalidKind             = errors.New("invalid kind")
	ErrInvalidAssociation      = errors.New("invalid association")
	ErrCascade                 = errors.New("cascading operation attempted; set allow_cascades in the configuration to enable")
	ErrNoIndex                 = errors.New("no index defined")
	ErrNoCounter               = errors.New("no counter defined")
	ErrNonUniqueIndex          = errors.New("index is not unique")
	ErrInvalidIndex            = errors.New("invalid index")
	ErrInvalidCounter          = errors.New("invalid counter")
	ErrInvalidSchema           = errors.New("invalid schema")
	ErrQuarantine              = errors.New("quarantine failed")
	ErrNotStaticAttribute      = errors.New("not a declared attribute")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrNukeDisabled            = errors.New("nuke is disabled on this instance")
)

var (
	ErrNoBaseURL       = errors.New("base url not set")
	ErrUnknownRelation = errors.New("unknown relation")
)

// PersistenceError is returned when the store answers a write or lookup with a
// non-2xx status. Kind is one of the persistence sentinels above and is what
// errors.Is matches against.
type PersistenceError struct {
	Kind   error
	Status int
	Body   string
}

func (e *PersistenceError) Error() string {
	kind := e.Kind
	if kind == nil {
		kind = ErrPersistence
	}
	return fmt.Sprintf("%s: server returned %q (%d)", kind, e.Body, e.Status)
}

func (e *PersistenceError) Unwrap() []error {
	if e.Kind == nil || e.Kind == ErrPersistence {
		return []error{ErrPersistence}
	}
	return []error{e.Kind, ErrPersistence}
}

// ValidationError lists the messages of every failed validator.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("object could not be saved since [%s]", strings.Join(e.Errors, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// InvalidKindError is returned when a wire type/kind discriminator does not
// resolve to a registered entity type.
type InvalidKindError struct {
	Kind string
}

func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("kind %q is not a known or valid type; maybe your type definitions do not match your database?", e.Kind)
}

func (e *InvalidKindError) Unwrap() error {
	return ErrInvalidKind
}

type InvalidAssociationError struct {
	Got  string
	Want string
}

func (e *InvalidAssociationError) Error() string {
	return fmt.Sprintf("tried to associate a %s when we expected %s", e.Got, e.Want)
}

func (e *InvalidAssociationError) Unwrap() error {
	return ErrInvalidAssociation
}

type QuarantineError struct {
	Status int
	Body   string
}

func (e *QuarantineError) Error() string {
	return fmt.Sprintf("%s: server returned %q (%d)", ErrQuarantine, e.Body, e.Status)
}

func (e *QuarantineError) Unwrap() error {
	return ErrQuarantine
}
