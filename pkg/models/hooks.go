package models

import "context"

// Hook runs at a lifecycle point of an entity. A non-nil error aborts the
// operation that triggered it.
type Hook func(ctx context.Context, e *Entity) error

// Validator returns the problems it found with e. An error means the check
// itself could not run.
type Validator func(ctx context.Context, e *Entity) ([]string, error)

// Hooks groups lifecycle hooks. Subtypes run their parent's hooks first.
type Hooks struct {
	AfterFind       []Hook
	AfterInitialize []Hook
	BeforeSave      []Hook
	AfterSave       []Hook
	BeforeCreate    []Hook
	AfterCreate     []Hook
	BeforeUpdate    []Hook
	AfterUpdate     []Hook
	BeforeDestroy   []Hook
	AfterDestroy    []Hook
}

func (h Hooks) merge(own Hooks) Hooks {
	join := func(a, b []Hook) []Hook {
		return append(append([]Hook{}, a...), b...)
	}
	return Hooks{
		AfterFind:       join(h.AfterFind, own.AfterFind),
		AfterInitialize: join(h.AfterInitialize, own.AfterInitialize),
		BeforeSave:      join(h.BeforeSave, own.BeforeSave),
		AfterSave:       join(h.AfterSave, own.AfterSave),
		BeforeCreate:    join(h.BeforeCreate, own.BeforeCreate),
		AfterCreate:     join(h.AfterCreate, own.AfterCreate),
		BeforeUpdate:    join(h.BeforeUpdate, own.BeforeUpdate),
		AfterUpdate:     join(h.AfterUpdate, own.AfterUpdate),
		BeforeDestroy:   join(h.BeforeDestroy, own.BeforeDestroy),
		AfterDestroy:    join(h.AfterDestroy, own.AfterDestroy),
	}
}

// Run calls hooks in order and stops at the first error.
func Run(ctx context.Context, hooks []Hook, e *Entity) error {
	for _, h := range hooks {
		if err := h(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
