// Package serializer converts entities to and from the JSON bodies the store
// speaks. Type dispatch on the way in goes through a models.Registry.
package serializer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"

	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/models"
)

const (
	// TypeField carries the subtype name of entities stored under a base type.
	TypeField = "type"
	// KindField is the server's name for the stored type.
	KindField    = "kind"
	IDField      = "id"
	VersionField = "version"
)

type Serializer struct {
	reg *models.Registry
}

func New(reg *models.Registry) *Serializer {
	return &Serializer{reg: reg}
}

// Serialize renders every declared attribute through its wire encoding. The
// version is included only when known, the type discriminator only for
// subtypes.
func (s *Serializer) Serialize(e *models.Entity) ([]byte, error) {
	t := e.Type()
	body := make(map[string]any, len(t.Attributes())+2)
	if v, ok := e.Version(); ok {
		body[VersionField] = v
	}
	for _, a := range t.Attributes() {
		w, err := a.ToWire(e.Get(a.Name))
		if err != nil {
			return nil, err
		}
		body[a.Name] = w
	}
	if t.IsSubtype() {
		body[TypeField] = t.Name
	}
	return json.Marshal(body)
}

// Deserialize materializes one entity. After-find and after-initialize hooks
// run unless deferHooks is set.
func (s *Serializer) Deserialize(ctx context.Context, data []byte, deferHooks bool) (*models.Entity, error) {
	kind := discriminator(data)
	t, err := s.reg.Lookup(kind)
	if err != nil {
		return nil, err
	}

	raw := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: malformed entity body: %s", constants.ErrPersistence, err)
	}

	var (
		id      string
		version *int64
		values  = make(map[string]any, len(t.Attributes()))
		extra   map[string]any
	)
	for k, w := range raw {
		switch k {
		case TypeField, KindField:
			continue
		case IDField:
			id, _ = w.(string)
			continue
		case VersionField:
			if n, ok := w.(json.Number); ok {
				if v, err := n.Int64(); err == nil {
					version = &v
				}
			}
			continue
		}
		a, ok := t.Attribute(k)
		if !ok {
			if extra == nil {
				extra = make(map[string]any)
			}
			extra[k] = w
			continue
		}
		v, err := a.FromWire(w)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name, k, err)
		}
		values[k] = v
	}

	e := models.Materialize(t, id, version, values, extra)
	if !deferHooks {
		if err := models.Run(ctx, t.Hooks().AfterFind, e); err != nil {
			return nil, err
		}
		if err := models.Run(ctx, t.Hooks().AfterInitialize, e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Each walks a multi-get body (an object of id to entity or null) in
// document order. Holes are reported as nil entities.
func (s *Serializer) Each(ctx context.Context, data []byte, deferHooks bool, fn func(id string, e *models.Entity) error) error {
	var inner error
	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		id := string(key)
		if dataType != jsonparser.Object {
			inner = fn(id, nil)
			return inner
		}
		e, err := s.Deserialize(ctx, value, deferHooks)
		if err != nil {
			inner = err
			return err
		}
		inner = fn(id, e)
		return inner
	})
	if inner != nil {
		return inner
	}
	if err != nil {
		return fmt.Errorf("%w: malformed multi-get body: %s", constants.ErrPersistence, err)
	}
	return nil
}

// DeserializeMulti returns the entities of a multi-get body in document
// order. With collapse the holes are dropped, otherwise they stay as nils so
// the result lines up with the requested ids.
func (s *Serializer) DeserializeMulti(ctx context.Context, data []byte, collapse, deferHooks bool) ([]*models.Entity, error) {
	var out []*models.Entity
	err := s.Each(ctx, data, deferHooks, func(_ string, e *models.Entity) error {
		if e != nil || !collapse {
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// DeserializeMap keys the entities of a multi-get body by id. Holes are
// present with a nil value.
func (s *Serializer) DeserializeMap(ctx context.Context, data []byte, deferHooks bool) (map[string]*models.Entity, error) {
	out := make(map[string]*models.Entity)
	err := s.Each(ctx, data, deferHooks, func(id string, e *models.Entity) error {
		out[id] = e
		return nil
	})
	return out, err
}

func discriminator(data []byte) string {
	if v, err := jsonparser.GetString(data, TypeField); err == nil && v != "" {
		return v
	}
	v, _ := jsonparser.GetString(data, KindField)
	return v
}
