package schema

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/st9db/st9.go/pkg/constants"
)

// timestampInputLayouts are tried in order when a timestamp arrives as text.
// Layouts without a zone are read as UTC.
var timestampInputLayouts = []string{
	constants.TimestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// number is satisfied by json.Number from both encoding/json and go-json.
type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}

// Coerce converts raw into the canonical in-memory value for t.
func Coerce(t Type, raw any) (any, error) {
	return (&Attribute{Name: string(t), Type: t}).Coerce(raw)
}

// ToWire encodes v for the transport according to t.
func ToWire(t Type, v any) (any, error) {
	return (&Attribute{Name: string(t), Type: t}).ToWire(v)
}

// FromWire decodes a transport value according to t.
func FromWire(t Type, w any) (any, error) {
	return (&Attribute{Name: string(t), Type: t}).FromWire(w)
}

// Validate reports whether v is an acceptable canonical value for t.
func Validate(t Type, v any) bool {
	return (&Attribute{Name: string(t), Type: t}).Validate(v)
}

// Coerce converts a caller supplied value into the canonical in-memory
// representation of the attribute. Values that cannot be represented fail
// with constants.ErrInvalidValue; nothing is silently defaulted.
func (a *Attribute) Coerce(raw any) (any, error) {
	raw, isNil := deref(raw)
	if isNil {
		return nil, nil
	}
	if a.Serialized {
		return a.coerceCollection(raw)
	}

	switch a.Type {
	case Boolean:
		return a.coerceBool(raw)
	case Int32:
		return a.coerceInt32(raw)
	case Timestamp:
		return a.coerceTime(raw)
	case Enum:
		s, ok := textOf(raw)
		if !ok || !a.allows(s) {
			return nil, a.invalid(raw)
		}
		return s, nil
	case Reference:
		s, ok := raw.(string)
		if !ok {
			return nil, a.invalid(raw)
		}
		if s == "" {
			return nil, nil
		}
		return s, nil
	case Array:
		return a.coerceArray(raw)
	default:
		return a.coerceString(raw)
	}
}

// ToWire coerces v and encodes it for the transport. Timestamps are always
// rendered in UTC with constants.TimestampLayout, serialized collections as
// JSON text.
func (a *Attribute) ToWire(v any) (any, error) {
	c, err := a.Coerce(v)
	if err != nil || c == nil {
		return nil, err
	}
	if a.Serialized {
		b, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", constants.ErrInvalidValue, err)
		}
		return string(b), nil
	}
	if a.Type == Timestamp {
		return c.(time.Time).Format(constants.TimestampLayout), nil
	}
	return c, nil
}

// FromWire is the inverse of ToWire.
func (a *Attribute) FromWire(w any) (any, error) {
	w, isNil := deref(w)
	if isNil {
		return nil, nil
	}
	if a.Serialized {
		return a.decodeCollection(w)
	}

	switch a.Type {
	case Boolean:
		switch v := w.(type) {
		case bool:
			return v, nil
		case string:
			return v == "true", nil
		}
		return a.coerceBool(w)
	case Int32:
		return a.coerceInt32(w)
	case Timestamp:
		return a.coerceTime(w)
	case Array:
		if list, ok := w.([]any); ok {
			return list, nil
		}
		if kind := reflect.ValueOf(w).Kind(); kind == reflect.Slice || kind == reflect.Array {
			return a.coerceArray(w)
		}
		return []any{w}, nil
	default:
		if s, ok := w.(string); ok {
			return s, nil
		}
		return a.coerceString(w)
	}
}

// Validate reports whether v is already in canonical form for the attribute.
func (a *Attribute) Validate(v any) bool {
	if v == nil {
		return true
	}
	if a.Serialized {
		switch v.(type) {
		case map[string]any, []any:
			return true
		}
		return false
	}

	switch a.Type {
	case Boolean:
		_, ok := v.(bool)
		return ok
	case Int32:
		_, ok := v.(int32)
		return ok
	case Timestamp:
		t, ok := v.(time.Time)
		return ok && t.Location() == time.UTC
	case Enum:
		s, ok := v.(string)
		return ok && a.allows(s)
	case Array:
		_, ok := v.([]any)
		return ok
	default:
		_, ok := v.(string)
		return ok
	}
}

func (a *Attribute) invalid(raw any) error {
	return fmt.Errorf("%w: %#v (%T) for %s", constants.ErrInvalidValue, raw, raw, a)
}

// coerceBool accepts exactly nil, true/false, "true"/"false", "0"/"1" and
// the numbers 0 and 1.
func (a *Attribute) coerceBool(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch v {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return nil, a.invalid(raw)
	}
	if n, ok := integral(raw); ok {
		switch n {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	}
	return nil, a.invalid(raw)
}

func (a *Attribute) coerceInt32(raw any) (any, error) {
	if s, ok := raw.(string); ok {
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, a.invalid(raw)
		}
		return int32(n), nil
	}
	n, ok := integral(raw)
	if !ok || n < math.MinInt32 || n > math.MaxInt32 {
		return nil, a.invalid(raw)
	}
	return int32(n), nil
}

func (a *Attribute) coerceTime(raw any) (any, error) {
	switch v := raw.(type) {
	case time.Time:
		return normalizeTime(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		if isDigits(s) {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, a.invalid(raw)
			}
			return time.Unix(n, 0).UTC(), nil
		}
		for _, layout := range timestampInputLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return normalizeTime(t), nil
			}
		}
		return nil, a.invalid(raw)
	}
	if n, ok := integral(raw); ok {
		return time.Unix(n, 0).UTC(), nil
	}
	return nil, a.invalid(raw)
}

func (a *Attribute) coerceString(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	}
	return nil, a.invalid(raw)
}

func (a *Attribute) coerceArray(raw any) (any, error) {
	if list, ok := raw.([]any); ok {
		return list, nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, a.invalid(raw)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// coerceCollection normalizes maps and slices through JSON so the in-memory
// value is exactly what a later FromWire would produce.
func (a *Attribute) coerceCollection(raw any) (any, error) {
	switch reflect.ValueOf(raw).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
	default:
		return nil, fmt.Errorf("%w: only arrays or objects are allowed for serialized attribute %s", constants.ErrInvalidValue, a.Name)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", constants.ErrInvalidValue, err)
	}
	return a.decodeCollection(string(b))
}

func (a *Attribute) decodeCollection(w any) (any, error) {
	s, ok := w.(string)
	if !ok {
		return a.coerceCollection(w)
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("%w: %s holds malformed JSON: %s", constants.ErrInvalidValue, a.Name, err)
	}
	switch out.(type) {
	case map[string]any, []any:
		return out, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: serialized attribute %s must hold an array or object", constants.ErrInvalidValue, a.Name)
}

// deref unwraps pointers and reports whether the value is nil.
func deref(v any) (any, bool) {
	if v == nil {
		return nil, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, true
		}
		return deref(rv.Elem().Interface())
	case reflect.Map, reflect.Slice, reflect.Interface:
		if rv.IsNil() {
			return nil, true
		}
	}
	return v, false
}

// integral extracts a whole number from any numeric representation.
func integral(v any) (int64, bool) {
	if n, ok := v.(number); ok {
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case reflect.Float32, reflect.Float64:
		return floatToInt(rv.Float())
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func textOf(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
