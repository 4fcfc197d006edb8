// Package query encodes index lookups and counter reads into the query
// strings the store accepts.
//
// An index query looks like
//
//	.by_count?q=count+eq+500+and+id+lt+%22%40widget%3A...%22
//
// where the expression joins "field op value" terms with "and". Strings are
// double quoted with backslashes and quotes escaped, numbers are bare,
// booleans are true/false and nil is null. Lists render as "(a,b,c)".
package query

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/st9db/st9.go/pkg/constants"
	"github.com/st9db/st9.go/pkg/schema"
)

type Op string

const (
	OpEq Op = "eq"
	OpNe Op = "ne"
	OpGt Op = "gt"
	OpGe Op = "ge"
	OpLt Op = "lt"
	OpLe Op = "le"
	OpIn Op = "in"
)

var knownOps = map[Op]bool{OpEq: true, OpNe: true, OpGt: true, OpGe: true, OpLt: true, OpLe: true, OpIn: true}

// Cond is one "field op value" term.
type Cond struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Cond { return Cond{Field: field, Op: OpEq, Value: v} }
func Ne(field string, v any) Cond { return Cond{Field: field, Op: OpNe, Value: v} }
func Gt(field string, v any) Cond { return Cond{Field: field, Op: OpGt, Value: v} }
func Ge(field string, v any) Cond { return Cond{Field: field, Op: OpGe, Value: v} }
func Lt(field string, v any) Cond { return Cond{Field: field, Op: OpLt, Value: v} }
func Le(field string, v any) Cond { return Cond{Field: field, Op: OpLe, Value: v} }

// In matches any of vs.
func In(field string, vs ...any) Cond { return Cond{Field: field, Op: OpIn, Value: vs} }

// Conditions is the input of FindQuery.
type Conditions interface {
	conds(idx *schema.Index) ([]Cond, error)
}

// Values binds positionally to the index's declared fields with eq.
type Values []any

func (v Values) conds(idx *schema.Index) ([]Cond, error) {
	fields := idx.QueryFields()
	if len(v) > len(fields) {
		return nil, fmt.Errorf("%w: %d values for %d fields of index %s", constants.ErrInvalidArgument, len(v), len(fields), idx.Name)
	}
	out := make([]Cond, len(v))
	for i, val := range v {
		out[i] = Cond{Field: fields[i].Name, Op: OpEq, Value: val}
	}
	return out, nil
}

// Fields maps "field.op" (or a bare "field") to a value. A bare field means
// eq, or in when the value is a list. Terms are emitted in sorted key order.
type Fields map[string]any

func (f Fields) conds(*schema.Index) ([]Cond, error) {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Cond, 0, len(keys))
	for _, k := range keys {
		field, op, _ := strings.Cut(k, ".")
		c := Cond{Field: field, Op: Op(op), Value: f[k]}
		if c.Op == "" {
			c.Op = OpEq
			if isList(c.Value) {
				c.Op = OpIn
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// Where keeps its terms in the given order.
type Where []Cond

func (w Where) conds(*schema.Index) ([]Cond, error) {
	return w, nil
}

// FindQuery renders the index part of an index scan or unique lookup path.
func FindQuery(idx *schema.Index, c Conditions) (string, error) {
	if c == nil {
		c = Values{}
	}
	conds, err := c.conds(idx)
	if err != nil {
		return "", err
	}

	terms := make([]string, 0, len(conds))
	for _, cond := range conds {
		term, err := encodeCond(idx, cond)
		if err != nil {
			return "", err
		}
		terms = append(terms, term)
	}
	return "." + idx.Name + "?q=" + url.QueryEscape(strings.Join(terms, " and ")), nil
}

// CountQuery renders the counter part of a counter path. Values are bound to
// the counter's fields in order.
func CountQuery(c *schema.Counter, vals ...any) (string, error) {
	cols := c.Columns()
	if len(vals) > len(cols) {
		return "", fmt.Errorf("%w: %d values for %d fields of counter %s", constants.ErrInvalidArgument, len(vals), len(cols), c.Name)
	}
	var b strings.Builder
	b.WriteString(".")
	b.WriteString(c.Name)
	for i, v := range vals {
		w, err := cols[i].ToWire(v)
		if err != nil {
			return "", err
		}
		b.WriteString("/")
		b.WriteString(url.QueryEscape(plain(w)))
	}
	return b.String(), nil
}

func encodeCond(idx *schema.Index, c Cond) (string, error) {
	attr, ok := idx.Field(c.Field)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a field of index %s", constants.ErrNotStaticAttribute, c.Field, idx.Name)
	}
	if !knownOps[c.Op] {
		return "", fmt.Errorf("%w: unknown operator %q", constants.ErrInvalidArgument, c.Op)
	}

	if isList(c.Value) && attr.Type != schema.Array || c.Op == OpIn {
		if !isList(c.Value) {
			return "", fmt.Errorf("%w: %s.in needs a list", constants.ErrInvalidArgument, c.Field)
		}
		rv := reflect.ValueOf(c.Value)
		parts := make([]string, rv.Len())
		for i := range parts {
			q, err := encodeValue(attr, rv.Index(i).Interface())
			if err != nil {
				return "", err
			}
			parts[i] = q
		}
		return fmt.Sprintf("%s %s (%s)", c.Field, c.Op, strings.Join(parts, ",")), nil
	}

	q, err := encodeValue(attr, c.Value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, q), nil
}

func encodeValue(attr *schema.Attribute, v any) (string, error) {
	w, err := attr.ToWire(v)
	if err != nil {
		return "", err
	}
	return Quote(w)
}

// Quote renders a wire value as a literal of the query language.
func Quote(w any) (string, error) {
	switch v := w.(type) {
	case nil:
		return "null", nil
	case string:
		return `"` + quoteString(v) + `"`, nil
	case bool:
		return strconv.FormatBool(v), nil
	case fmt.Stringer:
		return `"` + quoteString(v.String()) + `"`, nil
	}

	rv := reflect.ValueOf(w)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	case reflect.String:
		return `"` + quoteString(rv.String()) + `"`, nil
	}
	return "", fmt.Errorf("%w: cannot quote %T", constants.ErrInvalidValue, w)
}

func quoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func plain(w any) string {
	if w == nil {
		return ""
	}
	return fmt.Sprint(w)
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		_, isBytes := v.([]byte)
		return !isBytes
	}
	return false
}
