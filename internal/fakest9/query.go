package fakest9

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// term is one "field op value" clause of an index query.
type term struct {
	field string
	op    string
	value any
}

// parseQuery reads the q parameter of index and unique lookups:
// terms joined by "and", values being quoted strings, null, booleans,
// numbers or parenthesized lists of those.
func parseQuery(q string) ([]term, error) {
	p := &parser{s: q}
	var out []term
	for {
		p.skipSpace()
		if p.done() {
			return out, nil
		}
		if len(out) > 0 {
			if w := p.word(); w != "and" {
				return nil, fmt.Errorf("expected and at %d, got %q", p.pos, w)
			}
			p.skipSpace()
		}
		field := p.word()
		p.skipSpace()
		op := p.word()
		p.skipSpace()
		if field == "" || op == "" {
			return nil, fmt.Errorf("malformed term at %d", p.pos)
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, term{field: field, op: op, value: v})
	}
}

type parser struct {
	s   string
	pos int
}

func (p *parser) done() bool {
	return p.pos >= len(p.s)
}

func (p *parser) skipSpace() {
	for !p.done() && p.s[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) word() string {
	start := p.pos
	for !p.done() {
		c := p.s[p.pos]
		if c == ' ' || c == ',' || c == '(' || c == ')' || c == '"' {
			break
		}
		p.pos++
	}
	return p.s[start:p.pos]
}

func (p *parser) value() (any, error) {
	if p.done() {
		return nil, fmt.Errorf("missing value at %d", p.pos)
	}
	switch p.s[p.pos] {
	case '"':
		return p.quoted()
	case '(':
		p.pos++
		var list []any
		for {
			p.skipSpace()
			v, err := p.value()
			if err != nil {
				return nil, err
			}
			list = append(list, v)
			p.skipSpace()
			if p.done() {
				return nil, fmt.Errorf("unterminated list")
			}
			c := p.s[p.pos]
			p.pos++
			if c == ')' {
				return list, nil
			}
			if c != ',' {
				return nil, fmt.Errorf("unexpected %q in list", c)
			}
		}
	}

	lit := p.word()
	switch lit {
	case "null":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if _, err := strconv.ParseFloat(lit, 64); err != nil {
		return nil, fmt.Errorf("bad literal %q", lit)
	}
	return json.Number(lit), nil
}

func (p *parser) quoted() (string, error) {
	var b strings.Builder
	p.pos++
	for !p.done() {
		c := p.s[p.pos]
		p.pos++
		switch c {
		case '\\':
			if p.done() {
				return "", fmt.Errorf("dangling escape")
			}
			b.WriteByte(p.s[p.pos])
			p.pos++
		case '"':
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
	return "", fmt.Errorf("unterminated string")
}

func (t term) matches(v any) bool {
	if list, ok := v.([]any); ok {
		for _, el := range list {
			if t.matches(el) {
				return true
			}
		}
		return false
	}

	if list, ok := t.value.([]any); ok {
		in := false
		for _, want := range list {
			if c, ok := compare(v, want); ok && c == 0 {
				in = true
				break
			}
		}
		if t.op == "ne" {
			return !in
		}
		return in
	}

	c, ok := compare(v, t.value)
	if !ok {
		return t.op == "ne"
	}
	switch t.op {
	case "eq", "in":
		return c == 0
	case "ne":
		return c != 0
	case "gt":
		return c > 0
	case "ge":
		return c >= 0
	case "lt":
		return c < 0
	case "le":
		return c <= 0
	}
	return false
}

// compare orders two wire values. Nil sorts first; values of unrelated
// kinds do not compare.
func compare(a, b any) (int, bool) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, true
		case a == nil:
			return -1, true
		}
		return 1, true
	}
	if x, ok := number(a); ok {
		y, ok := number(b)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b)), true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
