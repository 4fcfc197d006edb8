package cursor

import (
	"context"

	"github.com/st9db/st9.go/pkg/store"
)

// CounterSource reads counter pages.
type CounterSource interface {
	Counters(ctx context.Context, path, token string) (*store.CounterPage, error)
}

// CounterCursor is one page of counter rows.
type CounterCursor struct {
	src  CounterSource
	path string
	rows []store.Row
	prev string
	next string
}

func NewCounterCursor(src CounterSource, path string, page *store.CounterPage) *CounterCursor {
	return &CounterCursor{src: src, path: path, rows: page.Rows, prev: page.Prev, next: page.Next}
}

func (c *CounterCursor) Rows() []store.Row {
	return c.rows
}

func (c *CounterCursor) Len() int {
	return len(c.rows)
}

// At returns the i-th row, or nil when out of range.
func (c *CounterCursor) At(i int) store.Row {
	if i < 0 || i >= len(c.rows) {
		return nil
	}
	return c.rows[i]
}

func (c *CounterCursor) NextSet(ctx context.Context) (*CounterCursor, error) {
	return c.turn(ctx, c.next)
}

func (c *CounterCursor) PrevSet(ctx context.Context) (*CounterCursor, error) {
	return c.turn(ctx, c.prev)
}

func (c *CounterCursor) turn(ctx context.Context, token string) (*CounterCursor, error) {
	if token == "" {
		return &CounterCursor{src: c.src, path: c.path}, nil
	}
	page, err := c.src.Counters(ctx, c.path, token)
	if err != nil {
		return nil, err
	}
	return NewCounterCursor(c.src, c.path, page), nil
}
