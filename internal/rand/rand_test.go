package rand

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat64Range(t *testing.T) {
	for range 1000 {
		f := Float64()
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 1.0)
	}
}

func TestInt64N(t *testing.T) {
	assert.Zero(t, Int64N(0))
	assert.Zero(t, Int64N(-5))
	for range 1000 {
		n := Int64N(3)
		assert.GreaterOrEqual(t, n, int64(0))
		assert.Less(t, n, int64(3))
	}
}

func TestJitter(t *testing.T) {
	assert.InDelta(t, 100.0, Jitter(100, 0), 0)
	for range 1000 {
		d := Jitter(100, 0.2)
		assert.GreaterOrEqual(t, d, 80.0)
		assert.LessOrEqual(t, d, 120.0)
	}
	assert.GreaterOrEqual(t, Jitter(10, 5), 0.0)
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				Float64()
				Int64N(10)
			}
		}()
	}
	wg.Wait()
}

func BenchmarkFloat64(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Float64()
	}
}
