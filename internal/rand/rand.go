// Package rand is a process-wide PCG source seeded from crypto/rand and safe
// for concurrent use. It backs retry jitter and fault injection; it is not
// suitable for secrets.
package rand

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

var defaultSource = newSource()

type source struct {
	mut sync.Mutex
	rng *rand.Rand
}

func newSource() *source {
	seed := make([]byte, 16)
	if _, err := cryptorand.Read(seed); err != nil {
		panic("rand: cannot seed: " + err.Error())
	}

	return &source{
		//nolint:gosec // no security required
		rng: rand.New(rand.NewPCG(
			binary.LittleEndian.Uint64(seed[:8]),
			binary.LittleEndian.Uint64(seed[8:]),
		)),
	}
}

// Float64 returns a number in [0.0, 1.0).
func Float64() float64 {
	defaultSource.mut.Lock()
	defer defaultSource.mut.Unlock()
	return defaultSource.rng.Float64()
}

// Int64N returns a number in [0, n). It returns 0 when n <= 0.
func Int64N(n int64) int64 {
	if n <= 0 {
		return 0
	}
	defaultSource.mut.Lock()
	defer defaultSource.mut.Unlock()
	return defaultSource.rng.Int64N(n)
}

// Jitter spreads d by up to factor in either direction. The result is never
// negative.
func Jitter(d float64, factor float64) float64 {
	if factor <= 0 {
		return d
	}
	out := d + d*factor*(2*Float64()-1)
	if out < 0 {
		return 0
	}
	return out
}
