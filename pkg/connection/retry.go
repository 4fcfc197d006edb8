package connection

import (
	"math"
	"time"

	"github.com/st9db/st9.go/internal/rand"
)

// Retryer decides whether and when a failed idempotent request is retried.
type Retryer interface {
	// NextDelay returns the delay before retry number attempt (0-based) and
	// whether to retry at all.
	NextDelay(attempt int, lastErr error) (time.Duration, bool)
}

// ExponentialBackoffRetryer doubles (by Multiplier) the delay on every
// attempt, capped at MaxDelay, with optional jitter.
type ExponentialBackoffRetryer struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// MaxRetries of 0 disables retrying.
	MaxRetries   int
	JitterFactor float64
}

func NewExponentialBackoffRetryer(maxRetries int) *ExponentialBackoffRetryer {
	return &ExponentialBackoffRetryer{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		MaxRetries:   maxRetries,
		JitterFactor: 0.2,
	}
}

func (r *ExponentialBackoffRetryer) NextDelay(attempt int, lastErr error) (time.Duration, bool) {
	if attempt >= r.MaxRetries {
		return 0, false
	}

	delay := float64(r.InitialDelay) * math.Pow(r.Multiplier, float64(attempt))
	if delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}

	delay = rand.Jitter(delay, r.JitterFactor)

	return time.Duration(delay), true
}

// NoRetry never retries.
type NoRetry struct{}

func (NoRetry) NextDelay(int, error) (time.Duration, bool) {
	return 0, false
}
