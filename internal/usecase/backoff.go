package usecase

import (
	"math"
	"time"
)

// RetryPolicy is an exponential schedule. Callers own the attempt counter.
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Factor      float64
	Max         time.Duration
}

// DefaultPriceRetry is 5 attempts starting at 1s and growing 1.5x.
func DefaultPriceRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, Initial: time.Second, Factor: 1.5, Max: 10 * time.Second}
}

// NextDelay is the wait after the given 1-based attempt failed:
// Initial * Factor^(attempt-1), capped at Max when Max is set.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	d := time.Duration(float64(p.Initial) * math.Pow(factor, float64(attempt-1)))
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// Exhausted reports whether attempt was the last one allowed.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}

// linearDelay is base * attempt.
func linearDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(attempt)
}
