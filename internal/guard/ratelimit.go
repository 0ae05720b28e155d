package guard

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces one adapter's outbound requests with a token bucket.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter refilling at rps tokens per second with an
// equal burst capacity.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = int(rps)
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Acquire blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow reports whether a token is available without blocking.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}
