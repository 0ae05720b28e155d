package guard

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// BreakerConfig tunes a per-adapter circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker.
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
}

// DefaultBreakerConfig matches the adapter failure semantics: open after 5
// consecutive failures, probe after 60s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Cooldown: 60 * time.Second}
}

// Breaker wraps a two-step gobreaker so the adapter harness can gate a fetch
// before it runs and report the outcome after.
type Breaker struct {
	name string
	cb   *gobreaker.TwoStepCircuitBreaker
}

// NewBreaker builds a breaker that opens on consecutive failures and allows a
// single probe request while half-open.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("adapter", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	}
	return &Breaker{name: name, cb: gobreaker.NewTwoStepCircuitBreaker(settings)}
}

// Allow asks the breaker for permission. On success it returns a done
// callback that must be invoked with the request outcome. It returns false
// when the breaker is open (or already probing while half-open).
func (b *Breaker) Allow() (done func(success bool), ok bool) {
	cb, err := b.cb.Allow()
	if err != nil {
		return nil, false
	}
	return cb, true
}

// State exposes the underlying breaker state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// Open reports whether requests are currently rejected.
func (b *Breaker) Open() bool { return b.cb.State() == gobreaker.StateOpen }
