package guard

import (
	"context"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turfscan/turfscan/internal/model"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{FailureThreshold: 5, Cooldown: time.Hour})

	for i := 0; i < 5; i++ {
		done, ok := b.Allow()
		require.True(t, ok, "failure %d should still be allowed", i+1)
		done(false)
	}

	assert.Equal(t, gobreaker.StateOpen, b.State())
	_, ok := b.Allow()
	assert.False(t, ok, "open breaker must reject requests")
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{FailureThreshold: 5, Cooldown: 50 * time.Millisecond})

	for i := 0; i < 5; i++ {
		done, ok := b.Allow()
		require.True(t, ok)
		done(false)
	}
	require.True(t, b.Open())

	time.Sleep(80 * time.Millisecond)

	// Exactly one probe is allowed while half-open.
	done, ok := b.Allow()
	require.True(t, ok, "cooldown elapsed, probe should be allowed")
	_, second := b.Allow()
	assert.False(t, second, "half-open allows a single in-flight probe")

	done(true)
	assert.Equal(t, gobreaker.StateClosed, b.State())

	done2, ok := b.Allow()
	require.True(t, ok)
	done2(true)
}

func TestBreakerReopensOnProbeFailure(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{FailureThreshold: 2, Cooldown: 30 * time.Millisecond})

	for i := 0; i < 2; i++ {
		done, ok := b.Allow()
		require.True(t, ok)
		done(false)
	}
	require.True(t, b.Open())

	time.Sleep(50 * time.Millisecond)
	done, ok := b.Allow()
	require.True(t, ok)
	done(false)
	assert.True(t, b.Open(), "failed probe reopens the breaker")
}

func TestRateLimiterPacing(t *testing.T) {
	rl := NewRateLimiter(100, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Acquire(ctx))
	}
	elapsed := time.Since(start)
	// Burst of 1 at 100 rps: two waits of ~10ms each.
	assert.GreaterOrEqual(t, elapsed, 15*time.Millisecond)
}

func TestRateLimiterContextCancel(t *testing.T) {
	rl := NewRateLimiter(0.1, 1)
	require.NoError(t, rl.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := rl.Acquire(ctx)
	assert.Error(t, err, "second token takes 10s, context should expire first")
}

func TestMonitorClassification(t *testing.T) {
	m := NewMonitor()
	m.Register("alpha")

	assert.Equal(t, model.Healthy, m.Classify("alpha"), "fresh adapter is healthy")

	for i := 0; i < 10; i++ {
		m.RecordSuccess("alpha", 100*time.Millisecond)
	}
	assert.Equal(t, model.Healthy, m.Classify("alpha"))

	// Three consecutive failures force unhealthy regardless of rate.
	for i := 0; i < 3; i++ {
		m.RecordFailure("alpha", 50*time.Millisecond, "timeout")
	}
	assert.Equal(t, model.Unhealthy, m.Classify("alpha"))

	// A success resets the failure streak.
	m.RecordSuccess("alpha", 50*time.Millisecond)
	st := m.Status("alpha")
	assert.Equal(t, 0, st.ConsecutiveFailures)
	assert.Equal(t, "timeout", st.LastError)
	assert.NotNil(t, st.LastSuccess)
}

func TestMonitorDegradedOnLowRate(t *testing.T) {
	m := NewMonitor()
	m.Register("beta")

	// 6 successes, 4 failures interleaved so no 3-streak forms: 0.6 rate.
	for i := 0; i < 4; i++ {
		m.RecordFailure("beta", time.Millisecond, "http 500")
		m.RecordSuccess("beta", time.Millisecond)
	}
	m.RecordSuccess("beta", time.Millisecond)
	m.RecordSuccess("beta", time.Millisecond)

	assert.Equal(t, model.Degraded, m.Classify("beta"))
}

func TestMonitorByTier(t *testing.T) {
	m := NewMonitor()
	for _, n := range []string{"a", "b", "c"} {
		m.Register(n)
	}
	for i := 0; i < 3; i++ {
		m.RecordFailure("b", time.Millisecond, "boom")
	}

	healthy := m.ByTier([]string{"a", "b", "c"}, model.Healthy)
	assert.Equal(t, []string{"a", "c"}, healthy)
	unhealthy := m.ByTier([]string{"a", "b", "c"}, model.Unhealthy)
	assert.Equal(t, []string{"b"}, unhealthy)
}

func TestMonitorStatusesOrder(t *testing.T) {
	m := NewMonitor()
	for _, n := range []string{"z", "a", "m"} {
		m.Register(n)
	}
	sts := m.Statuses()
	require.Len(t, sts, 3)
	assert.Equal(t, "z", sts[0].Name)
	assert.Equal(t, "a", sts[1].Name)
	assert.Equal(t, "m", sts[2].Name)
}
