package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turfscan/turfscan/internal/fetch"
	"github.com/turfscan/turfscan/internal/guard"
	"github.com/turfscan/turfscan/internal/model"
	"github.com/turfscan/turfscan/internal/override"
)

// fakeDiscovery scripts FetchData responses per call.
type fakeDiscovery struct {
	name     string
	fetches  []fetchStep
	calls    int
	parsed   []*model.Race
	parseErr error
}

type fetchStep struct {
	raw string
	err error
}

func (f *fakeDiscovery) SourceName() string { return f.name }

func (f *fakeDiscovery) AdapterType() Type { return TypeDiscovery }

func (f *fakeDiscovery) FetchData(_ context.Context, _ string) (string, error) {
	step := f.fetches[min(f.calls, len(f.fetches)-1)]
	f.calls++
	return step.raw, step.err
}

func (f *fakeDiscovery) ParseRaces(string) ([]*model.Race, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.parsed, nil
}

func twoRunnerRace() *model.Race {
	return &model.Race{
		Venue: "Ascot",
		Runners: []*model.Runner{
			{Number: 1, Name: "A", Odds: oddsFrom("test", 3.0)},
			{Number: 2, Name: "B", Odds: oddsFrom("test", 5.0)},
		},
	}
}

func newTestHarness(impl Info) *Harness {
	h := NewHarness(impl, Context{Health: guard.NewMonitor()}, HarnessConfig{
		RequestsPerSecond: 1000,
		Burst:             1000,
		Breaker:           guard.DefaultBreakerConfig(),
		Retry:             RetryConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
	h.sleep = func(context.Context, time.Duration) error { return nil }
	return h
}

func TestHarnessSuccess(t *testing.T) {
	impl := &fakeDiscovery{
		name:    "testsource",
		fetches: []fetchStep{{raw: "payload"}},
		parsed:  []*model.Race{twoRunnerRace()},
	}
	h := newTestHarness(impl)

	races, report := h.GetRaces(context.Background(), "2025-10-20")
	require.Len(t, races, 1)
	assert.Equal(t, StatusSuccess, report.Status)
	assert.Equal(t, 1, report.RacesFetched)
	assert.Equal(t, 1.0, report.TrustRatio)
	assert.Equal(t, 1, impl.calls)
}

func TestHarnessRetriesTransientErrors(t *testing.T) {
	impl := &fakeDiscovery{
		name: "flaky",
		fetches: []fetchStep{
			{err: &fetch.Error{Reason: fetch.ReasonNetwork, URL: "http://x", Status: 500}},
			{err: errors.New("connection reset")},
			{raw: "payload"},
		},
		parsed: []*model.Race{twoRunnerRace()},
	}
	h := newTestHarness(impl)

	races, report := h.GetRaces(context.Background(), "2025-10-20")
	assert.Len(t, races, 1)
	assert.Equal(t, StatusSuccess, report.Status)
	assert.Equal(t, 3, impl.calls)
}

func TestHarnessAuthFailsFast(t *testing.T) {
	impl := &fakeDiscovery{
		name: "walled",
		fetches: []fetchStep{
			{err: &fetch.Error{Reason: fetch.ReasonAuth, URL: "http://x/cards", Status: 403}},
		},
	}
	h := newTestHarness(impl)

	races, report := h.GetRaces(context.Background(), "2025-10-20")
	assert.Empty(t, races)
	assert.Equal(t, StatusFailed, report.Status)
	assert.Equal(t, "http://x/cards", report.AttemptedURL)
	assert.Equal(t, 1, impl.calls, "401/403 must not retry")
}

func TestHarnessRateLimitedRetriesOnce(t *testing.T) {
	impl := &fakeDiscovery{
		name: "throttled",
		fetches: []fetchStep{
			{err: &fetch.Error{Reason: fetch.ReasonNetwork, URL: "http://x", Status: 429}},
			{err: &fetch.Error{Reason: fetch.ReasonNetwork, URL: "http://x", Status: 429}},
		},
	}
	h := newTestHarness(impl)

	var slept []time.Duration
	h.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, report := h.GetRaces(context.Background(), "2025-10-20")
	assert.Equal(t, StatusFailed, report.Status)
	assert.Equal(t, 2, impl.calls, "429 gets exactly one extra attempt")
	require.Len(t, slept, 1)
}

func TestHarnessOtherClientErrorsFailFast(t *testing.T) {
	impl := &fakeDiscovery{
		name: "notfound",
		fetches: []fetchStep{
			{err: &fetch.Error{Reason: fetch.ReasonNetwork, URL: "http://x", Status: 404}},
		},
	}
	h := newTestHarness(impl)

	_, report := h.GetRaces(context.Background(), "2025-10-20")
	assert.Equal(t, StatusFailed, report.Status)
	assert.Equal(t, 1, impl.calls)
}

func TestHarnessBreakerSkipsAfterConsecutiveFailures(t *testing.T) {
	impl := &fakeDiscovery{
		name:    "dead",
		fetches: []fetchStep{{err: &fetch.Error{Reason: fetch.ReasonNetwork, URL: "http://x", Status: 503}}},
	}
	h := newTestHarness(impl)

	for i := 0; i < 5; i++ {
		_, report := h.GetRaces(context.Background(), "2025-10-20")
		assert.Equal(t, StatusFailed, report.Status)
	}

	_, report := h.GetRaces(context.Background(), "2025-10-20")
	assert.Equal(t, StatusSkipped, report.Status)
	assert.Contains(t, report.ErrorMessage, "circuit breaker open")
}

func TestHarnessParseErrorIsFailure(t *testing.T) {
	impl := &fakeDiscovery{
		name:     "garbled",
		fetches:  []fetchStep{{raw: "<html>not json</html>"}},
		parseErr: errors.New("unexpected token"),
	}
	h := newTestHarness(impl)

	races, report := h.GetRaces(context.Background(), "2025-10-20")
	assert.Empty(t, races)
	assert.Equal(t, StatusFailed, report.Status)
	assert.Contains(t, report.ErrorMessage, "parse")
}

func TestHarnessBotBlockRegistersOverride(t *testing.T) {
	overrides := override.NewManager(0)
	impl := &fakeDiscovery{
		name: "blocked",
		fetches: []fetchStep{
			{err: &fetch.Error{Reason: fetch.ReasonBotDetection, URL: "http://x/cards", Status: 200}},
		},
	}
	h := NewHarness(impl, Context{Overrides: overrides}, HarnessConfig{RequestsPerSecond: 1000, Burst: 1000})
	h.sleep = func(context.Context, time.Duration) error { return nil }

	_, report := h.GetRaces(context.Background(), "2025-10-20")
	assert.Equal(t, StatusFailed, report.Status)

	pending := overrides.List()
	require.Len(t, pending, 1)
	assert.Equal(t, "blocked", pending[0].Adapter)
	assert.Equal(t, "http://x/cards", pending[0].URL)
}

func TestHarnessPrefersFulfilledOverride(t *testing.T) {
	overrides := override.NewManager(0)
	id := overrides.Register("manual", "http://x/cards", "2025-10-20")
	require.NoError(t, overrides.Submit(id, "payload", "text/html"))

	impl := &fakeDiscovery{
		name:    "manual",
		fetches: []fetchStep{{err: errors.New("should not be called")}},
		parsed:  []*model.Race{twoRunnerRace()},
	}
	h := NewHarness(impl, Context{Overrides: overrides}, HarnessConfig{RequestsPerSecond: 1000, Burst: 1000})

	races, report := h.GetRaces(context.Background(), "2025-10-20")
	assert.Len(t, races, 1)
	assert.Equal(t, StatusSuccess, report.Status)
	assert.Equal(t, 0, impl.calls, "fulfilled override replaces the network fetch")
}

func TestRegistryOrderAndTypes(t *testing.T) {
	reg := NewRegistry()
	shared := Context{}
	for _, name := range []string{"alpha", "beta"} {
		impl := &fakeDiscovery{name: name, fetches: []fetchStep{{raw: ""}}}
		require.NoError(t, reg.Register(NewHarness(impl, shared, DefaultHarnessConfig())))
	}

	assert.Equal(t, []string{"alpha", "beta"}, reg.Names())
	assert.Len(t, reg.Discovery(), 2)
	assert.Empty(t, reg.Results())

	dup := &fakeDiscovery{name: "alpha"}
	assert.Error(t, reg.Register(NewHarness(dup, shared, DefaultHarnessConfig())))

	h, ok := reg.Get("beta")
	require.True(t, ok)
	assert.Equal(t, "beta", h.SourceName())
}
