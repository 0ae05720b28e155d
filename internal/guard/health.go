package guard

import (
	"sync"
	"time"

	"github.com/turfscan/turfscan/internal/model"
)

// Classification thresholds from the health model: an adapter is unhealthy on
// a failure streak or a very poor 24h success rate, degraded on a mediocre
// rate or slow responses.
const (
	unhealthyStreak    = 3
	unhealthyRate      = 0.3
	degradedRate       = 0.7
	degradedLatencyMs  = 10_000
	outcomeWindow      = 24 * time.Hour
	maxTrackedOutcomes = 2048
)

type outcome struct {
	at      time.Time
	success bool
	latency time.Duration
}

// AdapterMetrics holds running counters for a single adapter. Process
// lifetime state; resets only on restart.
type AdapterMetrics struct {
	total               int64
	successful          int64
	failed              int64
	totalLatency        time.Duration
	consecutiveFailures int
	lastError           string
	lastSuccess         time.Time
	window              []outcome
}

// Monitor tracks health for every registered adapter.
type Monitor struct {
	mu       sync.RWMutex
	adapters map[string]*AdapterMetrics
	order    []string
	now      func() time.Time
}

// NewMonitor creates an empty health monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		adapters: make(map[string]*AdapterMetrics),
		now:      time.Now,
	}
}

// Register adds an adapter to the monitor, preserving registration order for
// status listings. Registering twice is a no-op.
func (m *Monitor) Register(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.adapters[name]; ok {
		return
	}
	m.adapters[name] = &AdapterMetrics{}
	m.order = append(m.order, name)
}

// RecordSuccess updates counters after a successful adapter fetch.
func (m *Monitor) RecordSuccess(name string, latency time.Duration) {
	m.record(name, true, latency, "")
}

// RecordFailure updates counters after a failed adapter fetch.
func (m *Monitor) RecordFailure(name string, latency time.Duration, reason string) {
	m.record(name, false, latency, reason)
}

func (m *Monitor) record(name string, success bool, latency time.Duration, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	am, ok := m.adapters[name]
	if !ok {
		am = &AdapterMetrics{}
		m.adapters[name] = am
		m.order = append(m.order, name)
	}

	now := m.now()
	am.total++
	am.totalLatency += latency
	if success {
		am.successful++
		am.consecutiveFailures = 0
		am.lastSuccess = now
	} else {
		am.failed++
		am.consecutiveFailures++
		if reason != "" {
			am.lastError = reason
		}
	}

	am.window = append(am.window, outcome{at: now, success: success, latency: latency})
	am.prune(now)
}

func (am *AdapterMetrics) prune(now time.Time) {
	cutoff := now.Add(-outcomeWindow)
	i := 0
	for i < len(am.window) && am.window[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		am.window = am.window[i:]
	}
	if len(am.window) > maxTrackedOutcomes {
		am.window = am.window[len(am.window)-maxTrackedOutcomes:]
	}
}

// successRate24h is 1.0 for adapters with no samples yet so a fresh adapter
// starts in tier 1.
func (am *AdapterMetrics) successRate24h(now time.Time) float64 {
	am.prune(now)
	if len(am.window) == 0 {
		return 1.0
	}
	ok := 0
	for _, o := range am.window {
		if o.success {
			ok++
		}
	}
	return float64(ok) / float64(len(am.window))
}

func (am *AdapterMetrics) avgLatencyMs() float64 {
	if am.total == 0 {
		return 0
	}
	return float64(am.totalLatency.Milliseconds()) / float64(am.total)
}

func (am *AdapterMetrics) classify(now time.Time) model.Health {
	rate := am.successRate24h(now)
	switch {
	case am.consecutiveFailures >= unhealthyStreak || rate < unhealthyRate:
		return model.Unhealthy
	case rate < degradedRate || am.avgLatencyMs() > degradedLatencyMs:
		return model.Degraded
	default:
		return model.Healthy
	}
}

// Classify returns the current health tier for an adapter. Unknown adapters
// are healthy.
func (m *Monitor) Classify(name string) model.Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	am, ok := m.adapters[name]
	if !ok {
		return model.Healthy
	}
	return am.classify(m.now())
}

// ByTier filters names to those currently in the given tier, preserving the
// input order.
func (m *Monitor) ByTier(names []string, tier model.Health) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if m.Classify(n) == tier {
			out = append(out, n)
		}
	}
	return out
}

// Status builds the externally served view of one adapter.
func (m *Monitor) Status(name string) model.AdapterStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	am, ok := m.adapters[name]
	if !ok {
		return model.AdapterStatus{Name: name, Health: model.Healthy, SuccessRate24h: 1.0}
	}
	now := m.now()
	st := model.AdapterStatus{
		Name:                name,
		Health:              am.classify(now),
		SuccessRate24h:      am.successRate24h(now),
		ConsecutiveFailures: am.consecutiveFailures,
		AvgResponseTimeMs:   am.avgLatencyMs(),
		LastError:           am.lastError,
	}
	if !am.lastSuccess.IsZero() {
		ts := am.lastSuccess
		st.LastSuccess = &ts
	}
	return st
}

// Statuses lists every registered adapter in registration order.
func (m *Monitor) Statuses() []model.AdapterStatus {
	m.mu.RLock()
	names := append([]string(nil), m.order...)
	m.mu.RUnlock()

	out := make([]model.AdapterStatus, 0, len(names))
	for _, n := range names {
		out = append(out, m.Status(n))
	}
	return out
}
