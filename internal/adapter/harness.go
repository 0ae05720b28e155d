package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/turfscan/turfscan/internal/fetch"
	"github.com/turfscan/turfscan/internal/guard"
	"github.com/turfscan/turfscan/internal/model"
)

// Fetch status values reported to the engine.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusSkipped = "SKIPPED"
)

// Report describes one adapter invocation for the engine's source_info.
type Report struct {
	Adapter      string        `json:"adapter"`
	Status       string        `json:"status"`
	RacesFetched int           `json:"races_fetched"`
	Duration     time.Duration `json:"fetch_duration"`
	ErrorMessage string        `json:"error_message,omitempty"`
	AttemptedURL string        `json:"attempted_url,omitempty"`
	TrustRatio   float64       `json:"trust_ratio,omitempty"`
}

// RetryConfig controls the transient-failure retry loop around FetchData.
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryConfig: three attempts, 1s doubling backoff capped at 10s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseBackoff: time.Second, MaxBackoff: 10 * time.Second}
}

// HarnessConfig tunes the resilience wrapping for one adapter.
type HarnessConfig struct {
	RequestsPerSecond float64
	Burst             int
	Breaker           guard.BreakerConfig
	Retry             RetryConfig
}

// DefaultHarnessConfig matches the documented defaults: 10 rps pacing,
// breaker opening after 5 consecutive failures for 60s.
func DefaultHarnessConfig() HarnessConfig {
	return HarnessConfig{
		RequestsPerSecond: 10,
		Burst:             10,
		Breaker:           guard.DefaultBreakerConfig(),
		Retry:             DefaultRetryConfig(),
	}
}

// Harness wraps one adapter with the shared reliability fabric. Adapter
// failures never escape; they come back as a failed Report.
type Harness struct {
	impl    Info
	shared  Context
	limiter *guard.RateLimiter
	breaker *guard.Breaker
	retry   RetryConfig
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewHarness wires an adapter into the shared context.
func NewHarness(impl Info, shared Context, cfg HarnessConfig) *Harness {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if shared.Health != nil {
		shared.Health.Register(impl.SourceName())
	}
	return &Harness{
		impl:    impl,
		shared:  shared,
		limiter: guard.NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		breaker: guard.NewBreaker(impl.SourceName(), cfg.Breaker),
		retry:   cfg.Retry,
		sleep:   sleepCtx,
	}
}

// SourceName returns the wrapped adapter's identity.
func (h *Harness) SourceName() string { return h.impl.SourceName() }

// AdapterType returns the wrapped adapter's type.
func (h *Harness) AdapterType() Type { return h.impl.AdapterType() }

// GetRaces runs the full orchestration for a discovery adapter. It never
// returns an error; failures surface in the Report and as an empty slice.
func (h *Harness) GetRaces(ctx context.Context, date string) ([]*model.Race, Report) {
	disc, ok := h.impl.(Discovery)
	if !ok {
		return nil, h.failed(0, fmt.Sprintf("%s is not a discovery adapter", h.SourceName()), "")
	}
	races, report := h.run(ctx, date, func(raw string) (int, any, error) {
		parsed, err := disc.ParseRaces(raw)
		if err != nil {
			return 0, nil, err
		}
		valid, trust := ValidateRaces(parsed)
		report := validationOutcome{races: valid, trustRatio: trust}
		return len(valid), report, nil
	})
	if races == nil {
		return []*model.Race{}, report
	}
	return races.(validationOutcome).races, report
}

// GetResults runs the orchestration for a results adapter.
func (h *Harness) GetResults(ctx context.Context, date string) ([]*model.ResultRace, Report) {
	res, ok := h.impl.(Results)
	if !ok {
		return nil, h.failed(0, fmt.Sprintf("%s is not a results adapter", h.SourceName()), "")
	}
	out, report := h.run(ctx, date, func(raw string) (int, any, error) {
		parsed, err := res.ParseResults(raw)
		if err != nil {
			return 0, nil, err
		}
		return len(parsed), parsed, nil
	})
	if out == nil {
		return []*model.ResultRace{}, report
	}
	return out.([]*model.ResultRace), report
}

type validationOutcome struct {
	races      []*model.Race
	trustRatio float64
}

// run is the shared orchestration: breaker gate, rate limit, manual
// override pickup, fetch with retries, parse, metrics.
func (h *Harness) run(ctx context.Context, date string, parse func(raw string) (int, any, error)) (any, Report) {
	name := h.SourceName()

	done, allowed := h.breaker.Allow()
	if !allowed {
		log.Debug().Str("adapter", name).Msg("Circuit open, skipping fetch")
		return nil, Report{Adapter: name, Status: StatusSkipped, ErrorMessage: "circuit breaker open"}
	}

	start := time.Now()
	fail := func(err error) (any, Report) {
		done(false)
		report := h.failed(time.Since(start), err.Error(), attemptedURL(err))
		if h.shared.Health != nil {
			h.shared.Health.RecordFailure(name, time.Since(start), err.Error())
		}
		return nil, report
	}

	if err := h.limiter.Acquire(ctx); err != nil {
		return fail(fmt.Errorf("rate limiter: %w", err))
	}

	raw, fromOverride := h.takeOverride(date)
	if !fromOverride {
		var err error
		raw, err = h.fetchWithRetry(ctx, date)
		if err != nil {
			h.registerOverride(date, err)
			return fail(err)
		}
	}

	count, payload, err := parse(raw)
	if err != nil {
		return fail(fmt.Errorf("parse: %w", err))
	}

	done(true)
	elapsed := time.Since(start)
	if h.shared.Health != nil {
		h.shared.Health.RecordSuccess(name, elapsed)
	}

	report := Report{
		Adapter:      name,
		Status:       StatusSuccess,
		RacesFetched: count,
		Duration:     elapsed,
	}
	if vo, ok := payload.(validationOutcome); ok {
		report.TrustRatio = vo.trustRatio
	}
	log.Debug().Str("adapter", name).Int("races", count).
		Dur("duration", elapsed).Bool("manual_override", fromOverride).
		Msg("Adapter fetch complete")
	return payload, report
}

func (h *Harness) takeOverride(date string) (string, bool) {
	if h.shared.Overrides == nil {
		return "", false
	}
	return h.shared.Overrides.Take(h.SourceName(), date)
}

func (h *Harness) registerOverride(date string, err error) {
	if h.shared.Overrides == nil {
		return
	}
	fe, ok := fetch.AsError(err)
	if !ok || fe.URL == "" {
		return
	}
	if fe.Reason == fetch.ReasonBotDetection || fe.Status >= 400 {
		h.shared.Overrides.Register(h.SourceName(), fe.URL, date)
	}
}

// fetchWithRetry applies the per-adapter failure semantics: transient
// errors retry with exponential backoff, 4xx fail fast except 429 which
// gets one longer-backoff retry, 401/403 never retry.
func (h *Harness) fetchWithRetry(ctx context.Context, date string) (string, error) {
	disc, _ := h.impl.(interface {
		FetchData(ctx context.Context, date string) (string, error)
	})

	var lastErr error
	backoff := h.retry.BaseBackoff
	for attempt := 1; attempt <= h.retry.MaxAttempts; attempt++ {
		raw, err := disc.FetchData(ctx, date)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		fe, isFetchErr := fetch.AsError(err)
		switch {
		case isFetchErr && (fe.Status == 401 || fe.Status == 403):
			return "", err
		case isFetchErr && fe.Status == 429:
			if attempt > 1 {
				return "", err
			}
			if serr := h.sleep(ctx, capDuration(backoff*4, h.retry.MaxBackoff)); serr != nil {
				return "", serr
			}
			continue
		case isFetchErr && fe.Status >= 400 && fe.Status < 500:
			return "", err
		}

		if attempt == h.retry.MaxAttempts {
			break
		}
		if serr := h.sleep(ctx, capDuration(backoff, h.retry.MaxBackoff)); serr != nil {
			return "", serr
		}
		backoff *= 2
	}
	return "", lastErr
}

func (h *Harness) failed(d time.Duration, msg, url string) Report {
	return Report{
		Adapter:      h.SourceName(),
		Status:       StatusFailed,
		Duration:     d,
		ErrorMessage: msg,
		AttemptedURL: url,
	}
}

func attemptedURL(err error) string {
	if fe, ok := fetch.AsError(err); ok {
		return fe.URL
	}
	return ""
}

func capDuration(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
