// Package engine is the fetch orchestrator: it fans out to discovery
// adapters by health tier, merges what came back, and layers response and
// stale caches on top so one bad scrape never empties the API.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/turfscan/turfscan/internal/adapter"
	"github.com/turfscan/turfscan/internal/cache"
	"github.com/turfscan/turfscan/internal/dedupe"
	"github.com/turfscan/turfscan/internal/guard"
	"github.com/turfscan/turfscan/internal/model"
)

// ErrUnknownSource marks a source filter that matches no registered adapter.
var ErrUnknownSource = errors.New("unknown source")

// Freshness values reported in AggregatedResponse metadata.
const (
	FreshnessLive   = "live"
	FreshnessCached = "cached"
	FreshnessStale  = "stale"
)

// Config tunes the orchestrator.
type Config struct {
	MaxConcurrent int
	CacheTTL      time.Duration
	StaleTTL      time.Duration
	MinRequired   int
}

// DefaultConfig: 5-wide fan-out, 5 minute response cache, day-long stale
// fallback, two adapters needed before the degraded tier is skipped.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 5,
		CacheTTL:      5 * time.Minute,
		StaleTTL:      24 * time.Hour,
		MinRequired:   2,
	}
}

// AggregatedResponse is the merged view of one day served over the API.
type AggregatedResponse struct {
	Date       string           `json:"date"`
	Races      []*model.Race    `json:"races"`
	Errors     []string         `json:"errors,omitempty"`
	SourceInfo []adapter.Report `json:"source_info"`
	Metadata   map[string]any   `json:"metadata"`
}

// Engine coordinates every discovery adapter behind one entry point.
type Engine struct {
	registry *adapter.Registry
	health   *guard.Monitor
	cfg      Config

	responses *cache.Store
	stale     *cache.Store
	sem       *semaphore.Weighted
	now       func() time.Time
}

// New builds an engine over a populated registry.
func New(reg *adapter.Registry, health *guard.Monitor, cfg Config) *Engine {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	if cfg.StaleTTL <= 0 {
		cfg.StaleTTL = DefaultConfig().StaleTTL
	}
	if cfg.MinRequired <= 0 {
		cfg.MinRequired = DefaultConfig().MinRequired
	}
	return &Engine{
		registry:  reg,
		health:    health,
		cfg:       cfg,
		responses: cache.New(),
		stale:     cache.New(),
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		now:       time.Now,
	}
}

// FetchAllOdds returns the merged race card for a date, optionally filtered
// to a single source. Healthy adapters run first; the degraded tier only
// runs when too few succeeded; a stale cached day is the last resort.
func (e *Engine) FetchAllOdds(ctx context.Context, date, sourceFilter string) (*AggregatedResponse, error) {
	cacheKey := date + "|" + sourceFilter
	if v, age, ok := e.responses.Get(cacheKey); ok {
		resp := v.(*AggregatedResponse)
		log.Debug().Str("date", date).Dur("age", age).Msg("Serving cached response")
		return withFreshness(resp, FreshnessCached, nil), nil
	}

	eligible := e.eligible(sourceFilter)
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: no discovery adapters match %q", ErrUnknownSource, sourceFilter)
	}
	names := make([]string, len(eligible))
	for i, h := range eligible {
		names[i] = h.SourceName()
	}

	var (
		races   []*model.Race
		reports []adapter.Report
		errs    []string
	)
	succeeded := 0

	runTier := func(tier model.Health) {
		tierNames := e.health.ByTier(names, tier)
		if len(tierNames) == 0 {
			return
		}
		tierRaces, tierReports := e.fanOut(ctx, eligible, tierNames, date)
		races = append(races, tierRaces...)
		reports = append(reports, tierReports...)
		for _, rep := range tierReports {
			switch rep.Status {
			case adapter.StatusSuccess:
				succeeded++
			case adapter.StatusFailed:
				errs = append(errs, fmt.Sprintf("%s: %s", rep.Adapter, rep.ErrorMessage))
			}
		}
	}

	runTier(model.Healthy)
	if succeeded < e.cfg.MinRequired {
		runTier(model.Degraded)
	}

	if succeeded == 0 {
		if v, age, ok := e.stale.Get(date); ok {
			resp := v.(*AggregatedResponse)
			warning := fmt.Sprintf("all adapters failed, serving data %s old", age.Round(time.Second))
			log.Warn().Str("date", date).Msg(warning)
			return withFreshness(resp, FreshnessStale, []string{warning}), nil
		}
		return nil, fmt.Errorf("all adapters failed for %s and no stale data available", date)
	}

	merged := dedupe.Merge(races)
	resp := &AggregatedResponse{
		Date:       date,
		Races:      merged,
		Errors:     errs,
		SourceInfo: reports,
		Metadata: map[string]any{
			"data_freshness":      FreshnessLive,
			"successful_adapters": succeeded,
			"total_adapters":      len(eligible),
			"generated_at":        e.now().UTC(),
		},
	}
	e.responses.Set(cacheKey, resp, e.cfg.CacheTTL)
	e.stale.Set(date, resp, e.cfg.StaleTTL)
	return resp, nil
}

// FetchResults fans out to every results adapter and returns the combined
// result races. Results feeds do not overlap per venue in practice, so no
// dedup pass runs here.
func (e *Engine) FetchResults(ctx context.Context, date string) ([]*model.ResultRace, []adapter.Report) {
	var (
		mu      sync.Mutex
		races   []*model.ResultRace
		reports []adapter.Report
		wg      sync.WaitGroup
	)
	for _, h := range e.registry.Results() {
		h := h
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer e.sem.Release(1)
			out, report := h.GetResults(ctx, date)
			mu.Lock()
			races = append(races, out...)
			reports = append(reports, report)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return races, reports
}

// eligible filters discovery harnesses by the optional source name.
func (e *Engine) eligible(sourceFilter string) []*adapter.Harness {
	all := e.registry.Discovery()
	if sourceFilter == "" {
		return all
	}
	var out []*adapter.Harness
	for _, h := range all {
		if h.SourceName() == sourceFilter {
			out = append(out, h)
		}
	}
	return out
}

// fanOut runs the named adapters in parallel under the global semaphore.
func (e *Engine) fanOut(ctx context.Context, harnesses []*adapter.Harness, names []string, date string) ([]*model.Race, []adapter.Report) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var (
		mu      sync.Mutex
		races   []*model.Race
		reports []adapter.Report
		wg      sync.WaitGroup
	)
	for _, h := range harnesses {
		if !wanted[h.SourceName()] {
			continue
		}
		h := h
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				reports = append(reports, adapter.Report{
					Adapter: h.SourceName(), Status: adapter.StatusFailed,
					ErrorMessage: err.Error(),
				})
				mu.Unlock()
				return
			}
			defer e.sem.Release(1)

			out, report := h.GetRaces(ctx, date)
			mu.Lock()
			defer mu.Unlock()
			reports = append(reports, report)
			if report.Status == adapter.StatusFailed {
				// Placeholder races carry the failure into the response
				// body; the deduplicator drops them from the merged set.
				races = append(races, &model.Race{
					IsErrorPlaceholder: true,
					ErrorMessage:       report.ErrorMessage,
					Source:             h.SourceName(),
				})
				return
			}
			races = append(races, out...)
		}()
	}
	wg.Wait()
	return races, reports
}

// withFreshness shallow-copies a response with new freshness metadata so
// cached entries are never mutated in place.
func withFreshness(resp *AggregatedResponse, freshness string, warnings []string) *AggregatedResponse {
	out := *resp
	out.Metadata = make(map[string]any, len(resp.Metadata)+2)
	for k, v := range resp.Metadata {
		out.Metadata[k] = v
	}
	out.Metadata["data_freshness"] = freshness
	if len(warnings) > 0 {
		out.Metadata["warnings"] = warnings
	}
	return &out
}
