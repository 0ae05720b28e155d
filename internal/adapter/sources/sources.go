// Package sources holds the concrete site adapters. Each adapter knows one
// upstream's URL scheme and payload format and nothing about retries,
// breakers or rate limits; the harness supplies those.
package sources

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/turfscan/turfscan/internal/adapter"
	"github.com/turfscan/turfscan/internal/fetch"
)

// SourceConfig is the per-adapter block from the config file.
type SourceConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// Config names every known adapter.
type Config struct {
	Oddsboard        SourceConfig `yaml:"oddsboard"`
	Raceform         SourceConfig `yaml:"raceform"`
	Trackside        SourceConfig `yaml:"trackside"`
	Paceline         SourceConfig `yaml:"paceline"`
	Kennelclub       SourceConfig `yaml:"kennelclub"`
	Sportingindex    SourceConfig `yaml:"sportingindex"`
	RaceformResults  SourceConfig `yaml:"raceform_results"`
	TracksideResults SourceConfig `yaml:"trackside_results"`
}

// Register constructs every enabled adapter, wraps it in a harness and adds
// it to the registry. Adapters that require an API key and have none are
// skipped with a warning rather than failing startup.
func Register(reg *adapter.Registry, shared adapter.Context, cfg Config, hcfg adapter.HarnessConfig) error {
	type entry struct {
		cfg      SourceConfig
		needsKey bool
		build    func(SourceConfig) adapter.Info
	}
	entries := []entry{
		{cfg.Oddsboard, true, func(c SourceConfig) adapter.Info { return NewOddsboard(shared.Fetcher, c.BaseURL, c.APIKey) }},
		{cfg.Raceform, false, func(c SourceConfig) adapter.Info { return NewRaceform(shared.Fetcher, c.BaseURL) }},
		{cfg.Trackside, true, func(c SourceConfig) adapter.Info { return NewTrackside(shared.Fetcher, c.BaseURL, c.APIKey) }},
		{cfg.Paceline, false, func(c SourceConfig) adapter.Info { return NewPaceline(shared.Fetcher, c.BaseURL) }},
		{cfg.Kennelclub, false, func(c SourceConfig) adapter.Info { return NewKennelclub(shared.Fetcher, c.BaseURL) }},
		{cfg.Sportingindex, false, func(c SourceConfig) adapter.Info { return NewSportingindex(shared.Fetcher, c.BaseURL) }},
		{cfg.RaceformResults, false, func(c SourceConfig) adapter.Info { return NewRaceformResults(shared.Fetcher, c.BaseURL) }},
		{cfg.TracksideResults, true, func(c SourceConfig) adapter.Info { return NewTracksideResults(shared.Fetcher, c.BaseURL, c.APIKey) }},
	}

	for _, e := range entries {
		if !e.cfg.Enabled {
			continue
		}
		impl := e.build(e.cfg)
		if e.needsKey && e.cfg.APIKey == "" {
			log.Warn().Str("adapter", impl.SourceName()).
				Msg("Adapter enabled but has no API key, skipping")
			continue
		}
		if err := reg.Register(adapter.NewHarness(impl, shared, hcfg)); err != nil {
			return fmt.Errorf("register %s: %w", impl.SourceName(), err)
		}
	}
	return nil
}

// fetchText runs one request through the shared fetcher and returns the
// body. Non-2xx statuses come back as *fetch.Error from the fetcher.
func fetchText(ctx context.Context, f fetch.Fetcher, url string, opts fetch.Options) (string, error) {
	if f == nil {
		return "", &fetch.Error{Reason: fetch.ReasonUnknown, URL: url, Err: fmt.Errorf("no fetcher configured")}
	}
	resp, err := f.Fetch(ctx, url, opts)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
