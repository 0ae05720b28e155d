// Package config loads the single YAML file that wires the whole service:
// listen address, auth, fetch pool, engine knobs, analyzer thresholds,
// audit policy, store backend and per-source adapter settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/turfscan/turfscan/internal/adapter/sources"
	"github.com/turfscan/turfscan/internal/audit"
	"github.com/turfscan/turfscan/internal/engine"
)

// EngineConfig tunes the fetch orchestrator. Durations are plain integers
// because that is what survives a YAML round trip.
type EngineConfig struct {
	MaxConcurrent   int `yaml:"max_concurrent_requests"`
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	StaleTTLHours   int `yaml:"stale_ttl_hours"`
	MinRequired     int `yaml:"min_required_adapters"`
}

// ToEngine converts to the engine's own config type.
func (c *EngineConfig) ToEngine() engine.Config {
	return engine.Config{
		MaxConcurrent: c.MaxConcurrent,
		CacheTTL:      time.Duration(c.CacheTTLSeconds) * time.Second,
		StaleTTL:      time.Duration(c.StaleTTLHours) * time.Hour,
		MinRequired:   c.MinRequired,
	}
}

// AuditConfig tunes the result auditor.
type AuditConfig struct {
	LookbackHours           int     `yaml:"lookback_hours"`
	StandardBet             float64 `yaml:"standard_bet"`
	AllowDisciplineFallback bool    `yaml:"allow_discipline_fallback"`
}

// ToAudit converts to the auditor's own config type.
func (c *AuditConfig) ToAudit() audit.Config {
	return audit.Config{
		Lookback:                time.Duration(c.LookbackHours) * time.Hour,
		StandardBet:             c.StandardBet,
		AllowDisciplineFallback: c.AllowDisciplineFallback,
	}
}

// FetchConfig sizes the shared HTTP client and names the optional external
// rendering endpoints for the browser engines.
type FetchConfig struct {
	TimeoutSeconds  int    `yaml:"default_timeout_seconds"`
	PoolConnections int    `yaml:"http_pool_connections"`
	PoolKeepalive   int    `yaml:"http_max_keepalive"`
	BrowserEndpoint string `yaml:"browser_endpoint"`
	StealthEndpoint string `yaml:"stealth_endpoint"`
}

// HarnessConfig is the per-adapter resilience tuning.
type HarnessConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// AnalyzerConfig carries the analyzer defaults applied when a request does
// not override them.
type AnalyzerConfig struct {
	TrustworthyRatioMin float64 `yaml:"trustworthy_ratio_min"`
	MaxFieldSize        int     `yaml:"max_field_size"`
}

// StoreConfig selects the prediction store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // jsonl | postgres
	Path    string `yaml:"path"`    // jsonl file location
	DSN     string `yaml:"dsn"`     // postgres connection string
}

// Config is the full service configuration.
type Config struct {
	ListenAddr     string   `yaml:"listen_addr"`
	APIKey         string   `yaml:"api_key"`
	LogLevel       string   `yaml:"log_level"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	Fetch    FetchConfig    `yaml:"fetch"`
	Harness  HarnessConfig  `yaml:"harness"`
	Engine   EngineConfig   `yaml:"engine"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Audit    AuditConfig    `yaml:"audit"`
	Store    StoreConfig    `yaml:"store"`
	Sources  sources.Config `yaml:"sources"`
}

// Default returns the documented defaults; a missing config file yields a
// runnable service with every adapter disabled.
func Default() Config {
	return Config{
		ListenAddr:     ":8080",
		LogLevel:       "info",
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		Fetch: FetchConfig{
			TimeoutSeconds:  30,
			PoolConnections: 100,
			PoolKeepalive:   50,
		},
		Harness: HarnessConfig{RequestsPerSecond: 10, Burst: 10},
		Engine: EngineConfig{
			MaxConcurrent:   5,
			CacheTTLSeconds: 300,
			StaleTTLHours:   24,
			MinRequired:     2,
		},
		Analyzer: AnalyzerConfig{
			TrustworthyRatioMin: 0.7,
			MaxFieldSize:        10,
		},
		Audit: AuditConfig{LookbackHours: 48, StandardBet: 2.00},
		Store: StoreConfig{Backend: "jsonl", Path: "data/predictions.jsonl"},
	}
}

// Load reads a YAML config file over the defaults. Values of the form
// ${ENV_VAR} are expanded before parsing so secrets stay out of the file.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	expanded := os.Expand(string(raw), func(key string) string {
		return os.Getenv(key)
	})
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.default_timeout_seconds must be positive")
	}
	switch c.Store.Backend {
	case "jsonl":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path required for the jsonl backend")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}

// Timeout returns the per-request fetch timeout as a duration.
func (c *FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
