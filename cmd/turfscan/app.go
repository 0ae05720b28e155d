package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/turfscan/turfscan/internal/adapter"
	"github.com/turfscan/turfscan/internal/adapter/sources"
	"github.com/turfscan/turfscan/internal/analyzer"
	"github.com/turfscan/turfscan/internal/api"
	"github.com/turfscan/turfscan/internal/audit"
	"github.com/turfscan/turfscan/internal/config"
	"github.com/turfscan/turfscan/internal/engine"
	"github.com/turfscan/turfscan/internal/fetch"
	"github.com/turfscan/turfscan/internal/guard"
	"github.com/turfscan/turfscan/internal/override"
	"github.com/turfscan/turfscan/internal/store"
	"github.com/turfscan/turfscan/internal/telemetry"
)

// App holds every wired component of a running turfscan process.
type App struct {
	Config    config.Config
	Registry  *adapter.Registry
	Health    *guard.Monitor
	Overrides *override.Manager
	Engine    *engine.Engine
	Analyzers *analyzer.Registry
	Store     store.PredictionStore
	Auditor   *audit.Auditor
	Metrics   *telemetry.Metrics
	Server    *api.Server
}

// buildApp loads configuration and wires the full component graph. A missing
// file at the default path falls back to the built-in defaults so the binary
// runs without any setup.
func buildApp(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && configPath == "config.yaml" {
			log.Warn().Str("path", configPath).Msg("No config file, using defaults")
			cfg = config.Default()
		} else {
			return nil, err
		}
	}
	applyLogLevel(cfg.LogLevel)

	pool := fetch.PoolConfig{
		MaxConnections: cfg.Fetch.PoolConnections,
		MaxKeepalive:   cfg.Fetch.PoolKeepalive,
		DefaultTimeout: cfg.Fetch.Timeout(),
	}
	engines := []fetch.Engine{
		fetch.NewPlainEngine(pool),
		fetch.NewImpersonateEngine(pool),
	}
	if cfg.Fetch.BrowserEndpoint != "" {
		engines = append(engines, fetch.NewBrowserEngine(cfg.Fetch.BrowserEndpoint, pool))
	}
	if cfg.Fetch.StealthEndpoint != "" {
		engines = append(engines, fetch.NewStealthEngine(cfg.Fetch.StealthEndpoint, pool))
	}
	fetcher := fetch.NewMultiEngine(engines...)

	health := guard.NewMonitor()
	overrides := override.NewManager(0)
	registry := adapter.NewRegistry()
	shared := adapter.Context{Fetcher: fetcher, Health: health, Overrides: overrides}

	hcfg := adapter.DefaultHarnessConfig()
	if cfg.Harness.RequestsPerSecond > 0 {
		hcfg.RequestsPerSecond = cfg.Harness.RequestsPerSecond
	}
	if cfg.Harness.Burst > 0 {
		hcfg.Burst = cfg.Harness.Burst
	}
	if err := sources.Register(registry, shared, cfg.Sources, hcfg); err != nil {
		return nil, fmt.Errorf("register adapters: %w", err)
	}
	log.Info().Strs("adapters", registry.Names()).Msg("Adapters registered")

	st, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	eng := engine.New(registry, health, cfg.Engine.ToEngine())
	analyzers := analyzer.NewRegistry(analyzer.Params{
		"trustworthy_ratio_min": cfg.Analyzer.TrustworthyRatioMin,
		"max_field_size":        cfg.Analyzer.MaxFieldSize,
	})
	auditor := audit.New(st, eng, cfg.Audit.ToAudit())
	metrics := telemetry.New()
	auditor.SetVerdictObserver(metrics.ObserveVerdict)

	server := api.New(api.Config{
		ListenAddr:     cfg.ListenAddr,
		APIKey:         cfg.APIKey,
		AllowedOrigins: cfg.AllowedOrigins,
	}, eng, analyzers, health, overrides, metrics)

	return &App{
		Config:    cfg,
		Registry:  registry,
		Health:    health,
		Overrides: overrides,
		Engine:    eng,
		Analyzers: analyzers,
		Store:     st,
		Auditor:   auditor,
		Metrics:   metrics,
		Server:    server,
	}, nil
}

// Close releases store resources.
func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close prediction store")
	}
}

func openStore(cfg config.StoreConfig) (store.PredictionStore, error) {
	switch cfg.Backend {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return store.OpenPostgres(ctx, cfg.DSN)
	default:
		return store.OpenJSONL(cfg.Path)
	}
}

func applyLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
