// Package adapter defines the uniform contract source-specific scrapers
// implement, and the harness that wraps each one with rate limiting, circuit
// breaking, retries, manual-override pickup and post-parse validation.
package adapter

import (
	"context"

	"github.com/turfscan/turfscan/internal/fetch"
	"github.com/turfscan/turfscan/internal/guard"
	"github.com/turfscan/turfscan/internal/model"
	"github.com/turfscan/turfscan/internal/override"
)

// Type distinguishes card scrapers from result scrapers.
type Type string

const (
	TypeDiscovery Type = "discovery"
	TypeResults   Type = "results"
)

// Info is the identity every adapter carries.
type Info interface {
	SourceName() string
	AdapterType() Type
}

// Discovery adapters return upcoming races with runners and odds for a
// date (YYYY-MM-DD). FetchData does the network work and may fail;
// ParseRaces is pure.
type Discovery interface {
	Info
	FetchData(ctx context.Context, date string) (string, error)
	ParseRaces(raw string) ([]*model.Race, error)
}

// Results adapters return finishing positions and payouts for completed
// races.
type Results interface {
	Info
	FetchData(ctx context.Context, date string) (string, error)
	ParseResults(raw string) ([]*model.ResultRace, error)
}

// Context carries the shared collaborators the engine constructs once and
// hands to every adapter. No package-level singletons.
type Context struct {
	Fetcher   fetch.Fetcher
	Health    *guard.Monitor
	Overrides *override.Manager
}
