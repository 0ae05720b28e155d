// Package analyzer holds the qualification strategies that turn a merged
// race card into ranked betting candidates. Analyzers are registered by
// name and constructed fresh per request so per-call parameters never leak
// between users.
package analyzer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/turfscan/turfscan/internal/model"
	"github.com/turfscan/turfscan/internal/normalize"
)

// Result is what every analyzer returns: the criteria it applied and the
// races that qualified.
type Result struct {
	Criteria map[string]any `json:"criteria"`
	Races    []*model.Race  `json:"races"`
}

// Analyzer qualifies races. Implementations must not mutate input races
// beyond setting the qualification score and metadata on races they accept.
type Analyzer interface {
	Name() string
	QualifyRaces(races []*model.Race) *Result
}

// Params are analyzer-specific knobs passed through from query parameters.
type Params map[string]any

// Float reads a numeric param with a default. JSON-decoded numbers arrive
// as float64; ints are accepted too.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

// Int reads an integer param with a default.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

// overlay returns a copy of p with req values taking precedence.
func (p Params) overlay(req Params) Params {
	out := make(Params, len(p)+len(req))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range req {
		out[k] = v
	}
	return out
}

// pick returns a Params holding only the named keys present in p.
func (p Params) pick(keys ...string) Params {
	out := make(Params, len(keys))
	for _, k := range keys {
		if v, ok := p[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Factory builds a fresh analyzer from request parameters.
type Factory func(p Params) Analyzer

// Registry maps analyzer names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with every built-in analyzer installed.
// Base params are the service-configured defaults; per-request params still
// override them. The tiny-field variant is defined by its own tuned gates,
// so it only inherits the trust-ratio default.
func NewRegistry(base Params) *Registry {
	trust := base.pick("trustworthy_ratio_min")
	r := &Registry{factories: make(map[string]Factory)}
	r.Install("trifecta", func(p Params) Analyzer { return NewTrifecta(base.overlay(p)) })
	r.Install("tiny_field_trifecta", func(p Params) Analyzer { return NewTinyFieldTrifecta(trust.overlay(p)) })
	r.Install("simply_success", func(p Params) Analyzer { return NewSimplySuccess(trust.overlay(p)) })
	r.Install("favorite_to_place", func(p Params) Analyzer { return NewFavoriteToPlace(p) })
	return r
}

// Install registers a factory, replacing any previous one of the same name.
func (r *Registry) Install(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Get constructs a fresh analyzer by name.
func (r *Registry) Get(name string, p Params) (Analyzer, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown analyzer %q", name)
	}
	return f(p), nil
}

// Names lists the registered analyzers sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// bestOdds reconciles a merged runner's odds map to the lowest valid price.
// The validation-set WinOdds only reflects one source; after dedup the map
// may hold better lines.
func bestOdds(r *model.Runner) *float64 {
	var best *float64
	consider := func(v *float64) {
		if v == nil || *v < normalize.MinOdds || *v >= normalize.MaxOdds {
			return
		}
		if best == nil || *v < *best {
			best = v
		}
	}
	consider(r.WinOdds)
	for _, odds := range r.Odds {
		consider(odds.Win)
	}
	if best == nil {
		return nil
	}
	v := *best
	return &v
}

// trustRatio is the share of active runners whose best line is a real
// market price.
func trustRatio(race *model.Race) float64 {
	active := race.ActiveRunners()
	if len(active) == 0 {
		return 0
	}
	trusted := 0
	for _, r := range active {
		if best := bestOdds(r); best != nil && normalize.Trustworthy(*best) {
			trusted++
		}
	}
	return float64(trusted) / float64(len(active))
}

// pricedRunner pairs a runner with its reconciled best odds.
type pricedRunner struct {
	runner *model.Runner
	odds   float64
}

// pricedAscending returns active runners that have a price, cheapest first.
// Ties keep card order so the favorite is deterministic.
func pricedAscending(race *model.Race) []pricedRunner {
	var out []pricedRunner
	for _, r := range race.ActiveRunners() {
		if best := bestOdds(r); best != nil {
			out = append(out, pricedRunner{runner: r, odds: *best})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].odds < out[j].odds })
	return out
}
