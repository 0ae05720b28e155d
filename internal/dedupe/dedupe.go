// Package dedupe folds races observed from overlapping sources into single
// merged races. Odds from different adapters are preserved side by side in
// each runner's odds map; reconciliation (picking a best line) is the
// analyzers' job.
package dedupe

import (
	"sort"

	"github.com/turfscan/turfscan/internal/model"
)

// Merge groups races by dedup key and unions each group into one race.
// Inputs are deep-copied before mutation so callers never observe changes,
// and the output is sorted by dedup key so downstream stages see a
// deterministic order.
func Merge(races []*model.Race) []*model.Race {
	groups := make(map[string]*model.Race)
	order := make([]string, 0, len(races))

	for _, in := range races {
		if in == nil || in.IsErrorPlaceholder {
			continue
		}
		race := in.Clone()
		key := race.DedupKey()

		acc, ok := groups[key]
		if !ok {
			groups[key] = race
			order = append(order, key)
			continue
		}
		mergeInto(acc, race)
	}

	sort.Strings(order)
	out := make([]*model.Race, 0, len(order))
	for _, key := range order {
		acc := groups[key]
		acc.FieldSize = len(acc.ActiveRunners())
		out = append(out, acc)
	}
	return out
}

// mergeInto unions the incoming race's runners and odds into the
// accumulator.
func mergeInto(acc, in *model.Race) {
	byKey := make(map[string]*model.Runner, len(acc.Runners))
	for _, r := range acc.Runners {
		byKey[r.Key()] = r
	}

	for _, r := range in.Runners {
		existing, ok := byKey[r.Key()]
		if !ok {
			acc.Runners = append(acc.Runners, r)
			byKey[r.Key()] = r
			continue
		}
		if existing.Odds == nil && len(r.Odds) > 0 {
			existing.Odds = make(map[string]model.OddsData, len(r.Odds))
		}
		// Source-name keys collide only when the same adapter reports
		// twice; newest wins.
		for src, odds := range r.Odds {
			existing.Odds[src] = odds
		}
		if existing.Scratched && !r.Scratched {
			existing.Scratched = false
		}
		if existing.ID == "" {
			existing.ID = r.ID
		}
	}

	for _, src := range in.Sources() {
		acc.AddSource(src)
	}
	for _, bet := range in.AvailableBets {
		if !acc.OffersBet(bet) {
			acc.AvailableBets = append(acc.AvailableBets, bet)
		}
	}
	if acc.Distance == "" {
		acc.Distance = in.Distance
	}
}
