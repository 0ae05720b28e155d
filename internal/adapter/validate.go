package adapter

import (
	"math"

	"github.com/turfscan/turfscan/internal/model"
	"github.com/turfscan/turfscan/internal/normalize"
)

// MetaTrustRatio is the per-race metadata key validation writes.
const MetaTrustRatio = "trust_ratio"

// ValidateRaces applies post-parse validation to every race an adapter
// produced. Races with fewer than two runners are dropped; suspect runner
// numbering is re-indexed; each runner gets its best win odds and a
// trustworthiness flag. The returned ratio is trustworthy runners over
// active runners across all kept races.
func ValidateRaces(in []*model.Race) ([]*model.Race, float64) {
	out := make([]*model.Race, 0, len(in))
	trustworthy, active := 0, 0

	for _, race := range in {
		if race == nil || len(race.Runners) < 2 {
			continue
		}
		if needsReindex(race) {
			for i, r := range race.Runners {
				r.Number = i + 1
			}
		}

		raceTrustworthy, raceActive := 0, 0
		for _, r := range race.Runners {
			if r.Scratched {
				continue
			}
			raceActive++
			best := bestWinOdds(r)
			r.WinOdds = best
			ok := best != nil && normalize.Trustworthy(*best)
			r.SetMeta(model.MetaOddsTrustworthy, ok)
			if ok {
				raceTrustworthy++
			}
		}

		race.FieldSize = raceActive
		if raceActive > 0 {
			race.SetMeta(MetaTrustRatio, float64(raceTrustworthy)/float64(raceActive))
		}
		trustworthy += raceTrustworthy
		active += raceActive
		out = append(out, race)
	}

	ratio := 0.0
	if active > 0 {
		ratio = float64(trustworthy) / float64(active)
	}
	return out, ratio
}

// needsReindex detects adapters that put horse IDs or nothing at all into
// the number field.
func needsReindex(race *model.Race) bool {
	allZero := true
	fieldSize := len(race.ActiveRunners())
	for _, r := range race.Runners {
		if r.Number != 0 {
			allZero = false
		}
		if r.Number > 100 {
			return true
		}
		if r.Number > 20 && r.Number > fieldSize+10 {
			return true
		}
	}
	return allZero
}

// bestWinOdds picks the lowest valid win price across every source that
// quoted the runner.
func bestWinOdds(r *model.Runner) *float64 {
	best := math.Inf(1)
	found := false
	for _, odds := range r.Odds {
		if odds.Win == nil {
			continue
		}
		v := *odds.Win
		if v < normalize.MinOdds || v >= normalize.MaxOdds {
			continue
		}
		if v < best {
			best = v
			found = true
		}
	}
	if !found {
		return nil
	}
	return &best
}

// TrustRatio reads the validation-computed ratio off a race; defaults to 1
// for races that skipped validation.
func TrustRatio(race *model.Race) float64 {
	if race == nil || race.Metadata == nil {
		return 1.0
	}
	if v, ok := race.Metadata[MetaTrustRatio].(float64); ok {
		return v
	}
	return 1.0
}
