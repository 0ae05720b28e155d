package analyzer

import (
	"time"

	"github.com/turfscan/turfscan/internal/model"
)

// SimplySuccess qualifies every actionable race at full score and flags the
// standouts: goldmine races where the second favorite drifts well clear of
// the favorite, and a looser best-bet tier.
type SimplySuccess struct {
	trustRatioMin float64
	now           func() time.Time
}

func NewSimplySuccess(p Params) *SimplySuccess {
	return &SimplySuccess{
		trustRatioMin: p.Float("trustworthy_ratio_min", 0.7),
		now:           time.Now,
	}
}

func (s *SimplySuccess) Name() string { return "simply_success" }

func (s *SimplySuccess) QualifyRaces(races []*model.Race) *Result {
	res := &Result{
		Criteria: map[string]any{
			"trustworthy_ratio_min": s.trustRatioMin,
			"goldmine_sec_fav_min":  4.5,
			"best_bet_sec_fav_min":  3.5,
		},
		Races: []*model.Race{},
	}

	now := s.now()
	for _, race := range races {
		active := race.ActiveRunners()
		if len(active) < 2 {
			continue
		}
		if !inWindow(now, race.StartTime) {
			continue
		}
		if trustRatio(race) < s.trustRatioMin {
			continue
		}

		score := 100.0
		race.QualificationScore = &score

		if priced := pricedAscending(race); len(priced) >= 2 {
			fav, sec := priced[0].odds, priced[1].odds
			spread := sec - fav
			if len(active) <= 11 && sec >= 4.5 && spread > 0.25 {
				race.SetMeta(model.MetaIsGoldmine, true)
			}
			if len(active) <= 11 && sec >= 3.5 && spread > 0.25 {
				race.SetMeta(model.MetaIsBestBet, true)
			}
		}
		res.Races = append(res.Races, race)
	}
	return res
}
