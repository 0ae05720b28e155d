package analyzer

import (
	"math"
	"sort"
	"time"

	"github.com/turfscan/turfscan/internal/model"
)

// Timing window relative to now: races more than 45 minutes past post or
// more than two hours out are not actionable.
const (
	windowBefore = 45 * time.Minute
	windowAfter  = 120 * time.Minute
)

// Trifecta is the canonical analyzer: small fields with a reasonably priced
// favorite score best for trifecta coverage.
type Trifecta struct {
	maxFieldSize  int
	minFavOdds    float64
	minSecFavOdds float64
	trustRatioMin float64
	now           func() time.Time
}

// NewTrifecta builds the analyzer with its documented defaults, overridable
// per request.
func NewTrifecta(p Params) *Trifecta {
	return &Trifecta{
		maxFieldSize:  p.Int("max_field_size", 10),
		minFavOdds:    p.Float("min_favorite_odds", 2.0),
		minSecFavOdds: p.Float("min_second_favorite_odds", 2.5),
		trustRatioMin: p.Float("trustworthy_ratio_min", 0.7),
		now:           time.Now,
	}
}

// NewTinyFieldTrifecta is the trifecta analyzer tuned for very small
// fields, with the odds floors effectively disabled.
func NewTinyFieldTrifecta(p Params) *Trifecta {
	t := NewTrifecta(p)
	t.maxFieldSize = p.Int("max_field_size", 6)
	t.minFavOdds = p.Float("min_favorite_odds", 0.01)
	t.minSecFavOdds = p.Float("min_second_favorite_odds", 0.01)
	return t
}

func (t *Trifecta) Name() string { return "trifecta" }

func (t *Trifecta) QualifyRaces(races []*model.Race) *Result {
	res := &Result{
		Criteria: map[string]any{
			"max_field_size":           t.maxFieldSize,
			"min_favorite_odds":        t.minFavOdds,
			"min_second_favorite_odds": t.minSecFavOdds,
			"trustworthy_ratio_min":    t.trustRatioMin,
		},
		Races: []*model.Race{},
	}

	now := t.now()
	for _, race := range races {
		if len(race.ActiveRunners()) < 3 {
			continue
		}
		if !inWindow(now, race.StartTime) {
			continue
		}
		if trustRatio(race) < t.trustRatioMin {
			continue
		}
		score, ok := t.score(race)
		if !ok {
			continue
		}
		race.QualificationScore = &score
		res.Races = append(res.Races, race)
	}

	sort.SliceStable(res.Races, func(i, j int) bool {
		return *res.Races[i].QualificationScore > *res.Races[j].QualificationScore
	})
	return res
}

// score implements the field-plus-odds formula. Returns false when the race
// fails a hard gate.
func (t *Trifecta) score(race *model.Race) (float64, bool) {
	priced := pricedAscending(race)
	if len(priced) < 2 {
		return 0, false
	}
	fav, sec := priced[0].odds, priced[1].odds
	active := len(race.ActiveRunners())

	if active > t.maxFieldSize || fav < 2.0 || fav < t.minFavOdds || sec < t.minSecFavOdds {
		return 0, false
	}

	fieldScore := float64(t.maxFieldSize-active) / float64(t.maxFieldSize)
	favScore := math.Min(fav/10.0, 1.0)
	secScore := math.Min(sec/15.0, 1.0)
	oddsScore := 0.6*favScore + 0.4*secScore

	final := (0.3*fieldScore + 0.7*oddsScore) * 100
	return math.Round(final*100) / 100, true
}

func inWindow(now, start time.Time) bool {
	return start.After(now.Add(-windowBefore)) && start.Before(now.Add(windowAfter))
}
