package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turfscan/turfscan/internal/model"
)

var testNow = time.Date(2025, 10, 20, 17, 0, 0, 0, time.UTC)

func fptr(v float64) *float64 { return &v }

// buildRace creates a race starting 30 minutes from testNow with one active
// runner per given win price; a zero price means no odds at all.
func buildRace(venue string, prices ...float64) *model.Race {
	race := &model.Race{
		Venue:      venue,
		RaceNumber: 1,
		StartTime:  testNow.Add(30 * time.Minute),
		Discipline: model.Thoroughbred,
	}
	for i, p := range prices {
		r := &model.Runner{Number: i + 1, Name: "R"}
		if p > 0 {
			r.Odds = map[string]model.OddsData{"src": {Win: fptr(p), Source: "src"}}
		}
		race.Runners = append(race.Runners, r)
	}
	return race
}

func newTrifectaAt(now time.Time, p Params) *Trifecta {
	t := NewTrifecta(p)
	t.now = func() time.Time { return now }
	return t
}

func TestTrifectaQualificationBoundary(t *testing.T) {
	race := buildRace("Ascot", 2.0, 4.0, 6.0, 7.0, 8.0, 9.0, 10.0, 11.0, 12.0, 13.0)
	an := newTrifectaAt(testNow, nil)

	res := an.QualifyRaces([]*model.Race{race})
	require.Len(t, res.Races, 1, "favorite exactly at 2.0 qualifies")

	// 10 of 10 runners: field score 0; odds score 0.6*(2/10)+0.4*(4/15).
	want := 0.7 * (0.6*0.2 + 0.4*(4.0/15.0)) * 100
	assert.InDelta(t, want, *res.Races[0].QualificationScore, 0.01)
}

func TestTrifectaRejectsShortFavorite(t *testing.T) {
	race := buildRace("Ascot", 1.99, 4.0, 6.0)
	res := newTrifectaAt(testNow, nil).QualifyRaces([]*model.Race{race})
	assert.Empty(t, res.Races)
}

func TestTrifectaRejectsOversizeField(t *testing.T) {
	prices := make([]float64, 11)
	for i := range prices {
		prices[i] = 3.0 + float64(i)
	}
	race := buildRace("Ascot", prices...)
	res := newTrifectaAt(testNow, nil).QualifyRaces([]*model.Race{race})
	assert.Empty(t, res.Races)
}

func TestTrifectaTimingWindow(t *testing.T) {
	an := newTrifectaAt(testNow, nil)

	longGone := buildRace("Ascot", 3.0, 4.0, 5.0)
	longGone.StartTime = testNow.Add(-46 * time.Minute)
	farOut := buildRace("Kempton", 3.0, 4.0, 5.0)
	farOut.StartTime = testNow.Add(121 * time.Minute)
	justRan := buildRace("Windsor", 3.0, 4.0, 5.0)
	justRan.StartTime = testNow.Add(-44 * time.Minute)

	res := an.QualifyRaces([]*model.Race{longGone, farOut, justRan})
	require.Len(t, res.Races, 1)
	assert.Equal(t, "Windsor", res.Races[0].Venue)
}

func TestTrifectaTrustRatioFilter(t *testing.T) {
	// 8 active runners: 3 at the 2.75 placeholder, 5 with no odds.
	// Trust ratio 0/8 must drop the race.
	race := buildRace("Ascot", 2.75, 2.75, 2.75, 0, 0, 0, 0, 0)
	res := newTrifectaAt(testNow, nil).QualifyRaces([]*model.Race{race})
	assert.Empty(t, res.Races)
}

func TestTrifectaScoreMonotonicity(t *testing.T) {
	an := newTrifectaAt(testNow, nil)
	score := func(race *model.Race) float64 {
		res := an.QualifyRaces([]*model.Race{race})
		require.Len(t, res.Races, 1)
		return *res.Races[0].QualificationScore
	}

	// Fewer runners, all else equal, never scores lower.
	small := score(buildRace("A", 3.0, 4.5, 6.0, 7.0))
	big := score(buildRace("A", 3.0, 4.5, 6.0, 7.0, 8.0, 9.0))
	assert.GreaterOrEqual(t, small, big)

	// A bigger favorite price, within the cap, never scores lower.
	low := score(buildRace("A", 2.5, 4.5, 6.0))
	high := score(buildRace("A", 4.0, 4.5, 6.0))
	assert.GreaterOrEqual(t, high, low)
}

func TestTrifectaSortedByScoreDescending(t *testing.T) {
	weak := buildRace("Weak", 2.0, 2.6, 3.0, 4.0, 5.0, 6.0, 7.0, 8.0, 9.0, 10.0)
	strong := buildRace("Strong", 8.0, 12.0, 14.0)

	res := newTrifectaAt(testNow, nil).QualifyRaces([]*model.Race{weak, strong})
	require.Len(t, res.Races, 2)
	assert.Equal(t, "Strong", res.Races[0].Venue)
	assert.GreaterOrEqual(t, *res.Races[0].QualificationScore, *res.Races[1].QualificationScore)
}

func TestTinyFieldTrifecta(t *testing.T) {
	an := NewTinyFieldTrifecta(nil)
	an.now = func() time.Time { return testNow }

	// Six runners is within the tiny cap; odds floors are disabled but the
	// hard 2.0 favorite gate still applies.
	six := buildRace("Ascot", 2.0, 2.1, 3.0, 4.0, 5.0, 6.0)
	seven := buildRace("Kempton", 2.0, 2.1, 3.0, 4.0, 5.0, 6.0, 7.0)

	res := an.QualifyRaces([]*model.Race{six, seven})
	require.Len(t, res.Races, 1)
	assert.Equal(t, "Ascot", res.Races[0].Venue)
}

func TestSimplySuccessFlags(t *testing.T) {
	an := NewSimplySuccess(nil)
	an.now = func() time.Time { return testNow }

	goldmine := buildRace("Gold", 3.0, 4.8, 6.0)
	bestBet := buildRace("Best", 3.0, 3.6, 6.0)
	plain := buildRace("Plain", 3.0, 3.1, 6.0)

	res := an.QualifyRaces([]*model.Race{goldmine, bestBet, plain})
	require.Len(t, res.Races, 3)

	assert.Equal(t, true, goldmine.Metadata[model.MetaIsGoldmine])
	assert.Equal(t, true, goldmine.Metadata[model.MetaIsBestBet])
	assert.Nil(t, bestBet.Metadata[model.MetaIsGoldmine])
	assert.Equal(t, true, bestBet.Metadata[model.MetaIsBestBet])
	assert.Nil(t, plain.Metadata)

	for _, r := range res.Races {
		assert.Equal(t, 100.0, *r.QualificationScore)
	}
}

func TestFavoriteToPlaceLists(t *testing.T) {
	an := NewFavoriteToPlace(nil)
	an.now = func() time.Time { return testNow }

	urgent := buildRace("Urgent", 2.5, 5.5, 6.0)
	urgent.StartTime = testNow.Add(10 * time.Minute)
	// Later to post than Urgent, but the superfecta pool outranks mtp.
	urgentSuper := buildRace("Urgent Super", 2.5, 6.0, 7.0)
	urgentSuper.StartTime = testNow.Add(15 * time.Minute)
	urgentSuper.AvailableBets = []string{model.BetSuperfecta}
	watch := buildRace("Watch", 2.5, 4.2, 6.0)
	watch.StartTime = testNow.Add(25 * time.Minute)
	ignore := buildRace("Ignore", 2.5, 3.0, 6.0)
	ignore.StartTime = testNow.Add(10 * time.Minute)
	past := buildRace("Past", 2.5, 6.0, 7.0)
	past.StartTime = testNow.Add(-5 * time.Minute)
	ancient := buildRace("Ancient", 2.5, 6.0, 7.0)
	ancient.StartTime = testNow.Add(-60 * time.Minute)

	all, betNow, youMightLike := an.Scan([]*model.Race{urgent, urgentSuper, watch, ignore, past, ancient})
	assert.Len(t, all, 6)

	require.Len(t, betNow, 2)
	assert.Equal(t, "Urgent Super", betNow[0].Venue, "superfecta races sort first")
	assert.Equal(t, "Urgent", betNow[1].Venue)

	require.Len(t, youMightLike, 2, "watch list excludes bet-now and long-finished races")
	venues := []string{youMightLike[0].Venue, youMightLike[1].Venue}
	assert.ElementsMatch(t, []string{"Watch", "Past"}, venues)
}

func TestFavoriteToPlaceQualifyRaces(t *testing.T) {
	an := NewFavoriteToPlace(nil)
	an.now = func() time.Time { return testNow }

	urgent := buildRace("Urgent", 2.5, 5.5, 6.0)
	urgent.StartTime = testNow.Add(10 * time.Minute)
	ignore := buildRace("Ignore", 2.5, 3.0, 6.0)

	res := an.QualifyRaces([]*model.Race{urgent, ignore})
	require.Len(t, res.Races, 1)
	assert.Equal(t, "Urgent", res.Races[0].Venue)
	assert.NotEmpty(t, res.Criteria["bet_now"])
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry(nil)

	an, err := reg.Get("trifecta", Params{"max_field_size": 8.0})
	require.NoError(t, err)
	assert.Equal(t, "trifecta", an.Name())

	_, err = reg.Get("nope", nil)
	assert.Error(t, err)

	assert.Equal(t, []string{"favorite_to_place", "simply_success", "tiny_field_trifecta", "trifecta"}, reg.Names())
}

func TestBestOddsPicksCheapestAcrossSources(t *testing.T) {
	r := &model.Runner{Number: 1, Odds: map[string]model.OddsData{
		"a": {Win: fptr(4.0)},
		"b": {Win: fptr(3.5)},
	}}
	r.WinOdds = fptr(4.0)
	got := bestOdds(r)
	require.NotNil(t, got)
	assert.Equal(t, 3.5, *got)
}

func TestPredictionsFromResult(t *testing.T) {
	race := buildRace("Gulfstream Park", 5.0, 2.5, 8.0, 12.0, 3.0, 20.0)
	race.ID = "ob_gulfstream_park_20251020_1430_R1_t"
	race.SetMeta(model.MetaIsGoldmine, true)
	res := &Result{Races: []*model.Race{race}}

	preds := Predictions("trifecta", res, testNow)
	require.Len(t, preds, 1)

	p := preds[0]
	assert.Equal(t, race.ID, p.RaceID)
	assert.Equal(t, "trifecta", p.Analyzer)
	assert.Equal(t, 2, p.SelectionNumber, "favorite is the cheapest price")
	require.NotNil(t, p.Predicted2ndFavOdds)
	assert.Equal(t, 3.0, *p.Predicted2ndFavOdds)
	assert.Equal(t, []int{2, 5, 1, 3, 4}, p.TopFive, "priced order, capped at five")
	assert.True(t, p.IsGoldmine)
	assert.Equal(t, testNow, p.CreatedAt)
}

func TestPredictionsSkipUnpricedRaces(t *testing.T) {
	race := buildRace("Nowhere", 0, 0, 0)
	res := &Result{Races: []*model.Race{race}}
	assert.Empty(t, Predictions("trifecta", res, testNow))
}

func TestRegistryBaseParams(t *testing.T) {
	reg := NewRegistry(Params{
		"trustworthy_ratio_min": 0.5,
		"max_field_size":        12,
	})

	an, err := reg.Get("trifecta", nil)
	require.NoError(t, err)
	tri := an.(*Trifecta)
	assert.Equal(t, 12, tri.maxFieldSize, "configured default applies")
	assert.Equal(t, 0.5, tri.trustRatioMin)

	an, err = reg.Get("trifecta", Params{"max_field_size": 8.0})
	require.NoError(t, err)
	assert.Equal(t, 8, an.(*Trifecta).maxFieldSize, "request params override the base")

	an, err = reg.Get("tiny_field_trifecta", nil)
	require.NoError(t, err)
	tiny := an.(*Trifecta)
	assert.Equal(t, 6, tiny.maxFieldSize, "tiny-field keeps its own field gate")
	assert.Equal(t, 0.5, tiny.trustRatioMin, "but inherits the trust default")
}
