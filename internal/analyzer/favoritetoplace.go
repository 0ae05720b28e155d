package analyzer

import (
	"sort"
	"strconv"
	"time"

	"github.com/turfscan/turfscan/internal/model"
)

// RaceSummary is the live-scanner view of one merged race.
type RaceSummary struct {
	DisciplineTag     string    `json:"discipline_tag"`
	Venue             string    `json:"venue"`
	RaceNumber        int       `json:"race_number"`
	FieldSize         int       `json:"field_size"`
	SuperfectaOffered bool      `json:"superfecta_offered"`
	Adapters          []string  `json:"adapters"`
	StartTime         time.Time `json:"start_time"`
	MinutesToPost     float64   `json:"mtp"`
	FavoriteOdds      *float64  `json:"favorite_odds,omitempty"`
	FavoriteName      string    `json:"favorite_name,omitempty"`
	SecondFavOdds     *float64  `json:"second_fav_odds,omitempty"`
	SecondFavName     string    `json:"second_fav_name,omitempty"`
	TopFiveNumbers    []int     `json:"top_five_numbers"`
}

// FavoriteToPlace is the live scanner: it summarizes every race and splits
// the near-post opportunities into an urgent list and a watch list.
type FavoriteToPlace struct {
	now func() time.Time
}

func NewFavoriteToPlace(Params) *FavoriteToPlace {
	return &FavoriteToPlace{now: time.Now}
}

func (f *FavoriteToPlace) Name() string { return "favorite_to_place" }

// Scan builds summaries for every race plus the two derived lists.
func (f *FavoriteToPlace) Scan(races []*model.Race) (all, betNow, youMightLike []RaceSummary) {
	now := f.now()
	for _, race := range races {
		all = append(all, f.summarize(now, race))
	}

	inBetNow := map[string]bool{}
	for _, s := range all {
		if s.MinutesToPost > 0 && s.MinutesToPost <= 20 &&
			s.SecondFavOdds != nil && *s.SecondFavOdds >= 5.0 && s.FieldSize <= 8 {
			betNow = append(betNow, s)
			inBetNow[summaryKey(s)] = true
		}
	}
	// Races with a superfecta pool first, then soonest to post.
	sort.SliceStable(betNow, func(i, j int) bool {
		if betNow[i].SuperfectaOffered != betNow[j].SuperfectaOffered {
			return betNow[i].SuperfectaOffered
		}
		return betNow[i].MinutesToPost < betNow[j].MinutesToPost
	})

	for _, s := range all {
		if inBetNow[summaryKey(s)] {
			continue
		}
		// The lower bound keeps long-finished races off the watch list.
		if s.MinutesToPost > -windowBefore.Minutes() && s.MinutesToPost <= 30 &&
			s.SecondFavOdds != nil && *s.SecondFavOdds >= 4.0 {
			youMightLike = append(youMightLike, s)
			if len(youMightLike) == 5 {
				break
			}
		}
	}
	return all, betNow, youMightLike
}

// QualifyRaces adapts the scanner to the common analyzer surface: the
// qualified races are those on either derived list, and the criteria carry
// the summaries themselves.
func (f *FavoriteToPlace) QualifyRaces(races []*model.Race) *Result {
	all, betNow, youMightLike := f.Scan(races)

	wanted := map[string]bool{}
	for _, s := range betNow {
		wanted[summaryKey(s)] = true
	}
	for _, s := range youMightLike {
		wanted[summaryKey(s)] = true
	}

	res := &Result{
		Criteria: map[string]any{
			"summaries":      all,
			"bet_now":        betNow,
			"you_might_like": youMightLike,
		},
		Races: []*model.Race{},
	}
	for _, race := range races {
		if wanted[raceKey(race)] {
			res.Races = append(res.Races, race)
		}
	}
	return res
}

func (f *FavoriteToPlace) summarize(now time.Time, race *model.Race) RaceSummary {
	s := RaceSummary{
		DisciplineTag:     race.Discipline.Initial(),
		Venue:             race.Venue,
		RaceNumber:        race.RaceNumber,
		FieldSize:         len(race.ActiveRunners()),
		SuperfectaOffered: race.OffersBet(model.BetSuperfecta),
		Adapters:          race.Sources(),
		StartTime:         race.StartTime,
		MinutesToPost:     race.StartTime.Sub(now).Minutes(),
	}
	priced := pricedAscending(race)
	if len(priced) >= 1 {
		s.FavoriteOdds = &priced[0].odds
		s.FavoriteName = priced[0].runner.Name
	}
	if len(priced) >= 2 {
		s.SecondFavOdds = &priced[1].odds
		s.SecondFavName = priced[1].runner.Name
	}
	for i := 0; i < len(priced) && i < 5; i++ {
		s.TopFiveNumbers = append(s.TopFiveNumbers, priced[i].runner.Number)
	}
	return s
}

func summaryKey(s RaceSummary) string {
	return s.Venue + "|" + s.StartTime.UTC().Format("20060102-1504") + "|" + strconv.Itoa(s.RaceNumber)
}

func raceKey(r *model.Race) string {
	return r.Venue + "|" + r.StartTime.UTC().Format("20060102-1504") + "|" + strconv.Itoa(r.RaceNumber)
}

