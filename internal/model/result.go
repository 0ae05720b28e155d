package model

import (
	"fmt"
	"strings"
	"time"
)

// ResultRunner extends a runner with its final finishing data.
type ResultRunner struct {
	Runner
	PositionNumeric *int     `json:"position_numeric,omitempty"`
	FinalWinOdds    *float64 `json:"final_win_odds,omitempty"`
	WinPayout       *float64 `json:"win_payout,omitempty"`
	PlacePayout     *float64 `json:"place_payout,omitempty"`
	ShowPayout      *float64 `json:"show_payout,omitempty"`
}

// ExoticDividend is a settled exotic bet payout and its winning combination.
type ExoticDividend struct {
	Payout      float64 `json:"payout"`
	Combination string  `json:"combination"`
}

// ResultRace is a completed race with finishing order and payouts, as parsed
// from a results-type adapter.
type ResultRace struct {
	ID         string          `json:"id"`
	Venue      string          `json:"venue"`
	RaceNumber int             `json:"race_number"`
	StartTime  time.Time       `json:"start_time"`
	Discipline Discipline      `json:"discipline"`
	Source     string          `json:"source"`
	Runners    []*ResultRunner `json:"runners"`
	Trifecta   *ExoticDividend `json:"trifecta,omitempty"`
	Exacta     *ExoticDividend `json:"exacta,omitempty"`
	Superfecta *ExoticDividend `json:"superfecta,omitempty"`
}

// ActiveRunners returns non-scratched runners.
func (r *ResultRace) ActiveRunners() []*ResultRunner {
	out := make([]*ResultRunner, 0, len(r.Runners))
	for _, rn := range r.Runners {
		if !rn.Scratched {
			out = append(out, rn)
		}
	}
	return out
}

// RunnerByNumber finds a runner by saddle/trap number.
func (r *ResultRace) RunnerByNumber(n int) *ResultRunner {
	for _, rn := range r.Runners {
		if rn.Number == n {
			return rn
		}
	}
	return nil
}

// canonicalToken reduces a venue to its lowercase alphanumeric form.
func canonicalToken(venue string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(venue) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// CanonicalKey is the strict audit match key:
// venue|race|yyyymmdd|HHMM|disc.
func (r *ResultRace) CanonicalKey() string {
	return CanonicalResultKey(r.Venue, r.RaceNumber, r.StartTime, r.Discipline)
}

// RelaxedKey drops the HHMM component: venue|race|yyyymmdd|disc.
func (r *ResultRace) RelaxedKey() string {
	return RelaxedResultKey(r.Venue, r.RaceNumber, r.StartTime, r.Discipline)
}

// CanonicalResultKey builds the strict key from components; shared between
// result races and predictions so both sides agree byte for byte.
func CanonicalResultKey(venue string, raceNumber int, start time.Time, disc Discipline) string {
	local := start.In(eastern)
	return fmt.Sprintf("%s|%d|%s|%s|%s",
		canonicalToken(venue), raceNumber,
		local.Format("20060102"), local.Format("1504"), disc.Initial())
}

// RelaxedResultKey builds the time-relaxed key from components.
func RelaxedResultKey(venue string, raceNumber int, start time.Time, disc Discipline) string {
	local := start.In(eastern)
	return fmt.Sprintf("%s|%d|%s|%s",
		canonicalToken(venue), raceNumber, local.Format("20060102"), disc.Initial())
}
