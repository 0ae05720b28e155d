package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Discipline identifies the racing code a race belongs to.
type Discipline string

const (
	Thoroughbred Discipline = "thoroughbred"
	Harness      Discipline = "harness"
	Greyhound    Discipline = "greyhound"
	QuarterHorse Discipline = "quarter_horse"
)

// Initial returns the single-letter tag used in canonical keys.
func (d Discipline) Initial() string {
	switch d {
	case Harness:
		return "H"
	case Greyhound:
		return "G"
	case QuarterHorse:
		return "Q"
	default:
		return "T"
	}
}

// IDSuffix returns the race-ID suffix for the discipline.
func (d Discipline) IDSuffix() string {
	switch d {
	case Harness:
		return "_h"
	case Greyhound:
		return "_g"
	case QuarterHorse:
		return "_q"
	default:
		return "_t"
	}
}

// Exotic bet vocabulary. A race's AvailableBets only ever contains these.
const (
	BetSuperfecta  = "Superfecta"
	BetTrifecta    = "Trifecta"
	BetExacta      = "Exacta"
	BetQuinella    = "Quinella"
	BetDailyDouble = "Daily Double"
	BetPick3       = "Pick 3"
	BetPick4       = "Pick 4"
	BetPick5       = "Pick 5"
	BetPick6       = "Pick 6"
)

// Runner metadata keys set by post-parse validation and analyzers.
const (
	MetaOddsTrustworthy = "odds_source_trustworthy"
	MetaIsGoldmine      = "is_goldmine"
	MetaIsBestBet       = "is_best_bet"
	MetaSelectionNumber = "selection_number"
)

// OddsData is a single source's opinion of a runner's price. Prices are
// decimal odds (stake included), rounded to two places at parse time.
type OddsData struct {
	Win         *float64  `json:"win,omitempty"`
	Place       *float64  `json:"place,omitempty"`
	Show        *float64  `json:"show,omitempty"`
	Source      string    `json:"source"`
	LastUpdated time.Time `json:"last_updated"`
}

// Runner is a horse or greyhound in a race. Within a race a runner is
// identified by Number when Number > 0, otherwise by normalized name.
type Runner struct {
	ID        string              `json:"id,omitempty"`
	Name      string              `json:"name"`
	Number    int                 `json:"number"`
	Scratched bool                `json:"scratched"`
	Odds      map[string]OddsData `json:"odds,omitempty"`
	WinOdds   *float64            `json:"win_odds,omitempty"`
	Metadata  map[string]any      `json:"metadata,omitempty"`
}

// Key returns the runner's identity within its parent race.
func (r *Runner) Key() string {
	if r.Number > 0 {
		return fmt.Sprintf("#%d", r.Number)
	}
	return strings.ToLower(strings.TrimSpace(r.Name))
}

// SetMeta stores a metadata value, allocating the bag on first use.
func (r *Runner) SetMeta(key string, val any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = val
}

// Trustworthy reports whether validation found a usable odds line for the
// runner.
func (r *Runner) Trustworthy() bool {
	v, ok := r.Metadata[MetaOddsTrustworthy]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Clone returns a deep copy of the runner.
func (r *Runner) Clone() *Runner {
	out := &Runner{
		ID:        r.ID,
		Name:      r.Name,
		Number:    r.Number,
		Scratched: r.Scratched,
	}
	if r.WinOdds != nil {
		v := *r.WinOdds
		out.WinOdds = &v
	}
	if r.Odds != nil {
		out.Odds = make(map[string]OddsData, len(r.Odds))
		for k, v := range r.Odds {
			out.Odds[k] = v.Clone()
		}
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Clone returns a copy with pointer fields duplicated.
func (o OddsData) Clone() OddsData {
	out := o
	if o.Win != nil {
		v := *o.Win
		out.Win = &v
	}
	if o.Place != nil {
		v := *o.Place
		out.Place = &v
	}
	if o.Show != nil {
		v := *o.Show
		out.Show = &v
	}
	return out
}

// Race is one racing event observed from one or more sources.
type Race struct {
	ID                 string         `json:"id"`
	Venue              string         `json:"venue"`
	RaceNumber         int            `json:"race_number"`
	StartTime          time.Time      `json:"start_time"`
	Runners            []*Runner      `json:"runners"`
	Source             string         `json:"source"`
	Discipline         Discipline     `json:"discipline"`
	Distance           string         `json:"distance,omitempty"`
	FieldSize          int            `json:"field_size,omitempty"`
	QualificationScore *float64       `json:"qualification_score,omitempty"`
	AvailableBets      []string       `json:"available_bets,omitempty"`
	IsErrorPlaceholder bool           `json:"is_error_placeholder,omitempty"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// ActiveRunners returns non-scratched runners.
func (r *Race) ActiveRunners() []*Runner {
	out := make([]*Runner, 0, len(r.Runners))
	for _, rn := range r.Runners {
		if !rn.Scratched {
			out = append(out, rn)
		}
	}
	return out
}

// Sources returns the adapters that contributed to the race.
func (r *Race) Sources() []string {
	if r.Source == "" {
		return nil
	}
	parts := strings.Split(r.Source, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// AddSource records a contributing adapter, keeping the comma-joined field
// sorted and deduplicated.
func (r *Race) AddSource(name string) {
	seen := map[string]bool{}
	all := append(r.Sources(), name)
	uniq := all[:0]
	for _, s := range all {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		uniq = append(uniq, s)
	}
	sort.Strings(uniq)
	r.Source = strings.Join(uniq, ",")
}

// OffersBet reports whether the race carries the named exotic bet.
func (r *Race) OffersBet(name string) bool {
	for _, b := range r.AvailableBets {
		if b == name {
			return true
		}
	}
	return false
}

// SetMeta stores a metadata value, allocating the bag on first use.
func (r *Race) SetMeta(key string, val any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = val
}

// Clone returns a deep copy of the race.
func (r *Race) Clone() *Race {
	out := &Race{
		ID:                 r.ID,
		Venue:              r.Venue,
		RaceNumber:         r.RaceNumber,
		StartTime:          r.StartTime,
		Source:             r.Source,
		Discipline:         r.Discipline,
		Distance:           r.Distance,
		FieldSize:          r.FieldSize,
		IsErrorPlaceholder: r.IsErrorPlaceholder,
		ErrorMessage:       r.ErrorMessage,
	}
	if r.QualificationScore != nil {
		v := *r.QualificationScore
		out.QualificationScore = &v
	}
	if len(r.AvailableBets) > 0 {
		out.AvailableBets = append([]string(nil), r.AvailableBets...)
	}
	out.Runners = make([]*Runner, len(r.Runners))
	for i, rn := range r.Runners {
		out.Runners[i] = rn.Clone()
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
