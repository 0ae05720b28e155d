// Package audit settles predictions against fetched results: match each
// unverified tip to a result race, decide whether the bet cashed, and write
// the verdict back to the store.
package audit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/turfscan/turfscan/internal/adapter"
	"github.com/turfscan/turfscan/internal/model"
	"github.com/turfscan/turfscan/internal/store"
)

// ResultsFetcher is the slice of the engine the auditor needs.
type ResultsFetcher interface {
	FetchResults(ctx context.Context, date string) ([]*model.ResultRace, []adapter.Report)
}

// Config tunes the audit pass.
type Config struct {
	Lookback    time.Duration
	StandardBet float64

	// AllowDisciplineFallback enables the third, discipline-blind match
	// attempt. Off by default: it can pair a harness tip with a
	// thoroughbred result at the same track and race number.
	AllowDisciplineFallback bool
}

// DefaultConfig: 48h lookback, $2 standard bet, no discipline fallback.
func DefaultConfig() Config {
	return Config{Lookback: 48 * time.Hour, StandardBet: 2.00}
}

// Summary reports one audit run.
type Summary struct {
	Pending   int `json:"pending"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
	Cashed    int `json:"cashed"`
	Estimated int `json:"estimated"`
	Burned    int `json:"burned"`
	Void      int `json:"void"`
}

// Auditor drives the settle loop.
type Auditor struct {
	store   store.PredictionStore
	fetcher ResultsFetcher
	cfg     Config
	now     func() time.Time
	observe func(model.Verdict)
}

// New builds an auditor.
func New(st store.PredictionStore, fetcher ResultsFetcher, cfg Config) *Auditor {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultConfig().Lookback
	}
	if cfg.StandardBet <= 0 {
		cfg.StandardBet = DefaultConfig().StandardBet
	}
	return &Auditor{store: st, fetcher: fetcher, cfg: cfg, now: time.Now}
}

// SetLookback overrides the configured audit window, for one-shot CLI runs.
func (a *Auditor) SetLookback(d time.Duration) {
	if d > 0 {
		a.cfg.Lookback = d
	}
}

// SetVerdictObserver registers a callback invoked once per settled verdict,
// used to feed the verdict counters.
func (a *Auditor) SetVerdictObserver(fn func(model.Verdict)) {
	a.observe = fn
}

// Run audits every pending prediction inside the lookback window. Tips with
// no matching result stay pending for the next run.
func (a *Auditor) Run(ctx context.Context) (*Summary, error) {
	now := a.now()
	pending, err := a.store.PendingAudits(ctx, now.Add(-a.cfg.Lookback), now)
	if err != nil {
		return nil, fmt.Errorf("load pending audits: %w", err)
	}
	summary := &Summary{Pending: len(pending)}
	if len(pending) == 0 {
		return summary, nil
	}

	var results []*model.ResultRace
	for _, date := range distinctDates(pending) {
		dateResults, reports := a.fetcher.FetchResults(ctx, date)
		results = append(results, dateResults...)
		for _, rep := range reports {
			if rep.Status != adapter.StatusSuccess {
				log.Warn().Str("adapter", rep.Adapter).Str("date", date).
					Str("error", rep.ErrorMessage).Msg("Results adapter failed during audit")
			}
		}
	}

	idx := buildIndex(results)
	var audited []*model.Prediction
	for _, p := range pending {
		res := idx.match(p, a.cfg.AllowDisciplineFallback)
		if res == nil {
			summary.Unmatched++
			continue
		}
		a.evaluate(p, res, now)
		audited = append(audited, p)
		summary.Matched++
		switch p.Verdict {
		case model.VerdictCashed:
			summary.Cashed++
		case model.VerdictCashedEstimated:
			summary.Estimated++
		case model.VerdictBurned:
			summary.Burned++
		case model.VerdictVoid:
			summary.Void++
		}
		if a.observe != nil {
			a.observe(p.Verdict)
		}
	}

	if len(audited) > 0 {
		if err := a.store.UpdateAudits(ctx, audited); err != nil {
			return nil, fmt.Errorf("persist audit verdicts: %w", err)
		}
	}
	return summary, nil
}

// resultIndex holds the strict and relaxed lookup maps.
type resultIndex struct {
	strict  map[string]*model.ResultRace
	relaxed map[string]*model.ResultRace
}

func buildIndex(results []*model.ResultRace) *resultIndex {
	idx := &resultIndex{
		strict:  make(map[string]*model.ResultRace, len(results)),
		relaxed: make(map[string]*model.ResultRace, len(results)),
	}
	// The results arrive in whatever order the fan-out finished; sorting by
	// canonical key makes the first-wins maps independent of that order.
	sorted := append([]*model.ResultRace(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CanonicalKey() < sorted[j].CanonicalKey()
	})
	for _, r := range sorted {
		key := r.CanonicalKey()
		if _, ok := idx.strict[key]; !ok {
			idx.strict[key] = r
		}
		// First entry wins so a relaxed collision never shadows the race
		// already reachable by its strict key.
		rk := r.RelaxedKey()
		if _, ok := idx.relaxed[rk]; !ok {
			idx.relaxed[rk] = r
		}
	}
	return idx
}

// match tries strict, then time-relaxed, then (optionally) a
// discipline-blind scan.
func (idx *resultIndex) match(p *model.Prediction, disciplineFallback bool) *model.ResultRace {
	if r, ok := idx.strict[p.CanonicalKey()]; ok {
		return r
	}
	if r, ok := idx.relaxed[p.RelaxedKey()]; ok {
		return r
	}
	if !disciplineFallback {
		return nil
	}
	want := strings.TrimSuffix(p.CanonicalKey(), "|"+p.Discipline.Initial())
	keys := make([]string, 0, len(idx.strict))
	for k := range idx.strict {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.HasPrefix(k, want+"|") {
			log.Warn().Str("race_id", p.RaceID).Str("matched_key", k).
				Msg("Audit matched across disciplines")
			return idx.strict[k]
		}
	}
	return nil
}

// evaluate settles one tip against its matched result and fills every
// write-back field.
func (a *Auditor) evaluate(p *model.Prediction, res *model.ResultRace, now time.Time) {
	bet := a.cfg.StandardBet
	p.AuditCompleted = true
	ts := now
	p.AuditTimestamp = &ts
	p.ActualTop5 = topFiveString(res)
	p.Actual2ndFavOdds = secondFavoriteOdds(res)
	if res.Trifecta != nil {
		v := res.Trifecta.Payout
		p.TrifectaPayout = &v
		p.TrifectaCombination = res.Trifecta.Combination
	}
	if res.Superfecta != nil {
		v := res.Superfecta.Payout
		p.SuperfectaPayout = &v
		p.SuperfectaCombination = res.Superfecta.Combination
	}
	if r := runnerAtPosition(res, 1); r != nil && r.PlacePayout != nil {
		v := *r.PlacePayout
		p.Top1PlacePayout = &v
	}
	if r := runnerAtPosition(res, 2); r != nil && r.PlacePayout != nil {
		v := *r.PlacePayout
		p.Top2PlacePayout = &v
	}

	selected := res.RunnerByNumber(p.SelectedNumber())
	if selected == nil {
		p.Verdict = model.VerdictVoid
		p.NetProfit = 0
		return
	}
	p.SelectionPosition = selected.PositionNumeric
	if selected.PositionNumeric == nil {
		// Finished outside the recorded top five.
		p.Verdict = model.VerdictBurned
		p.NetProfit = -bet
		return
	}

	paid := placesPaid(len(res.ActiveRunners()))
	if *selected.PositionNumeric > paid {
		p.Verdict = model.VerdictBurned
		p.NetProfit = -bet
		return
	}

	if selected.PlacePayout != nil && *selected.PlacePayout > 0 {
		p.Verdict = model.VerdictCashed
		p.NetProfit = *selected.PlacePayout - bet
		return
	}

	// No payout recorded: estimate from the final price, floored so a
	// cashed place never rounds to nothing.
	final := 0.0
	if selected.FinalWinOdds != nil {
		final = *selected.FinalWinOdds
	}
	p.Verdict = model.VerdictCashedEstimated
	p.NetProfit = max(0.1, (final-1.0)/5.0) * bet
}

// placesPaid: 1 for fields of four or fewer, 2 for five to seven, 3 for
// eight plus.
func placesPaid(fieldSize int) int {
	switch {
	case fieldSize <= 4:
		return 1
	case fieldSize <= 7:
		return 2
	default:
		return 3
	}
}

func runnerAtPosition(res *model.ResultRace, pos int) *model.ResultRunner {
	for _, r := range res.Runners {
		if r.PositionNumeric != nil && *r.PositionNumeric == pos {
			return r
		}
	}
	return nil
}

// topFiveString is the comma-joined program numbers of the first five
// finishers.
func topFiveString(res *model.ResultRace) string {
	type placed struct{ pos, number int }
	var finishers []placed
	for _, r := range res.Runners {
		if r.PositionNumeric != nil {
			finishers = append(finishers, placed{pos: *r.PositionNumeric, number: r.Number})
		}
	}
	sort.Slice(finishers, func(i, j int) bool { return finishers[i].pos < finishers[j].pos })
	var parts []string
	for i, f := range finishers {
		if i == 5 {
			break
		}
		parts = append(parts, strconv.Itoa(f.number))
	}
	return strings.Join(parts, ",")
}

// secondFavoriteOdds derives the second-lowest final price among runners
// that have one.
func secondFavoriteOdds(res *model.ResultRace) *float64 {
	var prices []float64
	for _, r := range res.ActiveRunners() {
		if r.FinalWinOdds != nil {
			prices = append(prices, *r.FinalWinOdds)
		}
	}
	if len(prices) < 2 {
		return nil
	}
	sort.Float64s(prices)
	v := prices[1]
	return &v
}

// distinctDates lists the Eastern calendar dates the pending tips ran on,
// in order of first appearance.
func distinctDates(preds []*model.Prediction) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range preds {
		d := p.StartTime.In(model.Eastern()).Format("2006-01-02")
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}
