package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/turfscan/turfscan/internal/adapter"
	"github.com/turfscan/turfscan/internal/fetch"
	"github.com/turfscan/turfscan/internal/model"
	"github.com/turfscan/turfscan/internal/normalize"
)

// RaceformResults scrapes the results side of the raceform site: finishing
// order, starting prices and the settled exotic dividends the auditor needs.
type RaceformResults struct {
	fetcher fetch.Fetcher
	baseURL string
}

func NewRaceformResults(f fetch.Fetcher, baseURL string) *RaceformResults {
	return &RaceformResults{fetcher: f, baseURL: baseURL}
}

func (r *RaceformResults) SourceName() string { return "raceform_results" }

func (r *RaceformResults) AdapterType() adapter.Type { return adapter.TypeResults }

func (r *RaceformResults) FetchData(ctx context.Context, date string) (string, error) {
	url := fmt.Sprintf("%s/results/%s", r.baseURL, date)
	return fetchText(ctx, r.fetcher, url, fetch.Options{
		PreferredEngine: fetch.EngineImpersonate,
	})
}

func (r *RaceformResults) ParseResults(raw string) ([]*model.ResultRace, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("raceform results document: %w", err)
	}

	var out []*model.ResultRace
	doc.Find("div.result").Each(func(_ int, res *goquery.Selection) {
		venue := normalize.Venue(res.AttrOr("data-venue", ""))
		num, _ := strconv.Atoi(res.AttrOr("data-race", ""))
		start, perr := time.Parse(time.RFC3339, res.AttrOr("data-post-time", ""))
		if num == 0 || perr != nil {
			return
		}
		race := &model.ResultRace{
			ID:         model.MakeRaceID("rfr", venue, start, num, disciplineFrom(res.AttrOr("data-discipline", ""))),
			Venue:      venue,
			RaceNumber: num,
			StartTime:  start,
			Discipline: disciplineFrom(res.AttrOr("data-discipline", "")),
			Source:     r.SourceName(),
		}
		res.Find("tr.finisher").Each(func(_ int, row *goquery.Selection) {
			runner := &model.ResultRunner{Runner: model.Runner{
				Name:      normalize.RunnerName(row.Find("td.name").Text()),
				Scratched: row.HasClass("scratched"),
			}}
			runner.Number, _ = strconv.Atoi(strings.TrimSpace(row.Find("td.number").Text()))
			if pos, err := strconv.Atoi(strings.TrimSpace(row.Find("td.position").Text())); err == nil {
				runner.PositionNumeric = &pos
			}
			runner.FinalWinOdds = normalize.Odds(row.Find("td.sp").Text())
			runner.WinPayout = parseMoney(row.Find("td.win-payout").Text())
			runner.PlacePayout = parseMoney(row.Find("td.place-payout").Text())
			runner.ShowPayout = parseMoney(row.Find("td.show-payout").Text())
			race.Runners = append(race.Runners, runner)
		})
		res.Find("tr.dividend").Each(func(_ int, row *goquery.Selection) {
			payout := parseMoney(row.Find("td.payout").Text())
			if payout == nil {
				return
			}
			div := &model.ExoticDividend{
				Payout:      *payout,
				Combination: strings.TrimSpace(row.Find("td.combination").Text()),
			}
			switch strings.ToLower(strings.TrimSpace(row.Find("td.bet").Text())) {
			case "trifecta":
				race.Trifecta = div
			case "exacta":
				race.Exacta = div
			case "superfecta":
				race.Superfecta = div
			}
		})
		out = append(out, race)
	})
	return out, nil
}

// parseMoney turns "$12.40" or "12.40" into a value; nil for blanks and
// dashes.
func parseMoney(s string) *float64 {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" || s == "--" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}
