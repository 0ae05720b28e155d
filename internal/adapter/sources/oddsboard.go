package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/turfscan/turfscan/internal/adapter"
	"github.com/turfscan/turfscan/internal/fetch"
	"github.com/turfscan/turfscan/internal/model"
	"github.com/turfscan/turfscan/internal/normalize"
)

// Oddsboard consumes a commercial odds feed covering every discipline. One
// request returns the full day's meetings as JSON; prices arrive as display
// strings ("5/2", "2.75", "+250").
type Oddsboard struct {
	fetcher fetch.Fetcher
	baseURL string
	apiKey  string
}

func NewOddsboard(f fetch.Fetcher, baseURL, apiKey string) *Oddsboard {
	return &Oddsboard{fetcher: f, baseURL: baseURL, apiKey: apiKey}
}

func (o *Oddsboard) SourceName() string { return "oddsboard" }

func (o *Oddsboard) AdapterType() adapter.Type { return adapter.TypeDiscovery }

// FetchData pulls the day feed. The key travels in a header so it never
// lands in logs.
func (o *Oddsboard) FetchData(ctx context.Context, date string) (string, error) {
	url := fmt.Sprintf("%s/v2/meetings?date=%s", o.baseURL, date)
	return fetchText(ctx, o.fetcher, url, fetch.Options{
		Headers: map[string]string{
			"X-Api-Key": o.apiKey,
			"Accept":    "application/json",
		},
	})
}

type oddsboardFeed struct {
	Meetings []struct {
		Venue      string `json:"venue"`
		Discipline string `json:"discipline"`
		Races      []struct {
			Number   int      `json:"number"`
			PostTime string   `json:"post_time"`
			Distance string   `json:"distance"`
			BetTypes []string `json:"bet_types"`
			Entries  []struct {
				Program   int    `json:"program"`
				Name      string `json:"name"`
				Win       string `json:"win"`
				Place     string `json:"place"`
				Scratched bool   `json:"scratched"`
			} `json:"entries"`
		} `json:"races"`
	} `json:"meetings"`
}

func (o *Oddsboard) ParseRaces(raw string) ([]*model.Race, error) {
	var feed oddsboardFeed
	if err := json.Unmarshal([]byte(raw), &feed); err != nil {
		return nil, fmt.Errorf("oddsboard feed: %w", err)
	}

	now := time.Now().UTC()
	var out []*model.Race
	for _, m := range feed.Meetings {
		venue := normalize.Venue(m.Venue)
		disc := disciplineFrom(m.Discipline)
		for _, rc := range m.Races {
			start, err := time.Parse(time.RFC3339, rc.PostTime)
			if err != nil {
				continue
			}
			race := &model.Race{
				ID:            model.MakeRaceID("ob", venue, start, rc.Number, disc),
				Venue:         venue,
				RaceNumber:    rc.Number,
				StartTime:     start,
				Source:        o.SourceName(),
				Discipline:    disc,
				Distance:      rc.Distance,
				AvailableBets: knownBets(rc.BetTypes),
			}
			for _, e := range rc.Entries {
				runner := &model.Runner{
					Name:      normalize.RunnerName(e.Name),
					Number:    e.Program,
					Scratched: e.Scratched,
				}
				odds := model.OddsData{Source: o.SourceName(), LastUpdated: now}
				if win := normalize.Odds(e.Win); win != nil {
					odds.Win = win
				} else if normalize.IsScratched(e.Win) {
					runner.Scratched = true
				}
				odds.Place = normalize.Odds(e.Place)
				if odds.Win != nil || odds.Place != nil {
					runner.Odds = map[string]model.OddsData{o.SourceName(): odds}
				}
				race.Runners = append(race.Runners, runner)
			}
			out = append(out, race)
		}
	}
	return out, nil
}

func disciplineFrom(s string) model.Discipline {
	switch s {
	case "harness", "standardbred":
		return model.Harness
	case "greyhound", "dogs":
		return model.Greyhound
	case "quarter_horse", "quarterhorse":
		return model.QuarterHorse
	default:
		return model.Thoroughbred
	}
}

// knownBets filters an upstream bet list down to the vocabulary the rest of
// the pipeline understands.
func knownBets(in []string) []string {
	allowed := map[string]string{
		"superfecta":   model.BetSuperfecta,
		"trifecta":     model.BetTrifecta,
		"exacta":       model.BetExacta,
		"quinella":     model.BetQuinella,
		"daily double": model.BetDailyDouble,
		"pick 3":       model.BetPick3,
		"pick 4":       model.BetPick4,
		"pick 5":       model.BetPick5,
		"pick 6":       model.BetPick6,
	}
	var out []string
	for _, b := range in {
		if canonical, ok := allowed[normalizeBetName(b)]; ok {
			out = append(out, canonical)
		}
	}
	return out
}

func normalizeBetName(s string) string {
	out := make([]rune, 0, len(s))
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, c+('a'-'A'))
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
