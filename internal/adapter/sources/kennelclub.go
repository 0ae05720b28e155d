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

// Kennelclub consumes a greyhound card API. Traps double as program
// numbers, times are track-local 24h clock, and prices are decimal floats
// with 0 meaning no market yet.
type Kennelclub struct {
	fetcher fetch.Fetcher
	baseURL string
}

func NewKennelclub(f fetch.Fetcher, baseURL string) *Kennelclub {
	return &Kennelclub{fetcher: f, baseURL: baseURL}
}

func (k *Kennelclub) SourceName() string { return "kennelclub" }

func (k *Kennelclub) AdapterType() adapter.Type { return adapter.TypeDiscovery }

func (k *Kennelclub) FetchData(ctx context.Context, date string) (string, error) {
	url := fmt.Sprintf("%s/cards/%s.json", k.baseURL, date)
	return fetchText(ctx, k.fetcher, url, fetch.Options{
		Headers: map[string]string{"Accept": "application/json"},
	})
}

type kennelclubFeed struct {
	Date  string `json:"date"`
	Cards []struct {
		Track string `json:"track"`
		Races []struct {
			Race  int    `json:"race"`
			Time  string `json:"time"`
			Traps []struct {
				Trap      int     `json:"trap"`
				Dog       string  `json:"dog"`
				Price     float64 `json:"price"`
				Scratched bool    `json:"scratched"`
			} `json:"traps"`
		} `json:"races"`
	} `json:"cards"`
}

func (k *Kennelclub) ParseRaces(raw string) ([]*model.Race, error) {
	var feed kennelclubFeed
	if err := json.Unmarshal([]byte(raw), &feed); err != nil {
		return nil, fmt.Errorf("kennelclub feed: %w", err)
	}
	day, err := time.ParseInLocation("2006-01-02", feed.Date, model.Eastern())
	if err != nil {
		return nil, fmt.Errorf("kennelclub feed date: %w", err)
	}

	now := time.Now().UTC()
	var out []*model.Race
	for _, card := range feed.Cards {
		venue := normalize.Venue(card.Track)
		for _, rc := range card.Races {
			start, perr := parseClockTime(day, rc.Time)
			if perr != nil {
				continue
			}
			race := &model.Race{
				ID:         model.MakeRaceID("kc", venue, start, rc.Race, model.Greyhound),
				Venue:      venue,
				RaceNumber: rc.Race,
				StartTime:  start,
				Source:     k.SourceName(),
				Discipline: model.Greyhound,
			}
			for _, trap := range rc.Traps {
				runner := &model.Runner{
					Name:      normalize.RunnerName(trap.Dog),
					Number:    trap.Trap,
					Scratched: trap.Scratched,
				}
				if trap.Price > 0 {
					if win := normalize.Odds(fmt.Sprintf("%.2f", trap.Price)); win != nil {
						runner.Odds = map[string]model.OddsData{
							k.SourceName(): {Win: win, Source: k.SourceName(), LastUpdated: now},
						}
					}
				}
				race.Runners = append(race.Runners, runner)
			}
			out = append(out, race)
		}
	}
	return out, nil
}
