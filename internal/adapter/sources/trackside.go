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

// Trackside consumes a North American thoroughbred tote API. Prices arrive
// as decimal numbers already, and the feed includes a morning-line flag the
// parser uses to mark odds that are not yet a live market.
type Trackside struct {
	fetcher fetch.Fetcher
	baseURL string
	apiKey  string
}

func NewTrackside(f fetch.Fetcher, baseURL, apiKey string) *Trackside {
	return &Trackside{fetcher: f, baseURL: baseURL, apiKey: apiKey}
}

func (t *Trackside) SourceName() string { return "trackside" }

func (t *Trackside) AdapterType() adapter.Type { return adapter.TypeDiscovery }

func (t *Trackside) FetchData(ctx context.Context, date string) (string, error) {
	url := fmt.Sprintf("%s/api/v1/cards?date=%s&key=%s", t.baseURL, date, t.apiKey)
	return fetchText(ctx, t.fetcher, url, fetch.Options{
		Headers: map[string]string{"Accept": "application/json"},
	})
}

type tracksideFeed struct {
	Tracks []struct {
		Name  string `json:"name"`
		Races []struct {
			RaceNumber  int      `json:"race_number"`
			PostTimeUTC string   `json:"post_time_utc"`
			Distance    string   `json:"distance"`
			Wagers      []string `json:"wagers"`
			Entries     []struct {
				ProgramNumber int      `json:"program_number"`
				HorseName     string   `json:"horse_name"`
				WinOdds       *float64 `json:"win_odds"`
				MorningLine   bool     `json:"morning_line"`
				Scratched     bool     `json:"scratched"`
			} `json:"entries"`
		} `json:"races"`
	} `json:"tracks"`
}

func (t *Trackside) ParseRaces(raw string) ([]*model.Race, error) {
	var feed tracksideFeed
	if err := json.Unmarshal([]byte(raw), &feed); err != nil {
		return nil, fmt.Errorf("trackside feed: %w", err)
	}

	now := time.Now().UTC()
	var out []*model.Race
	for _, track := range feed.Tracks {
		venue := normalize.Venue(track.Name)
		for _, rc := range track.Races {
			start, err := time.Parse(time.RFC3339, rc.PostTimeUTC)
			if err != nil {
				continue
			}
			race := &model.Race{
				ID:            model.MakeRaceID("ts", venue, start, rc.RaceNumber, model.Thoroughbred),
				Venue:         venue,
				RaceNumber:    rc.RaceNumber,
				StartTime:     start,
				Source:        t.SourceName(),
				Discipline:    model.Thoroughbred,
				Distance:      rc.Distance,
				AvailableBets: knownBets(rc.Wagers),
			}
			for _, e := range rc.Entries {
				runner := &model.Runner{
					Name:      normalize.RunnerName(e.HorseName),
					Number:    e.ProgramNumber,
					Scratched: e.Scratched,
				}
				if e.WinOdds != nil && !e.MorningLine {
					if win := normalize.Odds(fmt.Sprintf("%.2f", *e.WinOdds)); win != nil {
						runner.Odds = map[string]model.OddsData{
							t.SourceName(): {Win: win, Source: t.SourceName(), LastUpdated: now},
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
