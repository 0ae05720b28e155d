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

// TracksideResults consumes the payout feed of the trackside tote API.
// Payouts are per $2 stake, matching the standard bet size the auditor
// settles with.
type TracksideResults struct {
	fetcher fetch.Fetcher
	baseURL string
	apiKey  string
}

func NewTracksideResults(f fetch.Fetcher, baseURL, apiKey string) *TracksideResults {
	return &TracksideResults{fetcher: f, baseURL: baseURL, apiKey: apiKey}
}

func (t *TracksideResults) SourceName() string { return "trackside_results" }

func (t *TracksideResults) AdapterType() adapter.Type { return adapter.TypeResults }

func (t *TracksideResults) FetchData(ctx context.Context, date string) (string, error) {
	url := fmt.Sprintf("%s/api/v1/results?date=%s&key=%s", t.baseURL, date, t.apiKey)
	return fetchText(ctx, t.fetcher, url, fetch.Options{
		Headers: map[string]string{"Accept": "application/json"},
	})
}

type tracksideResultsFeed struct {
	Tracks []struct {
		Name  string `json:"name"`
		Races []struct {
			RaceNumber  int    `json:"race_number"`
			PostTimeUTC string `json:"post_time_utc"`
			Finishers   []struct {
				ProgramNumber int      `json:"program_number"`
				HorseName     string   `json:"horse_name"`
				Position      *int     `json:"position"`
				FinalOdds     *float64 `json:"final_odds"`
				WinPayout     *float64 `json:"win_payout"`
				PlacePayout   *float64 `json:"place_payout"`
				ShowPayout    *float64 `json:"show_payout"`
				Scratched     bool     `json:"scratched"`
			} `json:"finishers"`
			Exotics []struct {
				Wager       string  `json:"wager"`
				Payout      float64 `json:"payout"`
				Combination string  `json:"combination"`
			} `json:"exotics"`
		} `json:"races"`
	} `json:"tracks"`
}

func (t *TracksideResults) ParseResults(raw string) ([]*model.ResultRace, error) {
	var feed tracksideResultsFeed
	if err := json.Unmarshal([]byte(raw), &feed); err != nil {
		return nil, fmt.Errorf("trackside results feed: %w", err)
	}

	var out []*model.ResultRace
	for _, track := range feed.Tracks {
		venue := normalize.Venue(track.Name)
		for _, rc := range track.Races {
			start, err := time.Parse(time.RFC3339, rc.PostTimeUTC)
			if err != nil {
				continue
			}
			race := &model.ResultRace{
				ID:         model.MakeRaceID("tsr", venue, start, rc.RaceNumber, model.Thoroughbred),
				Venue:      venue,
				RaceNumber: rc.RaceNumber,
				StartTime:  start,
				Discipline: model.Thoroughbred,
				Source:     t.SourceName(),
			}
			for _, f := range rc.Finishers {
				runner := &model.ResultRunner{Runner: model.Runner{
					Name:      normalize.RunnerName(f.HorseName),
					Number:    f.ProgramNumber,
					Scratched: f.Scratched,
				}}
				runner.PositionNumeric = f.Position
				runner.FinalWinOdds = f.FinalOdds
				runner.WinPayout = f.WinPayout
				runner.PlacePayout = f.PlacePayout
				runner.ShowPayout = f.ShowPayout
				race.Runners = append(race.Runners, runner)
			}
			for _, ex := range rc.Exotics {
				div := &model.ExoticDividend{Payout: ex.Payout, Combination: ex.Combination}
				switch ex.Wager {
				case "trifecta":
					race.Trifecta = div
				case "exacta":
					race.Exacta = div
				case "superfecta":
					race.Superfecta = div
				}
			}
			out = append(out, race)
		}
	}
	return out, nil
}
