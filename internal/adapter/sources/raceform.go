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

// Raceform scrapes HTML race cards. The day page carries every meeting's
// cards inline, so a single fetch covers the whole date. The site renders
// fine without JavaScript but sits behind aggressive bot filtering, so the
// fetcher's impersonation engines matter here.
type Raceform struct {
	fetcher fetch.Fetcher
	baseURL string
}

func NewRaceform(f fetch.Fetcher, baseURL string) *Raceform {
	return &Raceform{fetcher: f, baseURL: baseURL}
}

func (r *Raceform) SourceName() string { return "raceform" }

func (r *Raceform) AdapterType() adapter.Type { return adapter.TypeDiscovery }

func (r *Raceform) FetchData(ctx context.Context, date string) (string, error) {
	url := fmt.Sprintf("%s/racecards/%s", r.baseURL, date)
	return fetchText(ctx, r.fetcher, url, fetch.Options{
		PreferredEngine: fetch.EngineImpersonate,
	})
}

func (r *Raceform) ParseRaces(raw string) ([]*model.Race, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("raceform document: %w", err)
	}

	now := time.Now().UTC()
	var out []*model.Race
	doc.Find("div.meeting").Each(func(_ int, meeting *goquery.Selection) {
		venue := normalize.Venue(meeting.AttrOr("data-venue", ""))
		disc := disciplineFrom(meeting.AttrOr("data-discipline", ""))

		meeting.Find("section.race-card").Each(func(_ int, card *goquery.Selection) {
			num, _ := strconv.Atoi(card.AttrOr("data-race", ""))
			start, perr := time.Parse(time.RFC3339, card.AttrOr("data-post-time", ""))
			if num == 0 || perr != nil {
				return
			}
			race := &model.Race{
				ID:         model.MakeRaceID("rf", venue, start, num, disc),
				Venue:      venue,
				RaceNumber: num,
				StartTime:  start,
				Source:     r.SourceName(),
				Discipline: disc,
				Distance:   strings.TrimSpace(card.Find("span.distance").First().Text()),
			}
			card.Find("tr.runner").Each(func(_ int, row *goquery.Selection) {
				runner := &model.Runner{
					Name:      normalize.RunnerName(row.Find("td.name").Text()),
					Scratched: row.HasClass("scratched"),
				}
				runner.Number, _ = strconv.Atoi(strings.TrimSpace(row.Find("td.number").Text()))

				rawOdds := strings.TrimSpace(row.Find("td.odds").Text())
				if normalize.IsScratched(rawOdds) {
					runner.Scratched = true
				} else if win := normalize.Odds(rawOdds); win != nil {
					runner.Odds = map[string]model.OddsData{
						r.SourceName(): {Win: win, Source: r.SourceName(), LastUpdated: now},
					}
				}
				race.Runners = append(race.Runners, runner)
			})
			out = append(out, race)
		})
	})
	return out, nil
}
