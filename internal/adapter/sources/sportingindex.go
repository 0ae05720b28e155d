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

// Sportingindex scrapes a bookmaker's daily racing index. The page mixes
// thoroughbred, harness and greyhound sections and reports venues with race
// titles glued on ("Ascot Novice Hurdle"), which is what the venue
// normalizer exists for. The site is JavaScript-heavy, so the browser
// engine is preferred.
type Sportingindex struct {
	fetcher fetch.Fetcher
	baseURL string
}

func NewSportingindex(f fetch.Fetcher, baseURL string) *Sportingindex {
	return &Sportingindex{fetcher: f, baseURL: baseURL}
}

func (s *Sportingindex) SourceName() string { return "sportingindex" }

func (s *Sportingindex) AdapterType() adapter.Type { return adapter.TypeDiscovery }

func (s *Sportingindex) FetchData(ctx context.Context, date string) (string, error) {
	url := fmt.Sprintf("%s/racing?day=%s", s.baseURL, date)
	return fetchText(ctx, s.fetcher, url, fetch.Options{
		PreferredEngine: fetch.EngineBrowser,
		WaitForSelector: "section[data-discipline]",
		NetworkIdle:     true,
	})
}

func (s *Sportingindex) ParseRaces(raw string) ([]*model.Race, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("sportingindex document: %w", err)
	}

	now := time.Now().UTC()
	var out []*model.Race
	doc.Find("section[data-discipline]").Each(func(_ int, section *goquery.Selection) {
		disc := disciplineFrom(section.AttrOr("data-discipline", ""))
		section.Find("article.event").Each(func(_ int, ev *goquery.Selection) {
			venue := normalize.Venue(ev.Find("h2.event-title").First().Text())
			num, _ := strconv.Atoi(ev.AttrOr("data-race-number", ""))
			start, perr := time.Parse(time.RFC3339, ev.AttrOr("data-start", ""))
			if num == 0 || perr != nil {
				return
			}
			race := &model.Race{
				ID:         model.MakeRaceID("si", venue, start, num, disc),
				Venue:      venue,
				RaceNumber: num,
				StartTime:  start,
				Source:     s.SourceName(),
				Discipline: disc,
			}
			ev.Find("div.selection").Each(func(_ int, sel *goquery.Selection) {
				runner := &model.Runner{
					Name: normalize.RunnerName(sel.Find("span.runner-name").Text()),
				}
				runner.Number, _ = strconv.Atoi(sel.AttrOr("data-number", ""))

				price := strings.TrimSpace(sel.Find("button.price").Text())
				if normalize.IsScratched(price) {
					runner.Scratched = true
				} else if win := normalize.Odds(price); win != nil {
					runner.Odds = map[string]model.OddsData{
						s.SourceName(): {Win: win, Source: s.SourceName(), LastUpdated: now},
					}
				}
				race.Runners = append(race.Runners, runner)
			})
			out = append(out, race)
		})
	})
	return out, nil
}
