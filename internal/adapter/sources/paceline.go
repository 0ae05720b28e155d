package sources

import (
	"context"
	"encoding/json"
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

// Paceline scrapes a harness racing site that publishes one page per track.
// FetchData walks the day index, pulls every track page through the bounded
// page fetcher, and bundles the pages so ParseRaces stays a pure function
// of one string.
type Paceline struct {
	fetcher fetch.Fetcher
	baseURL string
}

func NewPaceline(f fetch.Fetcher, baseURL string) *Paceline {
	return &Paceline{fetcher: f, baseURL: baseURL}
}

func (p *Paceline) SourceName() string { return "paceline" }

func (p *Paceline) AdapterType() adapter.Type { return adapter.TypeDiscovery }

// pacelineBundle is the FetchData/ParseRaces interchange format: the date
// the pages were fetched for plus each track page's HTML.
type pacelineBundle struct {
	Date  string `json:"date"`
	Pages []struct {
		URL  string `json:"url"`
		HTML string `json:"html"`
	} `json:"pages"`
}

func (p *Paceline) FetchData(ctx context.Context, date string) (string, error) {
	index, err := fetchText(ctx, p.fetcher, fmt.Sprintf("%s/harness/%s", p.baseURL, date), fetch.Options{})
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(index))
	if err != nil {
		return "", fmt.Errorf("paceline index: %w", err)
	}
	var urls []string
	doc.Find("a.track-link").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			urls = append(urls, p.baseURL+href)
		}
	})

	bundle := pacelineBundle{Date: date}
	results := adapter.FetchPages(ctx, urls, func(ctx context.Context, url string) (string, error) {
		return fetchText(ctx, p.fetcher, url, fetch.Options{})
	})
	for _, page := range results {
		if page.Err != nil {
			// Partial days are fine; missing tracks just are not offered.
			continue
		}
		bundle.Pages = append(bundle.Pages, struct {
			URL  string `json:"url"`
			HTML string `json:"html"`
		}{URL: page.URL, HTML: page.Body})
	}
	if len(urls) > 0 && len(bundle.Pages) == 0 {
		return "", &fetch.Error{Reason: fetch.ReasonNetwork, URL: p.baseURL,
			Err: fmt.Errorf("all %d track pages failed", len(urls))}
	}

	out, err := json.Marshal(bundle)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (p *Paceline) ParseRaces(raw string) ([]*model.Race, error) {
	var bundle pacelineBundle
	if err := json.Unmarshal([]byte(raw), &bundle); err != nil {
		return nil, fmt.Errorf("paceline bundle: %w", err)
	}
	day, err := time.ParseInLocation("2006-01-02", bundle.Date, model.Eastern())
	if err != nil {
		return nil, fmt.Errorf("paceline bundle date: %w", err)
	}

	now := time.Now().UTC()
	var out []*model.Race
	for _, page := range bundle.Pages {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
		if err != nil {
			continue
		}
		venue := normalize.Venue(doc.Find("h1.track-name").First().Text())
		doc.Find("div.race").Each(func(_ int, div *goquery.Selection) {
			num, _ := strconv.Atoi(div.AttrOr("data-race-number", ""))
			start, perr := parseClockTime(day, div.AttrOr("data-post-time", ""))
			if num == 0 || perr != nil {
				return
			}
			race := &model.Race{
				ID:         model.MakeRaceID("pl", venue, start, num, model.Harness),
				Venue:      venue,
				RaceNumber: num,
				StartTime:  start,
				Source:     p.SourceName(),
				Discipline: model.Harness,
				Distance:   strings.TrimSpace(div.Find("span.distance").First().Text()),
			}
			div.Find("li.entry").Each(func(_ int, li *goquery.Selection) {
				runner := &model.Runner{
					Name:      normalize.RunnerName(li.Find("span.horse").Text()),
					Scratched: li.HasClass("scratched"),
				}
				runner.Number, _ = strconv.Atoi(li.AttrOr("data-post", ""))
				if win := normalize.Odds(li.Find("span.odds").Text()); win != nil {
					runner.Odds = map[string]model.OddsData{
						p.SourceName(): {Win: win, Source: p.SourceName(), LastUpdated: now},
					}
				}
				race.Runners = append(race.Runners, runner)
			})
			out = append(out, race)
		})
	}
	return out, nil
}

// parseClockTime combines a day with a site-local "7:30 PM" post time.
func parseClockTime(day time.Time, clock string) (time.Time, error) {
	clock = strings.ToUpper(strings.TrimSpace(clock))
	for _, layout := range []string{"3:04 PM", "15:04"} {
		if t, err := time.Parse(layout, clock); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(),
				t.Hour(), t.Minute(), 0, 0, day.Location()), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable post time %q", clock)
}
