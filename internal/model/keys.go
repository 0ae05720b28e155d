package model

import (
	"fmt"
	"strings"
	"time"
)

var eastern = loadEastern()

func loadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// Fixed offset fallback when tzdata is unavailable.
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}

// Eastern is the display timezone every dedup and audit key is computed in.
func Eastern() *time.Location { return eastern }

// DedupKey identifies a race across sources: lowercased venue, race number
// and HH:MM of the start time in Eastern.
func (r *Race) DedupKey() string {
	return fmt.Sprintf("%s|%d|%s",
		strings.ToLower(strings.TrimSpace(r.Venue)),
		r.RaceNumber,
		r.StartTime.In(eastern).Format("15:04"))
}

// slugify lowercases and joins a venue name with underscores for race IDs.
func slugify(s string) string {
	var b strings.Builder
	lastUnder := true
	for _, c := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
			lastUnder = false
		default:
			if !lastUnder {
				b.WriteByte('_')
				lastUnder = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// MakeRaceID builds an adapter race ID:
// <prefix>_<slug(venue)>_<yyyymmdd>_<HHMM>_R<race_number><disc_suffix>.
func MakeRaceID(prefix, venue string, start time.Time, raceNumber int, disc Discipline) string {
	local := start.In(eastern)
	return fmt.Sprintf("%s_%s_%s_%s_R%d%s",
		prefix, slugify(venue), local.Format("20060102"), local.Format("1504"),
		raceNumber, disc.IDSuffix())
}
