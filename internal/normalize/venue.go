package normalize

import (
	"regexp"
	"strings"
)

// racingKeywords marks the boundary between a track name and a race or
// sponsorship title. Anything from the first keyword onward is cut.
var racingKeywords = []string{
	"PRIX", "CHASE", "HURDLE", "HANDICAP", "STAKES", "CUP", "LISTED", "GBB",
	"RACE", "MEETING", "NOVICE", "TRIAL", "PLATE", "TROPHY", "CHAMPIONSHIP",
	"JOCKEY", "TRAINER", "BEST ODDS", "GUARANTEED", "PRO/AM", "AUCTION",
	"HUNT", "MARES", "FILLIES", "COLTS", "GELDINGS", "JUVENILE", "SELLING",
	"CLAIMING", "OPTIONAL", "ALLOWANCE", "MAIDEN", "OPEN", "INVITATIONAL",
	"CLASS", "GRADE", "GROUP", "DERBY", "OAKS", "GUINEAS", "DASH", "MILE",
	"STAYERS", "BOWL", "MEMORIAL", "PURSE", "CONDITION",
}

// venueAliases maps cleaned upper-case tokens to canonical track names.
// Abbreviations come from US program codes, the rest from feeds that report
// the physical course rather than the meeting name.
var venueAliases = map[string]string{
	"AQU":            "Aqueduct",
	"BEL":            "Belmont Park",
	"CD":             "Churchill Downs",
	"GP":             "Gulfstream Park",
	"SA":             "Santa Anita",
	"SAR":            "Saratoga",
	"KEE":            "Keeneland",
	"DMR":            "Del Mar",
	"PRX":            "Parx Racing",
	"MVR":            "Mahoning Valley",
	"PEN":            "Penn National",
	"FL":             "Finger Lakes",
	"MTH":            "Monmouth Park",
	"WO":             "Woodbine",
	"DUNSTALL PARK":  "Wolverhampton",
	"YARMOUTH":       "Great Yarmouth",
	"EPSOM":          "Epsom Downs",
	"NEWMARKET ROWLEY": "Newmarket",
	"NEWMARKET JULY": "Newmarket",
	"CHELMSFORD":     "Chelmsford City",
	"MEADOWLANDS HARNESS": "Meadowlands",
	"YONKERS RACEWAY":     "Yonkers",
}

var parentheticalRe = regexp.MustCompile(`\([^)]*\)`)

// Venue runs the two-stage venue normalizer: strip race/sponsorship noise,
// then resolve through the alias table or title-case the remainder.
func Venue(raw string) string {
	s := parentheticalRe.ReplaceAllString(raw, " ")
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.TrimSpace(s)

	upper := strings.ToUpper(s)
	if cut := keywordIndex(upper); cut >= 0 {
		s = strings.TrimSpace(s[:cut])
		upper = upper[:cut]
	}
	s = strings.Trim(s, " -–—,.&")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	upper = strings.ToUpper(s)

	if canon, ok := venueAliases[upper]; ok {
		return canon
	}
	if s == "" {
		return "Unknown"
	}
	return titleCase(s)
}

// CanonicalVenue is the dedup primitive: normalized venue, lowercased, with
// every non-alphanumeric stripped.
func CanonicalVenue(raw string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(Venue(raw)) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// keywordIndex returns the byte offset of the earliest racing keyword that
// starts at a word boundary, or -1.
func keywordIndex(upper string) int {
	best := -1
	for _, kw := range racingKeywords {
		idx := 0
		for {
			i := strings.Index(upper[idx:], kw)
			if i < 0 {
				break
			}
			at := idx + i
			if wordBoundary(upper, at, len(kw)) {
				if best < 0 || at < best {
					best = at
				}
				break
			}
			idx = at + 1
		}
	}
	return best
}

func wordBoundary(s string, at, length int) bool {
	if at > 0 {
		prev := s[at-1]
		if prev >= 'A' && prev <= 'Z' || prev >= '0' && prev <= '9' {
			return false
		}
	}
	end := at + length
	if end < len(s) {
		next := s[end]
		if next >= 'A' && next <= 'Z' || next >= '0' && next <= '9' {
			return false
		}
	}
	return true
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
