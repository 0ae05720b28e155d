package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Parsed odds must land in this range; anything outside is rejected.
const (
	MinOdds = 1.01
	MaxOdds = 1000.0
)

// PlaceholderOdds are values sources commonly emit as a default when they
// have no real price. They parse fine but are flagged untrustworthy.
var PlaceholderOdds = []float64{2.75}

var (
	scratchedTokens = map[string]bool{
		"SCR": true, "SCRATCHED": true, "N/A": true, "NA": true,
		"NR": true, "VOID": true, "": true, "-": true, "--": true,
	}
	evensTokens = map[string]bool{
		"EVN": true, "EVEN": true, "EVS": true, "EVENS": true,
	}
	fractionalRe = regexp.MustCompile(`^(\d+)\s*(?:/|-|\s+TO\s+)\s*(\d+)$`)
	americanRe   = regexp.MustCompile(`^([+-])(\d+)$`)
	decimalRe    = regexp.MustCompile(`^\d+[.,]\d+$`)
	integerRe    = regexp.MustCompile(`^\d+$`)
)

// Odds parses a raw odds string in any of the formats sources use:
// fractional (7/4, 7-4, 7 TO 4), decimal (3.50, 3,50), American (+250,
// -150), EVEN variants, and scratch markers. Returns nil when the runner is
// scratched/void or the text is not a price. Results are decimal odds
// rounded to two places in [1.01, 1000.0).
func Odds(raw string) *float64 {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", " ")

	if scratchedTokens[s] {
		return nil
	}
	if evensTokens[s] {
		v := 2.0
		return &v
	}

	if m := fractionalRe.FindStringSubmatch(s); m != nil {
		num, _ := strconv.ParseInt(m[1], 10, 64)
		den, _ := strconv.ParseInt(m[2], 10, 64)
		if den == 0 {
			return nil
		}
		return clampOdds(decimal.NewFromInt(num).
			Div(decimal.NewFromInt(den)).
			Add(decimal.NewFromInt(1)))
	}

	if m := americanRe.FindStringSubmatch(s); m != nil {
		line, _ := strconv.ParseInt(m[2], 10, 64)
		if line == 0 {
			return nil
		}
		hundred := decimal.NewFromInt(100)
		one := decimal.NewFromInt(1)
		if m[1] == "+" {
			return clampOdds(decimal.NewFromInt(line).Div(hundred).Add(one))
		}
		return clampOdds(hundred.Div(decimal.NewFromInt(line)).Add(one))
	}

	if integerRe.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil
		}
		// A bare integer in [1,50] is fractional shorthand for n/1.
		if n >= 1 && n <= 50 {
			return clampOdds(decimal.NewFromInt(n).Add(decimal.NewFromInt(1)))
		}
		return clampOdds(decimal.NewFromInt(n))
	}

	if decimalRe.MatchString(s) {
		d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
		if err != nil {
			return nil
		}
		return clampOdds(d)
	}

	return nil
}

// IsScratched reports whether a raw odds string is a scratch/void marker
// rather than a missing or malformed price.
func IsScratched(raw string) bool {
	s := strings.ToUpper(strings.TrimSpace(raw))
	return s != "" && s != "-" && s != "--" && scratchedTokens[s]
}

// Trustworthy reports whether a parsed odds value is a real market price
// rather than a known placeholder default.
func Trustworthy(v float64) bool {
	for _, p := range PlaceholderOdds {
		if v == p {
			return false
		}
	}
	return true
}

func clampOdds(d decimal.Decimal) *float64 {
	v, _ := d.Round(2).Float64()
	if v < MinOdds || v >= MaxOdds {
		return nil
	}
	return &v
}
